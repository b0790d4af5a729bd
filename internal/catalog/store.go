// Copyright (c) 2024 santosr2
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("catalog: not found")

// ErrAlreadyClaimed is returned by ClaimBuild when another worker holds
// the revision's claim.
var ErrAlreadyClaimed = errors.New("catalog: revision already claimed")

// Store is the SQLite-backed catalog. All exported methods are safe for
// concurrent use; the scheduler's claim protocol relies on SQLite's
// single-writer serialization for correctness, not on in-process locks.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if absent) the SQLite database at dsn and applies
// the catalog schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", dsn, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func encodeConfig(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("catalog: encode config: %w", err)
	}
	return string(b), nil
}

func decodeConfig(s string) (map[string]any, error) {
	m := map[string]any{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("catalog: decode config: %w", err)
	}
	return m, nil
}

// RegisterPackager inserts the named packager if absent, or returns the
// existing row unchanged; it never overwrites an existing packager's
// config or enabled flag.
func (s *Store) RegisterPackager(ctx context.Context, name string, config map[string]any) (Packager, error) {
	cfg, err := encodeConfig(config)
	if err != nil {
		return Packager{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO packager (name, config) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, cfg)
	if err != nil {
		return Packager{}, fmt.Errorf("catalog: register packager %s: %w", name, err)
	}
	return s.GetPackager(ctx, name)
}

type packagerRow struct {
	ID      int64  `db:"id"`
	Name    string `db:"name"`
	Config  string `db:"config"`
	Enabled bool   `db:"enabled"`
}

func (r packagerRow) toDomain() (Packager, error) {
	cfg, err := decodeConfig(r.Config)
	if err != nil {
		return Packager{}, err
	}
	return Packager{ID: r.ID, Name: r.Name, Config: cfg, Enabled: r.Enabled}, nil
}

// GetPackager looks up a packager by name.
func (s *Store) GetPackager(ctx context.Context, name string) (Packager, error) {
	var row packagerRow
	err := s.db.GetContext(ctx, &row, `SELECT id, name, config, enabled FROM packager WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return Packager{}, fmt.Errorf("catalog: packager %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return Packager{}, fmt.Errorf("catalog: get packager %s: %w", name, err)
	}
	return row.toDomain()
}

// GetEnabledPackagers returns every packager with enabled = true, ordered
// by name.
func (s *Store) GetEnabledPackagers(ctx context.Context) ([]Packager, error) {
	var rows []packagerRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, config, enabled FROM packager WHERE enabled = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list enabled packagers: %w", err)
	}
	out := make([]Packager, len(rows))
	for i, r := range rows {
		p, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// RegisterPackage inserts the (packager, name) pair if absent.
func (s *Store) RegisterPackage(ctx context.Context, packagerID int64, name string, config map[string]any) (Package, error) {
	cfg, err := encodeConfig(config)
	if err != nil {
		return Package{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO package (packager_id, name, config) VALUES (?, ?, ?) ON CONFLICT(packager_id, name) DO NOTHING`,
		packagerID, name, cfg)
	if err != nil {
		return Package{}, fmt.Errorf("catalog: register package %s: %w", name, err)
	}
	return s.getPackageRow(ctx, packagerID, name)
}

type packageRow struct {
	ID         int64  `db:"id"`
	PackagerID int64  `db:"packager_id"`
	Name       string `db:"name"`
	Config     string `db:"config"`
}

func (r packageRow) toDomain() (Package, error) {
	cfg, err := decodeConfig(r.Config)
	if err != nil {
		return Package{}, err
	}
	return Package{ID: r.ID, PackagerID: r.PackagerID, Name: r.Name, Config: cfg}, nil
}

func (s *Store) getPackageRow(ctx context.Context, packagerID int64, name string) (Package, error) {
	var row packageRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, packager_id, name, config FROM package WHERE packager_id = ? AND name = ?`,
		packagerID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return Package{}, fmt.Errorf("catalog: package %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return Package{}, fmt.Errorf("catalog: get package %s: %w", name, err)
	}
	return row.toDomain()
}

// SetPackageConfig merges patch into a package's stored config. Used by
// the `gem`/`pkg` config command to mutate package configuration without
// reinserting the row (RegisterPackage is insert-if-absent and leaves an
// existing row's config untouched).
func (s *Store) SetPackageConfig(ctx context.Context, packageID int64, patch map[string]any) error {
	var current string
	if err := s.db.GetContext(ctx, &current, `SELECT config FROM package WHERE id = ?`, packageID); err != nil {
		return fmt.Errorf("catalog: read package %d config: %w", packageID, err)
	}
	cfg, err := decodeConfig(current)
	if err != nil {
		return err
	}
	for k, v := range patch {
		cfg[k] = v
	}
	encoded, err := encodeConfig(cfg)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE package SET config = ? WHERE id = ?`, encoded, packageID); err != nil {
		return fmt.Errorf("catalog: update package %d config: %w", packageID, err)
	}
	return nil
}

// ListPackages returns every package registered under a packager, with
// slots loaded, ordered by name then slot key. Used by `rebuild --all`
// and `info` to fan out over a packager's whole tree.
func (s *Store) ListPackages(ctx context.Context, packagerID int64) ([]Package, error) {
	var rows []packageRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, packager_id, name, config FROM package WHERE packager_id = ? ORDER BY name`,
		packagerID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list packages: %w", err)
	}
	out := make([]Package, len(rows))
	for i, r := range rows {
		pkg, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out[i] = pkg
	}

	var slotRows []slotRow
	err = s.db.SelectContext(ctx, &slotRows,
		`SELECT slot.id, slot.package_id, slot.slot_key, slot.os_package, slot.config, slot.metadata
		 FROM slot JOIN package ON package.id = slot.package_id
		 WHERE package.packager_id = ? ORDER BY slot.slot_key`,
		packagerID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list slots for packager: %w", err)
	}
	byPackage := make(map[int64][]Slot)
	for _, r := range slotRows {
		sl, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		byPackage[sl.PackageID] = append(byPackage[sl.PackageID], sl)
	}
	for i := range out {
		out[i].Slots = byPackage[out[i].ID]
	}
	return out, nil
}

// PackageInfo returns a package with its slots loaded, ordered by key.
func (s *Store) PackageInfo(ctx context.Context, packagerID int64, name string) (Package, error) {
	pkg, err := s.getPackageRow(ctx, packagerID, name)
	if err != nil {
		return Package{}, err
	}
	var slotRows []slotRow
	err = s.db.SelectContext(ctx, &slotRows,
		`SELECT id, package_id, slot_key, os_package, config, metadata FROM slot WHERE package_id = ? ORDER BY slot_key`,
		pkg.ID)
	if err != nil {
		return Package{}, fmt.Errorf("catalog: list slots for %s: %w", name, err)
	}
	for _, r := range slotRows {
		sl, err := r.toDomain()
		if err != nil {
			return Package{}, err
		}
		pkg.Slots = append(pkg.Slots, sl)
	}
	return pkg, nil
}

type slotRow struct {
	ID        int64  `db:"id"`
	PackageID int64  `db:"package_id"`
	Key       string `db:"slot_key"`
	OSPackage string `db:"os_package"`
	Config    string `db:"config"`
	Metadata  string `db:"metadata"`
}

func (r slotRow) toDomain() (Slot, error) {
	cfg, err := decodeConfig(r.Config)
	if err != nil {
		return Slot{}, err
	}
	meta, err := decodeConfig(r.Metadata)
	if err != nil {
		return Slot{}, err
	}
	return Slot{ID: r.ID, PackageID: r.PackageID, Key: r.Key, OSPackageName: r.OSPackage, Config: cfg, Metadata: meta}, nil
}

// RegisterSlot inserts the (package, key) slot if absent.
func (s *Store) RegisterSlot(ctx context.Context, packageID int64, key, osPackageName string, config map[string]any) (Slot, error) {
	cfg, err := encodeConfig(config)
	if err != nil {
		return Slot{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO slot (package_id, slot_key, os_package, config) VALUES (?, ?, ?, ?) ON CONFLICT(package_id, slot_key) DO NOTHING`,
		packageID, key, osPackageName, cfg)
	if err != nil {
		return Slot{}, fmt.Errorf("catalog: register slot %s: %w", key, err)
	}
	var row slotRow
	err = s.db.GetContext(ctx, &row,
		`SELECT id, package_id, slot_key, os_package, config, metadata FROM slot WHERE package_id = ? AND slot_key = ?`,
		packageID, key)
	if err != nil {
		return Slot{}, fmt.Errorf("catalog: get slot %s: %w", key, err)
	}
	return row.toDomain()
}

// SetSlotMetadata merges keys into a slot's metadata blob (last writer
// wins per key).
func (s *Store) SetSlotMetadata(ctx context.Context, slotID int64, patch map[string]any) error {
	var current string
	if err := s.db.GetContext(ctx, &current, `SELECT metadata FROM slot WHERE id = ?`, slotID); err != nil {
		return fmt.Errorf("catalog: read slot %d metadata: %w", slotID, err)
	}
	meta, err := decodeConfig(current)
	if err != nil {
		return err
	}
	for k, v := range patch {
		meta[k] = v
	}
	encoded, err := encodeConfig(meta)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE slot SET metadata = ? WHERE id = ?`, encoded, slotID); err != nil {
		return fmt.Errorf("catalog: update slot %d metadata: %w", slotID, err)
	}
	return nil
}

// SlotForVersion returns every slot of packageID ordered by slot key. It
// does not pick a slot for a version itself: the interval bounds live
// only as opaque config in the database, so the caller compares versions
// in Go.
func (s *Store) SlotForVersion(ctx context.Context, packageID int64) ([]Slot, error) {
	var rows []slotRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, package_id, slot_key, os_package, config, metadata FROM slot WHERE package_id = ? ORDER BY slot_key`,
		packageID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list slots: %w", err)
	}
	out := make([]Slot, len(rows))
	for i, r := range rows {
		sl, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out[i] = sl
	}
	return out, nil
}

type versionRow struct {
	ID        int64     `db:"id"`
	SlotID    int64     `db:"slot_id"`
	Version   string    `db:"version"`
	Config    string    `db:"config"`
	Populated bool      `db:"populated"`
	CreatedAt time.Time `db:"created_at"`
}

func (r versionRow) toDomain() (Version, error) {
	cfg, err := decodeConfig(r.Config)
	if err != nil {
		return Version{}, err
	}
	return Version{ID: r.ID, SlotID: r.SlotID, Version: r.Version, Config: cfg, Populated: r.Populated, CreatedAt: r.CreatedAt}, nil
}

// RegisterVersion inserts the (slot, version) row if absent and returns
// it; populated is left false for a newly inserted row.
func (s *Store) RegisterVersion(ctx context.Context, slotID int64, version string, config map[string]any, now time.Time) (Version, error) {
	cfg, err := encodeConfig(config)
	if err != nil {
		return Version{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO version (slot_id, version, config, created_at) VALUES (?, ?, ?, ?) ON CONFLICT(slot_id, version) DO NOTHING`,
		slotID, version, cfg, now)
	if err != nil {
		return Version{}, fmt.Errorf("catalog: register version %s: %w", version, err)
	}
	var row versionRow
	err = s.db.GetContext(ctx, &row,
		`SELECT id, slot_id, version, config, populated, created_at FROM version WHERE slot_id = ? AND version = ?`,
		slotID, version)
	if err != nil {
		return Version{}, fmt.Errorf("catalog: get version %s: %w", version, err)
	}
	return row.toDomain()
}

// LatestVersion returns the most recently registered version in a slot.
// Used by `rebuild --all` to pick the version a format-upgrade rebuild
// should target.
func (s *Store) LatestVersion(ctx context.Context, slotID int64) (Version, error) {
	var row versionRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, slot_id, version, config, populated, created_at FROM version
		 WHERE slot_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		slotID)
	if errors.Is(err, sql.ErrNoRows) {
		return Version{}, fmt.Errorf("catalog: latest version for slot %d: %w", slotID, ErrNotFound)
	}
	if err != nil {
		return Version{}, fmt.Errorf("catalog: latest version for slot %d: %w", slotID, err)
	}
	return row.toDomain()
}

// ListVersions returns every version registered in a slot, oldest first,
// for the `info` command's slot->version->revision subtree walk.
func (s *Store) ListVersions(ctx context.Context, slotID int64) ([]Version, error) {
	var rows []versionRow
	err := s.db.SelectContext(ctx,
		&rows, `SELECT id, slot_id, version, config, populated, created_at FROM version
		 WHERE slot_id = ? ORDER BY created_at ASC, id ASC`,
		slotID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list versions for slot %d: %w", slotID, err)
	}
	versions := make([]Version, 0, len(rows))
	for _, row := range rows {
		v, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// GetVersion looks up a (slot, version) row without creating it, for
// callers that need to distinguish "already tracked" from "new" (the
// webhook's duplicate-release check).
func (s *Store) GetVersion(ctx context.Context, slotID int64, version string) (Version, error) {
	var row versionRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, slot_id, version, config, populated, created_at FROM version WHERE slot_id = ? AND version = ?`,
		slotID, version)
	if errors.Is(err, sql.ErrNoRows) {
		return Version{}, fmt.Errorf("catalog: version %s: %w", version, ErrNotFound)
	}
	if err != nil {
		return Version{}, fmt.Errorf("catalog: get version %s: %w", version, err)
	}
	return row.toDomain()
}

// MarkVersionPopulated flips a version's populated flag once its
// dependency metadata has been fetched and stored.
func (s *Store) MarkVersionPopulated(ctx context.Context, versionID int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE version SET populated = 1 WHERE id = ?`, versionID); err != nil {
		return fmt.Errorf("catalog: mark version %d populated: %w", versionID, err)
	}
	return nil
}

// RegisterDistribution inserts the named distribution if absent.
func (s *Store) RegisterDistribution(ctx context.Context, name string) (Distribution, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO distribution (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return Distribution{}, fmt.Errorf("catalog: register distribution %s: %w", name, err)
	}
	var d Distribution
	err = s.db.GetContext(ctx, &d, `SELECT id, name FROM distribution WHERE name = ?`, name)
	if err != nil {
		return Distribution{}, fmt.Errorf("catalog: get distribution %s: %w", name, err)
	}
	return d, nil
}

// ScheduleBuild inserts revision_version 1 for (version, distribution)
// if no revision yet exists, recording changelog as its initial entry.
func (s *Store) ScheduleBuild(ctx context.Context, versionID, distributionID int64, changelog string, now time.Time) (Revision, error) {
	return s.scheduleRevision(ctx, versionID, distributionID, 1, changelog, now)
}

// ScheduleRebuild inserts the next revision_version for (version,
// distribution), one past the highest existing revision.
func (s *Store) ScheduleRebuild(ctx context.Context, versionID, distributionID int64, changelog string, now time.Time) (Revision, error) {
	var maxRev sql.NullInt64
	err := s.db.GetContext(ctx, &maxRev,
		`SELECT MAX(revision_version) FROM revision WHERE version_id = ? AND distribution_id = ?`,
		versionID, distributionID)
	if err != nil {
		return Revision{}, fmt.Errorf("catalog: find max revision: %w", err)
	}
	next := int64(1)
	if maxRev.Valid {
		next = maxRev.Int64 + 1
	}
	return s.scheduleRevision(ctx, versionID, distributionID, next, changelog, now)
}

func (s *Store) scheduleRevision(ctx context.Context, versionID, distributionID, revisionVersion int64, changelog string, now time.Time) (Revision, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO revision (version_id, distribution_id, revision_version, scheduled_at, changelog)
		 VALUES (?, ?, ?, ?, ?)`,
		versionID, distributionID, revisionVersion, now, changelog)
	if err != nil {
		return Revision{}, fmt.Errorf("catalog: schedule revision: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Revision{}, fmt.Errorf("catalog: schedule revision: %w", err)
	}
	return s.getRevision(ctx, id)
}

type revisionRow struct {
	ID              int64      `db:"id"`
	VersionID       int64      `db:"version_id"`
	DistributionID  int64      `db:"distribution_id"`
	RevisionVersion int        `db:"revision_version"`
	ScheduledAt     time.Time  `db:"scheduled_at"`
	Changelog       string     `db:"changelog"`
	Builder         string     `db:"builder"`
	BuiltAt         *time.Time `db:"built_at"`
	Result          string     `db:"result"`
	ClaimedBy       string     `db:"claimed_by"`
	ClaimedAt       *time.Time `db:"claimed_at"`
}

func (r revisionRow) toDomain() Revision {
	return Revision{
		ID: r.ID, VersionID: r.VersionID, DistributionID: r.DistributionID,
		RevisionVersion: r.RevisionVersion, ScheduledAt: r.ScheduledAt, Changelog: r.Changelog,
		Builder: r.Builder, BuiltAt: r.BuiltAt, Result: Result(r.Result),
		ClaimedBy: r.ClaimedBy, ClaimedAt: r.ClaimedAt,
	}
}

func (s *Store) getRevision(ctx context.Context, id int64) (Revision, error) {
	var row revisionRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, version_id, distribution_id, revision_version, scheduled_at, changelog, builder, built_at, result, claimed_by, claimed_at
		 FROM revision WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Revision{}, fmt.Errorf("catalog: revision %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Revision{}, fmt.Errorf("catalog: get revision %d: %w", id, err)
	}
	return row.toDomain(), nil
}

// SelectionMode controls which revisions ListRevisions considers.
type SelectionMode int

const (
	SelectPending SelectionMode = iota
	SelectFailed
	SelectAll
)

// ListRevisions returns revisions matching mode, unclaimed or claimed by
// staleBefore, oldest scheduled_at first.
func (s *Store) ListRevisions(ctx context.Context, mode SelectionMode, staleBefore time.Time) ([]Revision, error) {
	var where string
	switch mode {
	case SelectPending:
		where = `result = ''`
	case SelectFailed:
		where = `result = 'failed'`
	case SelectAll:
		where = `1 = 1`
	}
	var rows []revisionRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, version_id, distribution_id, revision_version, scheduled_at, changelog, builder, built_at, result, claimed_by, claimed_at
		 FROM revision WHERE (`+where+`) AND (claimed_by = '' OR claimed_at < ?) ORDER BY scheduled_at`,
		staleBefore)
	if err != nil {
		return nil, fmt.Errorf("catalog: list revisions: %w", err)
	}
	out := make([]Revision, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// ListRevisionsForVersion returns every revision scheduled for a version,
// across all distributions, oldest first. Used by the `info` command's
// subtree walk; unlike ListRevisions it is not gated by claim staleness.
func (s *Store) ListRevisionsForVersion(ctx context.Context, versionID int64) ([]Revision, error) {
	var rows []revisionRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, version_id, distribution_id, revision_version, scheduled_at, changelog, builder, built_at, result, claimed_by, claimed_at
		 FROM revision WHERE version_id = ? ORDER BY scheduled_at`,
		versionID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list revisions for version %d: %w", versionID, err)
	}
	revisions := make([]Revision, 0, len(rows))
	for _, row := range rows {
		revisions = append(revisions, row.toDomain())
	}
	return revisions, nil
}

// ClaimBuild atomically assigns revisionID to worker, failing with
// ErrAlreadyClaimed if a different worker's claim is still fresh
// (claimed_at >= staleBefore). The compare-and-swap is the UPDATE's WHERE
// clause: SQLite serializes writers, so exactly one caller's UPDATE
// matches when two workers race the same revision.
func (s *Store) ClaimBuild(ctx context.Context, revisionID int64, worker string, now, staleBefore time.Time) (Revision, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE revision SET claimed_by = ?, claimed_at = ?
		 WHERE id = ? AND result = '' AND (claimed_by = '' OR claimed_by = ? OR claimed_at < ?)`,
		worker, now, revisionID, worker, staleBefore)
	if err != nil {
		return Revision{}, fmt.Errorf("catalog: claim revision %d: %w", revisionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Revision{}, fmt.Errorf("catalog: claim revision %d: %w", revisionID, err)
	}
	if n == 0 {
		return Revision{}, fmt.Errorf("catalog: claim revision %d: %w", revisionID, ErrAlreadyClaimed)
	}
	return s.getRevision(ctx, revisionID)
}

// FinalizeBuild records the terminal result of a claimed build.
func (s *Store) FinalizeBuild(ctx context.Context, revisionID int64, builder string, result Result, builtAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE revision SET builder = ?, result = ?, built_at = ? WHERE id = ?`,
		builder, string(result), builtAt, revisionID)
	if err != nil {
		return fmt.Errorf("catalog: finalize revision %d: %w", revisionID, err)
	}
	return nil
}

// RevisionsThrough returns every revision in revisionID's Version x
// Distribution whose revision_version is <= its own, oldest first: the
// full stanza data a changelog needs (message, revision number,
// scheduled date), not just the message text ChangelogEntries returns.
func (s *Store) RevisionsThrough(ctx context.Context, revisionID int64) ([]Revision, error) {
	target, err := s.getRevision(ctx, revisionID)
	if err != nil {
		return nil, fmt.Errorf("catalog: revisions through %d: %w", revisionID, err)
	}
	var rows []revisionRow
	err = s.db.SelectContext(ctx, &rows,
		`SELECT id, version_id, distribution_id, revision_version, scheduled_at, changelog, builder, built_at, result, claimed_by, claimed_at
		 FROM revision WHERE version_id = ? AND distribution_id = ? AND revision_version <= ? ORDER BY revision_version ASC`,
		target.VersionID, target.DistributionID, target.RevisionVersion)
	if err != nil {
		return nil, fmt.Errorf("catalog: revisions through %d: %w", revisionID, err)
	}
	revisions := make([]Revision, len(rows))
	for i, r := range rows {
		revisions[i] = r.toDomain()
	}
	return revisions, nil
}

// ChangelogEntries returns the changelog text of every revision in
// revisionID's Version x Distribution whose revision_version is <= its
// own, oldest first, for stitching into a debian/changelog.
func (s *Store) ChangelogEntries(ctx context.Context, revisionID int64) ([]string, error) {
	revisions, err := s.RevisionsThrough(ctx, revisionID)
	if err != nil {
		return nil, fmt.Errorf("catalog: changelog entries: %w", err)
	}
	entries := make([]string, len(revisions))
	for i, r := range revisions {
		entries[i] = r.Changelog
	}
	return entries, nil
}

// BuildData loads the full joined record a builder needs to execute a
// revision.
func (s *Store) BuildData(ctx context.Context, revisionID int64) (BuildData, error) {
	rev, err := s.getRevision(ctx, revisionID)
	if err != nil {
		return BuildData{}, err
	}
	var vrow versionRow
	if err := s.db.GetContext(ctx, &vrow,
		`SELECT id, slot_id, version, config, populated, created_at FROM version WHERE id = ?`, rev.VersionID); err != nil {
		return BuildData{}, fmt.Errorf("catalog: build data version: %w", err)
	}
	version, err := vrow.toDomain()
	if err != nil {
		return BuildData{}, err
	}
	var srow slotRow
	if err := s.db.GetContext(ctx, &srow,
		`SELECT id, package_id, slot_key, os_package, config, metadata FROM slot WHERE id = ?`, version.SlotID); err != nil {
		return BuildData{}, fmt.Errorf("catalog: build data slot: %w", err)
	}
	slot, err := srow.toDomain()
	if err != nil {
		return BuildData{}, err
	}
	var prow packageRow
	if err := s.db.GetContext(ctx, &prow,
		`SELECT id, packager_id, name, config FROM package WHERE id = ?`, slot.PackageID); err != nil {
		return BuildData{}, fmt.Errorf("catalog: build data package: %w", err)
	}
	pkg, err := prow.toDomain()
	if err != nil {
		return BuildData{}, err
	}
	var pgrow packagerRow
	if err := s.db.GetContext(ctx, &pgrow,
		`SELECT id, name, config, enabled FROM packager WHERE id = ?`, pkg.PackagerID); err != nil {
		return BuildData{}, fmt.Errorf("catalog: build data packager: %w", err)
	}
	packager, err := pgrow.toDomain()
	if err != nil {
		return BuildData{}, err
	}
	var dist Distribution
	if err := s.db.GetContext(ctx, &dist,
		`SELECT id, name FROM distribution WHERE id = ?`, rev.DistributionID); err != nil {
		return BuildData{}, fmt.Errorf("catalog: build data distribution: %w", err)
	}
	return BuildData{Revision: rev, Version: version, Slot: slot, Package: pkg, Packager: packager, Distribution: dist}, nil
}
