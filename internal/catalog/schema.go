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

const schema = `
CREATE TABLE IF NOT EXISTS packager (
	id      INTEGER PRIMARY KEY,
	name    TEXT NOT NULL UNIQUE,
	config  TEXT NOT NULL DEFAULT '{}',
	enabled INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS package (
	id          INTEGER PRIMARY KEY,
	packager_id INTEGER NOT NULL REFERENCES packager(id),
	name        TEXT NOT NULL,
	config      TEXT NOT NULL DEFAULT '{}',
	UNIQUE(packager_id, name)
);

CREATE TABLE IF NOT EXISTS slot (
	id             INTEGER PRIMARY KEY,
	package_id     INTEGER NOT NULL REFERENCES package(id),
	slot_key       TEXT NOT NULL,
	os_package     TEXT NOT NULL,
	config         TEXT NOT NULL DEFAULT '{}',
	metadata       TEXT NOT NULL DEFAULT '{}',
	UNIQUE(package_id, slot_key)
);

CREATE TABLE IF NOT EXISTS version (
	id         INTEGER PRIMARY KEY,
	slot_id    INTEGER NOT NULL REFERENCES slot(id),
	version    TEXT NOT NULL,
	config     TEXT NOT NULL DEFAULT '{}',
	populated  INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	UNIQUE(slot_id, version)
);

CREATE TABLE IF NOT EXISTS distribution (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS revision (
	id               INTEGER PRIMARY KEY,
	version_id       INTEGER NOT NULL REFERENCES version(id),
	distribution_id  INTEGER NOT NULL REFERENCES distribution(id),
	revision_version INTEGER NOT NULL,
	scheduled_at     DATETIME NOT NULL,
	changelog        TEXT NOT NULL DEFAULT '',
	builder          TEXT NOT NULL DEFAULT '',
	built_at         DATETIME,
	result           TEXT NOT NULL DEFAULT '',
	claimed_by       TEXT NOT NULL DEFAULT '',
	claimed_at       DATETIME,
	UNIQUE(version_id, distribution_id, revision_version)
);

CREATE INDEX IF NOT EXISTS revision_pending_idx ON revision(result, claimed_by);
`
