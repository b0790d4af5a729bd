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

// Package signing resolves the operator's configured OpenPGP key in the
// local keyring at startup and verifies detached signatures produced by
// an external signer (dpkg-sign, debsign) after a build.
package signing

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// Keyring wraps a loaded OpenPGP keyring and the key ID the operator
// configured, so callers never have to re-parse the hex key ID.
type Keyring struct {
	entities openpgp.EntityList
	keyID    uint64
}

// Load reads an armored (or, failing that, binary) keyring file and
// resolves keyID (a 16 hex digit OpenPGP long key ID) against it; a
// shorter ID parses but matches no key. If path is empty,
// ~/.gnupg/pubring.gpg is read instead.
func Load(path, keyID string) (*Keyring, error) {
	id, err := parseKeyID(keyID)
	if err != nil {
		return nil, fmt.Errorf("signing: %w", err)
	}

	var entities openpgp.EntityList
	if path == "" {
		entities, err = loadDefaultKeyring()
	} else {
		entities, err = loadKeyringFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("signing: load keyring: %w", err)
	}

	return &Keyring{entities: entities, keyID: id}, nil
}

func parseKeyID(keyID string) (uint64, error) {
	if keyID == "" {
		return 0, fmt.Errorf("no signing key id configured")
	}
	id, err := strconv.ParseUint(keyID, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse key id %q: %w", keyID, err)
	}
	return id, nil
}

func loadKeyringFile(path string) (openpgp.EntityList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entities, err := openpgp.ReadArmoredKeyRing(f)
	if err == nil {
		return entities, nil
	}

	// Not every keyring export is armored; fall back to the binary form
	// before giving up.
	if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil {
		return nil, err
	}
	return openpgp.ReadKeyRing(f)
}

func loadDefaultKeyring() (openpgp.EntityList, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	return loadKeyringFile(home + "/.gnupg/pubring.gpg")
}

// Resolved reports whether the configured key ID was found among the
// loaded keyring's entities. This backs the signing-key-present guard.
func (k *Keyring) Resolved() bool {
	return len(k.entities.KeysById(k.keyID)) > 0
}

// VerifyDetached checks an armored detached signature over signed against
// the loaded keyring, returning the signing entity's primary identity
// name on success.
func (k *Keyring) VerifyDetached(signed, signature io.Reader) (string, error) {
	entity, err := openpgp.CheckArmoredDetachedSignature(k.entities, signed, signature, nil)
	if err != nil {
		return "", fmt.Errorf("signing: verify detached signature: %w", err)
	}
	for name := range entity.Identities {
		return name, nil
	}
	return entity.PrimaryKey.KeyIdString(), nil
}
