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

package signing

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

func generateTestKeyring(t *testing.T) (path string, keyID string, entity *openpgp.Entity) {
	t.Helper()

	e, err := openpgp.NewEntity("debler test", "", "test@debler.invalid", nil)
	if err != nil {
		t.Fatalf("NewEntity: %v", err)
	}

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("armor.Encode: %v", err)
	}
	if err := e.Serialize(w); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close armor writer: %v", err)
	}

	dir := t.TempDir()
	keyringPath := filepath.Join(dir, "pubring.asc")
	if err := os.WriteFile(keyringPath, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write keyring: %v", err)
	}

	return keyringPath, e.PrimaryKey.KeyIdString(), e
}

func TestLoadAndResolve(t *testing.T) {
	path, keyID, _ := generateTestKeyring(t)

	kr, err := Load(path, keyID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !kr.Resolved() {
		t.Error("Resolved() = false, want true for the key just loaded")
	}
}

func TestLoadUnresolvedKey(t *testing.T) {
	path, _, _ := generateTestKeyring(t)

	kr, err := Load(path, "DEADBEEFDEADBEEF")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if kr.Resolved() {
		t.Error("Resolved() = true, want false for a key id not in the keyring")
	}
}

func TestLoadMissingKeyID(t *testing.T) {
	path, _, _ := generateTestKeyring(t)

	if _, err := Load(path, ""); err == nil {
		t.Fatal("Load() with empty key id should error")
	}
}

func TestVerifyDetached(t *testing.T) {
	path, keyID, entity := generateTestKeyring(t)

	message := strings.NewReader("Release file contents\n")
	var sigBuf bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&sigBuf, entity, message, nil); err != nil {
		t.Fatalf("ArmoredDetachSign: %v", err)
	}

	kr, err := Load(path, keyID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	name, err := kr.VerifyDetached(strings.NewReader("Release file contents\n"), bytes.NewReader(sigBuf.Bytes()))
	if err != nil {
		t.Fatalf("VerifyDetached: %v", err)
	}
	if name == "" {
		t.Error("VerifyDetached returned empty identity name")
	}
}

func TestVerifyDetachedTamperedContent(t *testing.T) {
	path, keyID, entity := generateTestKeyring(t)

	message := strings.NewReader("original content\n")
	var sigBuf bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&sigBuf, entity, message, nil); err != nil {
		t.Fatalf("ArmoredDetachSign: %v", err)
	}

	kr, err := Load(path, keyID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	_, err = kr.VerifyDetached(strings.NewReader("tampered content\n"), bytes.NewReader(sigBuf.Bytes()))
	if err == nil {
		t.Fatal("VerifyDetached should fail on tampered content")
	}
}
