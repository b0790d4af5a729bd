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

package builder

import (
	"fmt"
	"os"
	"path/filepath"
)

// ReadTree loads a previously materialized debian/ tree from disk, for
// diffing against a freshly rendered one. A missing root is not an
// error: it reports an empty Tree, the normal case for a package's
// first build.
func ReadTree(root string) (Tree, error) {
	t := Tree{Files: map[string][]byte{}, Executable: map[string]bool{}}
	debianRoot := filepath.Join(root, "debian")
	if _, err := os.Stat(debianRoot); os.IsNotExist(err) {
		return t, nil
	}

	err := filepath.Walk(debianRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		t.Files[rel] = content
		if info.Mode()&0o111 != 0 {
			t.Executable[rel] = true
		}
		return nil
	})
	if err != nil {
		return Tree{}, fmt.Errorf("builder: read existing tree at %s: %w", debianRoot, err)
	}
	return t, nil
}

// WriteTree materializes a Tree's files under root, creating parent
// directories as needed and setting the executable bit where Render
// marked one.
func WriteTree(root string, t Tree) error {
	for path, content := range t.Files {
		full := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("builder: mkdir for %s: %w", path, err)
		}
		mode := os.FileMode(0o644)
		if t.Executable[path] {
			mode = 0o755
		}
		if err := os.WriteFile(full, content, mode); err != nil {
			return fmt.Errorf("builder: write %s: %w", path, err)
		}
	}
	return nil
}
