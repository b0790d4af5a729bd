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
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ulikunitz/xz"
)

// BuildOrigTar walks srcRoot and writes a deterministic "<name>_<version>.orig.tar.xz"
// to w: file order is sorted, and every header's mtime/uid/gid/uname/gname
// is zeroed so two builds of the same tree produce byte-identical output.
func BuildOrigTar(w io.Writer, srcRoot string) error {
	xzw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("builder: create xz writer: %w", err)
	}
	defer xzw.Close()

	tw := tar.NewWriter(xzw)
	defer tw.Close()

	var paths []string
	err = filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == srcRoot {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("builder: walk %s: %w", srcRoot, err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := addTarEntry(tw, srcRoot, path); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("builder: close tar writer: %w", err)
	}
	return xzw.Close()
}

func addTarEntry(tw *tar.Writer, root, path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("builder: stat %s: %w", path, err)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return fmt.Errorf("builder: relativize %s: %w", path, err)
	}

	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		link, err = os.Readlink(path)
		if err != nil {
			return fmt.Errorf("builder: readlink %s: %w", path, err)
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return fmt.Errorf("builder: build tar header for %s: %w", path, err)
	}
	hdr.Name = filepath.ToSlash(rel)
	if info.IsDir() {
		hdr.Name += "/"
	}
	hdr.ModTime = time.Unix(0, 0)
	hdr.AccessTime = time.Time{}
	hdr.ChangeTime = time.Time{}
	hdr.Uid, hdr.Gid = 0, 0
	hdr.Uname, hdr.Gname = "", ""

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("builder: write tar header for %s: %w", path, err)
	}
	if info.Mode().IsRegular() {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("builder: open %s: %w", path, err)
		}
		_, err = io.Copy(tw, f)
		closeErr := f.Close()
		if err != nil {
			return fmt.Errorf("builder: copy %s into tar: %w", path, err)
		}
		if closeErr != nil {
			return fmt.Errorf("builder: close %s: %w", path, closeErr)
		}
	}
	return nil
}

// ExtractOrigTar reverses BuildOrigTar, extracting name_version.orig.tar.xz
// into destRoot. Used by the extractOrigTar pipeline step, which unpacks
// the tarball the buildOrigTar step has just written into the build root.
func ExtractOrigTar(r io.Reader, destRoot string) error {
	xzr, err := xz.NewReader(r)
	if err != nil {
		return fmt.Errorf("builder: create xz reader: %w", err)
	}
	tr := tar.NewReader(xzr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("builder: read tar entry: %w", err)
		}
		target := filepath.Join(destRoot, filepath.FromSlash(hdr.Name))
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("builder: mkdir %s: %w", target, err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("builder: mkdir %s: %w", filepath.Dir(target), err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("builder: symlink %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("builder: mkdir %s: %w", filepath.Dir(target), err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return fmt.Errorf("builder: create %s: %w", target, err)
			}
			_, err = io.Copy(f, tr)
			closeErr := f.Close()
			if err != nil {
				return fmt.Errorf("builder: write %s: %w", target, err)
			}
			if closeErr != nil {
				return fmt.Errorf("builder: close %s: %w", target, closeErr)
			}
		}
	}
}
