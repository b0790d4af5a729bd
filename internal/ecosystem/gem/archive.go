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

package gem

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// A .gem file is itself an uncompressed tar with three members:
// metadata.gz (gzipped YAML spec), data.tar.gz (the gem's file payload,
// itself gzipped tar) and checksums.yaml.gz. ReadMetadataGz and
// ExtractData each scan the outer tar independently since a .gem is
// small enough that two passes cost nothing worth avoiding.

// ReadMetadataGz returns the raw metadata.gz member of a .gem archive,
// still gzip-compressed, ready for gem.ParseMetadata.
func ReadMetadataGz(r io.Reader) ([]byte, error) {
	return readOuterMember(r, "metadata.gz")
}

// ExtractData unpacks the data.tar.gz member of a .gem archive (the
// gem's actual file payload) into destDir.
func ExtractData(r io.Reader, destDir string) error {
	raw, err := readOuterMember(r, "data.tar.gz")
	if err != nil {
		return err
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("gem: open data.tar.gz: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("gem: read data.tar.gz: %w", err)
		}
		target := filepath.Join(destDir, filepath.Clean("/"+hdr.Name)[1:])
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
	}
}

func readOuterMember(r io.Reader, name string) ([]byte, error) {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("gem: archive has no %s member", name)
		}
		if err != nil {
			return nil, fmt.Errorf("gem: read archive: %w", err)
		}
		if hdr.Name != name {
			continue
		}
		return io.ReadAll(tr)
	}
}
