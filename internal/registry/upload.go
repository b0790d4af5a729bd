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

package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PackageUploadClient pushes finished .changes/.dsc/.deb artifacts to a
// configured HTTP package-upload endpoint. It satisfies builder.Uploader
// structurally without importing it, the same way the packagers import
// catalog without catalog importing them back.
type PackageUploadClient struct {
	client   *http.Client
	endpoint string
}

// NewPackageUploadClient returns a client posting to endpoint, which
// receives one multipart/form-data request per .changes file containing
// the .changes document and every file it references in the same
// directory (.dsc, orig/diff/debian tarballs, .deb/.buildinfo).
func NewPackageUploadClient(endpoint string) *PackageUploadClient {
	return &PackageUploadClient{
		client:   &http.Client{Timeout: 120 * time.Second},
		endpoint: endpoint,
	}
}

// Upload implements builder.Uploader.
func (c *PackageUploadClient) Upload(ctx context.Context, changesFiles []string) error {
	for _, changes := range changesFiles {
		if err := c.uploadOne(ctx, changes); err != nil {
			return fmt.Errorf("upload %s: %w", filepath.Base(changes), err)
		}
	}
	return nil
}

func (c *PackageUploadClient) uploadOne(ctx context.Context, changesPath string) error {
	dir := filepath.Dir(changesPath)
	names, err := referencedFiles(changesPath)
	if err != nil {
		return err
	}
	names = append([]string{filepath.Base(changesPath)}, names...)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, name := range names {
		if err := attachFile(w, dir, name); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("upload endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func attachFile(w *multipart.Writer, dir, name string) error {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("create form file %s: %w", name, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy %s: %w", name, err)
	}
	return nil
}

// referencedFiles scans a .changes file's "Files:" / "Checksums-Sha256:"
// style multi-line stanzas for the filenames it lists alongside each
// checksum (the last whitespace-separated field on every indented line).
func referencedFiles(changesPath string) ([]string, error) {
	data, err := os.ReadFile(changesPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", changesPath, err)
	}

	var names []string
	seen := make(map[string]bool)
	inFileList := false
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		if line[0] != ' ' && line[0] != '\t' {
			inFileList = strings.HasPrefix(line, "Files:") || strings.HasPrefix(line, "Checksums-")
			continue
		}
		if !inFileList {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name := fields[len(fields)-1]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}
