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
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildAndExtractOrigTarRoundTrip(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "lib"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "lib", "widget.rb"), []byte("class Widget\nend\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "widget.gemspec"), []byte("# gemspec\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := BuildOrigTar(&buf, src); err != nil {
		t.Fatalf("BuildOrigTar: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("BuildOrigTar produced no output")
	}

	var buf2 bytes.Buffer
	if err := BuildOrigTar(&buf2, src); err != nil {
		t.Fatalf("BuildOrigTar (second run): %v", err)
	}
	if !bytes.Equal(buf.Bytes(), buf2.Bytes()) {
		t.Error("BuildOrigTar is not deterministic across identical runs")
	}

	dest := t.TempDir()
	if err := ExtractOrigTar(bytes.NewReader(buf.Bytes()), dest); err != nil {
		t.Fatalf("ExtractOrigTar: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dest, "lib", "widget.rb"))
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if string(got) != "class Widget\nend\n" {
		t.Errorf("extracted content = %q", got)
	}
}
