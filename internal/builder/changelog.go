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
	"strings"

	"github.com/debler/debler/internal/catalog"
)

// debianChangelogDate matches Python's "%a, %d %b %Y %H:%M:%S %z", the
// RFC822-ish stamp dpkg-parsechangelog expects.
const debianChangelogDate = "Mon, 02 Jan 2006 15:04:05 -0700"

// RenderChangelog stitches revisions (oldest first, as returned by
// catalog.Store.RevisionsThrough) into a debian/changelog: one stanza
// per revision, newest on top as dpkg-parsechangelog requires.
func RenderChangelog(debName, baseVersion, maintainer, distribution string, revisions []catalog.Revision) []byte {
	var b strings.Builder
	for i := len(revisions) - 1; i >= 0; i-- {
		r := revisions[i]
		fmt.Fprintf(&b, "%s (%s-%d) %s; urgency=low\n\n", debName, baseVersion, r.RevisionVersion, distribution)
		fmt.Fprintf(&b, "  * %s\n\n", r.Changelog)
		fmt.Fprintf(&b, " -- %s  %s\n", maintainer, r.ScheduledAt.Format(debianChangelogDate))
		if i > 0 {
			b.WriteString("\n")
		}
	}
	return []byte(b.String())
}

// RenderCopyright produces a minimal DEP-5 debian/copyright naming
// upstreamName, the packaged project; year is the revision's scheduled
// year rather than wall-clock time, so the same build produces the same
// bytes whenever it is re-run.
func RenderCopyright(upstreamName string, year int) []byte {
	return []byte(fmt.Sprintf(`Format: https://www.debian.org/doc/packaging-manuals/copyright-format/1.0/
Upstream-Name: %s

Files: *
Copyright: %d, the %s upstream authors
License: see the upstream LICENSE file

Files: debian/*
Copyright: %d, the debler maintainers
License: see the upstream LICENSE file
`, upstreamName, year, upstreamName, year))
}

// sourceFormatQuilt is debian/source/format's fixed content: every
// package built by this pipeline uses the 3.0 (quilt) source format.
const sourceFormatQuilt = "3.0 (quilt)\n"
