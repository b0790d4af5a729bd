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

// Package catalog implements the persistent packager -> package -> slot
// -> version -> revision tree and the dequeue/claim/finalize protocol the
// scheduler drives over it.
package catalog

import "time"

// Result is the terminal state of a Revision.
type Result string

const (
	ResultPending  Result = ""
	ResultFinished Result = "finished"
	ResultFailed   Result = "failed"
	ResultCanceled Result = "canceled"
)

// Packager is a registered plugin kind (bundler, yarn, gomod, ...).
type Packager struct {
	ID      int64
	Name    string
	Config  map[string]any
	Enabled bool
}

// Package is a (Packager, upstream-name) pair.
type Package struct {
	ID         int64
	PackagerID int64
	Name       string
	Config     map[string]any
	Slots      []Slot
}

// Slot is a (Package, slot-key) pair: a prefix-defined lane of versions.
type Slot struct {
	ID            int64
	PackageID     int64
	Key           string
	OSPackageName string
	Config        map[string]any
	Metadata      map[string]any
}

// Version is a concrete upstream release inside a Slot.
type Version struct {
	ID        int64
	SlotID    int64
	Version   string
	Config    map[string]any
	Populated bool
	CreatedAt time.Time
}

// Distribution is a target OS release name.
type Distribution struct {
	ID   int64
	Name string
}

// Revision is a single scheduled build attempt for a Version in a
// Distribution.
type Revision struct {
	ID              int64
	VersionID       int64
	DistributionID  int64
	RevisionVersion int
	ScheduledAt     time.Time
	Changelog       string
	Builder         string
	BuiltAt         *time.Time
	Result          Result
	ClaimedBy       string
	ClaimedAt       *time.Time
}

// BuildData is the joined record a builder needs to run a Revision.
type BuildData struct {
	Revision     Revision
	Version      Version
	Slot         Slot
	Package      Package
	Packager     Packager
	Distribution Distribution
}

// PackageInfo is a Package with its Slots loaded, ordered by slot key.
type PackageInfo struct {
	Package Package
}
