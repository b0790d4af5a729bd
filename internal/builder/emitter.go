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

// Package builder implements the packager-agnostic pipeline and emitter
// protocol: generators never touch the filesystem directly, they yield
// typed records that the base builder fans out into a deterministic
// debian/ tree.
package builder

// Record is one unit of packaging intent a generator yields. Each
// concrete constructor below sets only the fields grouped under its name
// (plus kind); the struct is kept flat rather than an interface so Collector can process
// a []Record with a single type switch.
type Record struct {
	kind recordKind

	// SourceControl / BuildDependency
	ControlFields map[string]string
	BuildDep      string

	// Package
	PackageName string
	Arch        string
	Section     string
	Description string

	// Dependency / Provide
	Dep     string
	Provide string

	// Symlink
	LinkDest string
	LinkSrc  string

	// Install / InstallInto
	Obj  string
	Dest string
	Dir  string

	// InstallContent / DebianContent
	ContentName string
	Content     []byte
	Mode        uint32

	// RuleOverride / RuleAction
	RuleTarget string
	RuleCmd    string

	// FastBuild
	FastBuildPossible bool
}

type recordKind int

const (
	kindSourceControl recordKind = iota
	kindBuildDependency
	kindPackage
	kindDependency
	kindProvide
	kindSymlink
	kindInstall
	kindInstallInto
	kindInstallContent
	kindDebianContent
	kindRuleOverride
	kindRuleAction
	kindFastBuild
)

// SourceControl merges key-value pairs into the source control stanza.
func SourceControl(fields map[string]string) Record {
	return Record{kind: kindSourceControl, ControlFields: fields}
}

// BuildDependency appends to the source stanza's build-deps.
func BuildDependency(dep string) Record {
	return Record{kind: kindBuildDependency, BuildDep: dep}
}

// Package opens a new binary-package stanza.
func Package(name, arch, section, description string) Record {
	return Record{kind: kindPackage, PackageName: name, Arch: arch, Section: section, Description: description}
}

// Dependency appends to a package's Depends field.
func Dependency(pkg, dep string) Record {
	return Record{kind: kindDependency, PackageName: pkg, Dep: dep}
}

// Provide appends to a package's Provides field.
func Provide(pkg, provide string) Record {
	return Record{kind: kindProvide, PackageName: pkg, Provide: provide}
}

// Symlink records a link in the package's .links manifest.
func Symlink(pkg, dest, src string) Record {
	return Record{kind: kindSymlink, PackageName: pkg, LinkDest: dest, LinkSrc: src}
}

// Install records a file install into the package's .install manifest.
func Install(pkg, obj, dest string) Record {
	return Record{kind: kindInstall, PackageName: pkg, Obj: obj, Dest: dest}
}

// InstallInto is Install with a destination directory rather than a
// renamed destination path.
func InstallInto(pkg, obj, dir string) Record {
	return Record{kind: kindInstallInto, PackageName: pkg, Obj: obj, Dir: dir}
}

// InstallContent writes debian/<name> with content and mode, then
// installs it into pkg at dest.
func InstallContent(pkg, name, dest string, content []byte, mode uint32) Record {
	return Record{kind: kindInstallContent, PackageName: pkg, ContentName: name, Dest: dest, Content: content, Mode: mode}
}

// DebianContent writes an auxiliary debian/<name> file that is not
// installed directly (a maintainer script, a library shim).
func DebianContent(name string, content []byte, mode uint32) Record {
	return Record{kind: kindDebianContent, ContentName: name, Content: content, Mode: mode}
}

// RuleOverride starts (or replaces) an override_dh_auto_<target> block.
func RuleOverride(target string) Record {
	return Record{kind: kindRuleOverride, RuleTarget: target}
}

// RuleAction appends one command line to an override_dh_auto_<target>
// block.
func RuleAction(target, cmd string) Record {
	return Record{kind: kindRuleAction, RuleTarget: target, RuleCmd: cmd}
}

// FastBuild is the conjunctive fast-build-possible signal: if any
// generator emits false, the hermetic (chroot) build path is used.
func FastBuild(possible bool) Record {
	return Record{kind: kindFastBuild, FastBuildPossible: possible}
}
