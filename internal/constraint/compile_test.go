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

package constraint

import "testing"

func TestSlotCompile(t *testing.T) {
	mk := func(key string) Slot[sv] {
		v := mustSemver(t, key)
		return Slot[sv]{Key: key, OSPackageName: "bar-" + key, Min: v, Max: partialUpper(v)}
	}

	slots := []Slot[sv]{
		mk("1.1"), mk("1.2"), mk("1.3"), mk("1.4"), mk("2.0"), mk("2.1"),
	}

	c, err := ParseSemverConstraints("^1.2.3")
	if err != nil {
		t.Fatalf("ParseSemverConstraints: %v", err)
	}

	deps := CompileToSlots(c, slots)
	got := RenderDependency(deps)
	want := "bar-1.4 | bar-1.3 | bar-1.2 (>= 1.2.3)"
	if got != want {
		t.Errorf("RenderDependency = %q, want %q", got, want)
	}
}

func TestSlotCompileExact(t *testing.T) {
	mk := func(key string) Slot[sv] {
		v := mustSemver(t, key)
		return Slot[sv]{Key: key, OSPackageName: "bar-" + key, Min: v, Max: partialUpper(v)}
	}
	slots := []Slot[sv]{mk("1.2"), mk("1.3")}

	c := Leaf(Exact, mustSemver(t, "1.2.5"))
	deps := CompileToSlots(c, slots)
	if len(deps) != 1 {
		t.Fatalf("expected exactly one compiled dependency, got %d", len(deps))
	}
	if deps[0].Slot.Key != "1.2" {
		t.Errorf("exact constraint resolved to slot %q, want %q", deps[0].Slot.Key, "1.2")
	}
}

func TestSlotCompileAll(t *testing.T) {
	mk := func(key string) Slot[sv] {
		v := mustSemver(t, key)
		return Slot[sv]{Key: key, OSPackageName: "bar-" + key, Min: v, Max: partialUpper(v)}
	}
	slots := []Slot[sv]{mk("1.2"), mk("1.3")}

	deps := CompileToSlots(All[sv](), slots)
	if len(deps) != len(slots) {
		t.Fatalf("All should include every slot, got %d of %d", len(deps), len(slots))
	}
	for _, d := range deps {
		if len(d.Qualifiers) != 0 {
			t.Errorf("All-compiled slot %q should be unqualified, got %v", d.Slot.Key, d.Qualifiers)
		}
	}
}

func TestDependencySoundness(t *testing.T) {
	mk := func(key string) Slot[sv] {
		v := mustSemver(t, key)
		return Slot[sv]{Key: key, OSPackageName: "bar-" + key, Min: v, Max: partialUpper(v)}
	}
	slots := []Slot[sv]{mk("1.1"), mk("1.2"), mk("1.3"), mk("1.4"), mk("2.0")}

	c, err := ParseSemverConstraints("^1.2.3")
	if err != nil {
		t.Fatalf("ParseSemverConstraints: %v", err)
	}
	deps := CompileToSlots(c, slots)
	for _, d := range deps {
		if !c.Matches(d.Slot.Min) && !c.Matches(d.Slot.Max) {
			t.Errorf("slot %q compiled into the dependency but neither endpoint satisfies the constraint", d.Slot.Key)
		}
	}
}
