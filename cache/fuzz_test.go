//go:build go1.18

package cache

import (
	"strings"
	"testing"
)

// Fuzz basic Put/GetIfAvailable/Remove semantics under arbitrary string
// inputs. Guards against panics and checks the round-trip invariants from
// the testable-properties list.
func FuzzPutGetRemove(f *testing.F) {
	f.Add("", "")
	f.Add("a", "1")
	f.Add("b", "2")
	f.Add("αβγ", "δ")
	f.Add("emoji🙂", "🙂🙂")
	f.Add("long", strings.Repeat("x", 1024))

	f.Fuzz(func(t *testing.T, k, v string) {
		const limit = 1 << 12
		if len(k) > limit {
			k = k[:limit]
		}
		if len(v) > limit {
			v = v[:limit]
		}

		c := New[string, string](Options[string, string]{MaxSize: 16})

		c.Put(k, v)
		got, ok := c.GetIfAvailable(k)
		if !ok || got != v {
			t.Fatalf("after Put/GetIfAvailable: want %q, got %q ok=%v", v, got, ok)
		}

		prev, hadPrev := c.Put(k, "other")
		if !hadPrev || prev != v {
			t.Fatalf("replacing Put must report the previous value: got %q, %v", prev, hadPrev)
		}

		removed, ok := c.Remove(k)
		if !ok || removed != "other" {
			t.Fatalf("Remove must report the value just committed: got %q, %v", removed, ok)
		}
		if _, ok := c.GetIfAvailable(k); ok {
			t.Fatalf("key must be absent after Remove")
		}

		if _, hadPrev := c.Put(k, v); hadPrev {
			t.Fatalf("Put after Remove must report no previous value")
		}
	})
}
