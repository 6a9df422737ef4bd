package hashmap_test

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/AmirTallap/Salam/pkg/hashmap"
)

// resource counts destructor invocations so ownership rules are observable.
type resource struct {
	id     string
	closed int
}

func closeResource(r *resource) { r.closed++ }

func printResource(w io.Writer, r *resource) { fmt.Fprintf(w, "res(%s)", r.id) }

func TestPutGetHas(t *testing.T) {
	m := hashmap.New[int](hashmap.DefaultCapacity)
	m.Put("width", 100)
	m.Put("height", 40)

	if v, ok := m.Get("width"); !ok || v != 100 {
		t.Fatalf("Get(width) = %d, %v; want 100, true", v, ok)
	}
	if v, ok := m.Get("height"); !ok || v != 40 {
		t.Fatalf("Get(height) = %d, %v; want 40, true", v, ok)
	}
	if _, ok := m.Get("depth"); ok {
		t.Fatal("Get(depth) reported a missing key as present")
	}
	if !m.Has("width") || m.Has("depth") {
		t.Fatal("Has disagrees with Get")
	}
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
}

func TestPutOverwriteReleasesOldValue(t *testing.T) {
	m := hashmap.NewFunc(hashmap.DefaultCapacity, closeResource, printResource)
	first := &resource{id: "first"}
	second := &resource{id: "second"}

	m.Put("color", first)
	m.Put("color", second)

	if first.closed != 1 {
		t.Errorf("old value released %d times, want 1", first.closed)
	}
	if second.closed != 0 {
		t.Errorf("new value released %d times, want 0", second.closed)
	}
	if v, _ := m.Get("color"); v != second {
		t.Errorf("Get(color) = %v, want the last value written", v)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d after overwrite, want 1", m.Len())
	}
}

func TestPutWithOverridesBoundDestructor(t *testing.T) {
	m := hashmap.NewFunc(hashmap.DefaultCapacity, closeResource, nil)
	old := &resource{id: "old"}
	m.Put("k", old)

	custom := 0
	m.PutWith("k", &resource{id: "new"}, func(*resource) { custom++ })

	if custom != 1 {
		t.Errorf("custom destructor ran %d times, want 1", custom)
	}
	if old.closed != 0 {
		t.Errorf("bound destructor ran %d times, want 0", old.closed)
	}
}

func TestCollidingKeysStayIndependent(t *testing.T) {
	// "a" and "i" land in the same bucket of an 8-bucket table under the
	// DJB2 hash; a single-bucket table forces every key to collide.
	for _, capacity := range []int{1, 8} {
		m := hashmap.New[string](capacity)
		m.Put("a", "alpha")
		m.Put("i", "iota")
		m.Put("q", "quebec")

		for key, want := range map[string]string{"a": "alpha", "i": "iota", "q": "quebec"} {
			if v, ok := m.Get(key); !ok || v != want {
				t.Errorf("cap %d: Get(%s) = %q, %v; want %q, true", capacity, key, v, ok, want)
			}
		}

		if v, ok := m.Remove("i"); !ok || v != "iota" {
			t.Fatalf("cap %d: Remove(i) = %q, %v", capacity, v, ok)
		}
		if m.Has("i") {
			t.Errorf("cap %d: removed key still present", capacity)
		}
		if !m.Has("a") || !m.Has("q") {
			t.Errorf("cap %d: removing one chain entry disturbed its neighbors", capacity)
		}
	}
}

func TestGrowthDoublesAtLoadFactor(t *testing.T) {
	m := hashmap.New[int](4)
	m.Put("k1", 1)
	m.Put("k2", 2)
	if m.Cap() != 4 {
		t.Fatalf("Cap() = %d before the threshold, want 4", m.Cap())
	}

	// The third insert reaches 3/4 = 0.75 and must trigger a doubling.
	m.Put("k3", 3)
	if m.Cap() != 8 {
		t.Fatalf("Cap() = %d after hitting the load factor, want 8", m.Cap())
	}

	for i := 4; i <= 12; i++ {
		m.Put(fmt.Sprintf("k%d", i), i)
	}
	if m.Cap() != 32 {
		t.Errorf("Cap() = %d after 12 inserts, want 32", m.Cap())
	}
	if m.Len() != 12 {
		t.Errorf("Len() = %d, want 12", m.Len())
	}
	for i := 1; i <= 12; i++ {
		key := fmt.Sprintf("k%d", i)
		if v, ok := m.Get(key); !ok || v != i {
			t.Errorf("Get(%s) = %d, %v after growth; want %d, true", key, v, ok, i)
		}
	}
}

func TestRemoveTransfersOwnership(t *testing.T) {
	m := hashmap.NewFunc(hashmap.DefaultCapacity, closeResource, nil)
	r := &resource{id: "r"}
	m.Put("k", r)

	v, ok := m.Remove("k")
	if !ok || v != r {
		t.Fatalf("Remove(k) = %v, %v; want the stored value, true", v, ok)
	}
	if r.closed != 0 {
		t.Errorf("Remove ran the destructor %d times; ownership belongs to the caller", r.closed)
	}
	if m.Len() != 0 || m.Has("k") {
		t.Error("entry still present after Remove")
	}

	if _, ok := m.Remove("absent"); ok {
		t.Error("Remove(absent) = true, want false")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after removing an absent key, want 0", m.Len())
	}
}

func TestDestroyReleasesEveryValueOnce(t *testing.T) {
	m := hashmap.NewFunc(4, closeResource, nil)
	all := make([]*resource, 0, 7)
	for i := 0; i < 7; i++ {
		r := &resource{id: fmt.Sprintf("r%d", i)}
		all = append(all, r)
		m.Put(r.id, r)
	}
	capBefore := m.Cap()

	m.Destroy()

	for _, r := range all {
		if r.closed != 1 {
			t.Errorf("%s released %d times, want exactly 1", r.id, r.closed)
		}
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after Destroy, want 0", m.Len())
	}
	if m.Cap() != capBefore {
		t.Errorf("Cap() = %d after Destroy, want %d retained", m.Cap(), capBefore)
	}

	// The emptied table stays usable.
	m.Put("again", &resource{id: "again"})
	if v, ok := m.Get("again"); !ok || v.id != "again" {
		t.Error("table unusable after Destroy")
	}
}

func TestDestroyWithNilOnlyEmpties(t *testing.T) {
	m := hashmap.NewFunc(4, closeResource, nil)
	r := &resource{id: "r"}
	m.Put("k", r)

	m.DestroyWith(nil)

	if r.closed != 0 {
		t.Errorf("nil destructor still released the value %d times", r.closed)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after DestroyWith(nil), want 0", m.Len())
	}
}

func TestRangeAndKeys(t *testing.T) {
	m := hashmap.New[int](4)
	want := map[string]int{"a": 1, "b": 2, "c": 3}
	for k, v := range want {
		m.Put(k, v)
	}

	got := map[string]int{}
	m.Range(func(key string, value int) bool {
		got[key] = value
		return true
	})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Range mismatch (-want +got):\n%s", diff)
	}

	keys := m.Keys()
	sort.Strings(keys)
	if diff := cmp.Diff([]string{"a", "b", "c"}, keys); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}

	visited := 0
	m.Range(func(string, int) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Errorf("Range visited %d entries after fn returned false, want 1", visited)
	}
}

func TestPrint(t *testing.T) {
	m := hashmap.New[int](2)
	var b strings.Builder
	m.Print(&b)
	if got, want := b.String(), "hashmap length: 0\nhashmap is empty\n"; got != want {
		t.Errorf("empty Print = %q, want %q", got, want)
	}

	m.Put("a", 1)
	b.Reset()
	m.Print(&b)
	if got, want := b.String(), "hashmap length: 1\n[0] key: a, value: 1\n"; got != want {
		t.Errorf("Print = %q, want %q", got, want)
	}
}

func TestPrintWithCustomPrinter(t *testing.T) {
	m := hashmap.NewFunc(2, nil, printResource)
	m.Put("k", &resource{id: "x"})

	var b strings.Builder
	m.Print(&b)
	if !strings.Contains(b.String(), "value: res(x)") {
		t.Errorf("bound printer not used: %q", b.String())
	}

	b.Reset()
	m.PrintWith(&b, func(w io.Writer, r *resource) { fmt.Fprintf(w, "<%s>", r.id) })
	if !strings.Contains(b.String(), "value: <x>") {
		t.Errorf("explicit printer not used: %q", b.String())
	}
}

func TestNewRejectsZeroCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New(0) did not panic")
		}
	}()
	hashmap.New[int](0)
}
