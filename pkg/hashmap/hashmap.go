// Package hashmap implements the separate-chaining hash table used for
// attribute and symbol storage. Not safe for concurrent use.
package hashmap

import (
	"fmt"
	"io"
	"slices"
)

const DefaultCapacity = 16

const maxLoadFactor = 0.75

type DestroyFunc[V any] func(V)

type PrintFunc[V any] func(w io.Writer, v V)

type entry[V any] struct {
	key   string
	value V
}

// Map must be constructed with New or NewFunc; the zero value is not
// usable.
type Map[V any] struct {
	buckets [][]entry[V]
	length  int
	destroy DestroyFunc[V]
	print   PrintFunc[V]
}

func New[V any](capacity int) *Map[V] {
	return NewFunc[V](capacity, nil, nil)
}

// NewFunc binds a default destructor and printer; either may be nil.
func NewFunc[V any](capacity int, destroy DestroyFunc[V], print PrintFunc[V]) *Map[V] {
	if capacity < 1 {
		panic("hashmap: capacity must be at least 1")
	}
	return &Map[V]{
		buckets: make([][]entry[V], capacity),
		destroy: destroy,
		print:   print,
	}
}

// DJB2 over the key's bytes.
func hashKey(key string) uint64 {
	h := uint64(5381)
	for i := 0; i < len(key); i++ {
		h = (h << 5) + h + uint64(key[i])
	}
	return h
}

func (m *Map[V]) bucketIndex(key string) int {
	return int(hashKey(key) % uint64(len(m.buckets)))
}

func (m *Map[V]) Len() int { return m.length }

func (m *Map[V]) Cap() int { return len(m.buckets) }

func (m *Map[V]) Put(key string, value V) {
	m.PutWith(key, value, m.destroy)
}

// PutWith releases an overwritten value through destroy (nil skips
// that) and keeps the entry's bucket position.
func (m *Map[V]) PutWith(key string, value V, destroy DestroyFunc[V]) {
	idx := m.bucketIndex(key)
	b := m.buckets[idx]
	for i := range b {
		if b[i].key == key {
			if destroy != nil {
				destroy(b[i].value)
			}
			b[i].value = value
			return
		}
	}
	m.buckets[idx] = slices.Insert(b, 0, entry[V]{key: key, value: value})
	m.length++
	if float64(m.length)/float64(len(m.buckets)) >= maxLoadFactor {
		m.grow()
	}
}

func (m *Map[V]) grow() {
	next := make([][]entry[V], len(m.buckets)*2)
	for _, b := range m.buckets {
		for _, e := range b {
			idx := int(hashKey(e.key) % uint64(len(next)))
			next[idx] = append(next[idx], e)
		}
	}
	m.buckets = next
}

func (m *Map[V]) Get(key string) (V, bool) {
	b := m.buckets[m.bucketIndex(key)]
	for i := range b {
		if b[i].key == key {
			return b[i].value, true
		}
	}
	var zero V
	return zero, false
}

func (m *Map[V]) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Remove hands the value back without running a destructor; ownership
// transfers to the caller.
func (m *Map[V]) Remove(key string) (V, bool) {
	idx := m.bucketIndex(key)
	b := m.buckets[idx]
	for i := range b {
		if b[i].key == key {
			v := b[i].value
			m.buckets[idx] = slices.Delete(b, i, i+1)
			m.length--
			return v, true
		}
	}
	var zero V
	return zero, false
}

// Range visits entries in unspecified order until fn returns false.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	for _, b := range m.buckets {
		for i := range b {
			if !fn(b[i].key, b[i].value) {
				return
			}
		}
	}
}

func (m *Map[V]) Keys() []string {
	keys := make([]string, 0, m.length)
	for _, b := range m.buckets {
		for i := range b {
			keys = append(keys, b[i].key)
		}
	}
	return keys
}

func (m *Map[V]) Destroy() {
	m.DestroyWith(m.destroy)
}

// DestroyWith releases every value through destroy and empties the
// table. The bucket count is retained.
func (m *Map[V]) DestroyWith(destroy DestroyFunc[V]) {
	for i, b := range m.buckets {
		if destroy != nil {
			for j := range b {
				destroy(b[j].value)
			}
		}
		m.buckets[i] = nil
	}
	m.length = 0
}

func (m *Map[V]) Print(w io.Writer) {
	m.PrintWith(w, m.print)
}

func (m *Map[V]) PrintWith(w io.Writer, print PrintFunc[V]) {
	fmt.Fprintf(w, "hashmap length: %d\n", m.length)
	if m.length == 0 {
		fmt.Fprintln(w, "hashmap is empty")
		return
	}
	for i, b := range m.buckets {
		for _, e := range b {
			fmt.Fprintf(w, "[%d] key: %s, value: ", i, e.key)
			if print != nil {
				print(w, e.value)
			} else {
				fmt.Fprintf(w, "%v", e.value)
			}
			fmt.Fprintln(w)
		}
	}
}
