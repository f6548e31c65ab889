// Package collection provides an ordered generic sequence with the
// aggregate operations the model layer returns results in. Operations
// return a new collection unless documented as in-place.
package collection

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// Serializer is implemented by elements (models) that know how to
// project themselves into a plain map.
type Serializer interface {
	Serialize() map[string]any
}

// Collection is an ordered sequence of T.
//
// A Collection is not safe for concurrent mutation.
type Collection[T any] struct {
	items []T
}

// New returns a collection over items. The slice is adopted, not copied.
func New[T any](items ...T) *Collection[T] {
	return &Collection[T]{items: items}
}

// All returns the underlying slice.
func (c *Collection[T]) All() []T { return c.items }

// Count returns the number of elements.
func (c *Collection[T]) Count() int { return len(c.items) }

// IsEmpty reports whether the collection has no elements.
func (c *Collection[T]) IsEmpty() bool { return len(c.items) == 0 }

// First returns the first element, or the zero value when empty.
func (c *Collection[T]) First() T {
	var zero T
	if len(c.items) == 0 {
		return zero
	}
	return c.items[0]
}

// Last returns the last element, or the zero value when empty.
func (c *Collection[T]) Last() T {
	var zero T
	if len(c.items) == 0 {
		return zero
	}
	return c.items[len(c.items)-1]
}

// Get returns the element at index, or the zero value when out of range.
func (c *Collection[T]) Get(index int) T {
	var zero T
	if index < 0 || index >= len(c.items) {
		return zero
	}
	return c.items[index]
}

// Each invokes fn for every element.
func (c *Collection[T]) Each(fn func(T)) *Collection[T] {
	for _, it := range c.items {
		fn(it)
	}
	return c
}

// Map returns a new collection with fn applied to every element.
func (c *Collection[T]) Map(fn func(T) T) *Collection[T] {
	out := make([]T, len(c.items))
	for i, it := range c.items {
		out[i] = fn(it)
	}
	return New(out...)
}

// Filter returns a new collection of the elements fn accepts.
func (c *Collection[T]) Filter(fn func(T) bool) *Collection[T] {
	var out []T
	for _, it := range c.items {
		if fn(it) {
			out = append(out, it)
		}
	}
	return New(out...)
}

// Where returns a new collection of the elements whose key equals
// value. Keys are read from map elements directly and from model
// elements through their serialization; values compare by their
// normalized string form, so int64(1) matches 1.
func (c *Collection[T]) Where(key string, value any) *Collection[T] {
	want := normalize(value)
	return c.Filter(func(it T) bool {
		return normalize(elementValue(it, key)) == want
	})
}

// Diff returns a new collection of the elements not present in other,
// compared by serialized identity.
func (c *Collection[T]) Diff(other *Collection[T]) *Collection[T] {
	seen := make(map[string]struct{}, len(other.items))
	for _, it := range other.items {
		seen[identity(it)] = struct{}{}
	}
	return c.Filter(func(it T) bool {
		_, ok := seen[identity(it)]
		return !ok
	})
}

// Implode joins the elements into one string separated by glue. With a
// key, the joined values are read per element the way Where reads them;
// without one the elements render directly.
func (c *Collection[T]) Implode(glue string, key ...string) string {
	parts := make([]string, len(c.items))
	for i, it := range c.items {
		v := any(it)
		if len(key) > 0 {
			v = elementValue(it, key[0])
		}
		parts[i] = normalize(v)
	}
	return strings.Join(parts, glue)
}

// Contains reports whether fn accepts any element.
func (c *Collection[T]) Contains(fn func(T) bool) bool {
	for _, it := range c.items {
		if fn(it) {
			return true
		}
	}
	return false
}

// Take returns a new collection with the first n elements (or the last
// -n for negative n).
func (c *Collection[T]) Take(n int) *Collection[T] {
	if n < 0 {
		if -n >= len(c.items) {
			return New(append([]T(nil), c.items...)...)
		}
		return New(append([]T(nil), c.items[len(c.items)+n:]...)...)
	}
	if n > len(c.items) {
		n = len(c.items)
	}
	return New(append([]T(nil), c.items[:n]...)...)
}

// Chunk splits the collection into batches of the given size.
func (c *Collection[T]) Chunk(size int) []*Collection[T] {
	if size < 1 {
		return nil
	}
	var out []*Collection[T]
	for i := 0; i < len(c.items); i += size {
		end := min(i+size, len(c.items))
		out = append(out, New(append([]T(nil), c.items[i:end]...)...))
	}
	return out
}

// ForPage returns the page-th batch of the given size, 1-indexed.
func (c *Collection[T]) ForPage(page, size int) *Collection[T] {
	if page < 1 || size < 1 {
		return New[T]()
	}
	start := (page - 1) * size
	if start >= len(c.items) {
		return New[T]()
	}
	end := min(start+size, len(c.items))
	return New(append([]T(nil), c.items[start:end]...)...)
}

// GroupBy partitions elements by the key fn derives.
func (c *Collection[T]) GroupBy(fn func(T) any) map[any]*Collection[T] {
	out := make(map[any]*Collection[T])
	for _, it := range c.items {
		k := fn(it)
		if out[k] == nil {
			out[k] = New[T]()
		}
		out[k].Push(it)
	}
	return out
}

// SortBy returns a new collection sorted by the comparison fn (stable).
func (c *Collection[T]) SortBy(less func(a, b T) bool) *Collection[T] {
	out := append([]T(nil), c.items...)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return New(out...)
}

// Unique returns a new collection keeping the first element per key.
func (c *Collection[T]) Unique(key func(T) any) *Collection[T] {
	seen := make(map[any]struct{}, len(c.items))
	var out []T
	for _, it := range c.items {
		k := key(it)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return New(out...)
}

// Zip pairs elements with those of other, stopping at the shorter.
func (c *Collection[T]) Zip(other *Collection[T]) *Collection[[2]T] {
	n := min(len(c.items), len(other.items))
	out := make([][2]T, n)
	for i := 0; i < n; i++ {
		out[i] = [2]T{c.items[i], other.items[i]}
	}
	return &Collection[[2]T]{items: out}
}

// Random returns a uniformly chosen element, or the zero value when
// empty.
func (c *Collection[T]) Random() T {
	var zero T
	if len(c.items) == 0 {
		return zero
	}
	return c.items[rand.Intn(len(c.items))]
}

// Merge appends items in place.
func (c *Collection[T]) Merge(items ...T) *Collection[T] {
	c.items = append(c.items, items...)
	return c
}

// Push appends one element in place.
func (c *Collection[T]) Push(item T) *Collection[T] {
	c.items = append(c.items, item)
	return c
}

// Prepend inserts an element at the front in place.
func (c *Collection[T]) Prepend(item T) *Collection[T] {
	c.items = append([]T{item}, c.items...)
	return c
}

// Pop removes and returns the last element in place.
func (c *Collection[T]) Pop() T {
	var zero T
	if len(c.items) == 0 {
		return zero
	}
	it := c.items[len(c.items)-1]
	c.items = c.items[:len(c.items)-1]
	return it
}

// Shift removes and returns the first element in place.
func (c *Collection[T]) Shift() T {
	var zero T
	if len(c.items) == 0 {
		return zero
	}
	it := c.items[0]
	c.items = c.items[1:]
	return it
}

// Put replaces the element at index in place.
func (c *Collection[T]) Put(index int, item T) *Collection[T] {
	if index >= 0 && index < len(c.items) {
		c.items[index] = item
	}
	return c
}

// Pull removes and returns the element at index in place.
func (c *Collection[T]) Pull(index int) T {
	var zero T
	if index < 0 || index >= len(c.items) {
		return zero
	}
	it := c.items[index]
	c.items = append(c.items[:index], c.items[index+1:]...)
	return it
}

// Forget removes the element at index in place.
func (c *Collection[T]) Forget(index int) *Collection[T] {
	if index >= 0 && index < len(c.items) {
		c.items = append(c.items[:index], c.items[index+1:]...)
	}
	return c
}

// Reverse reverses the order in place.
func (c *Collection[T]) Reverse() *Collection[T] {
	for i, j := 0, len(c.items)-1; i < j; i, j = i+1, j-1 {
		c.items[i], c.items[j] = c.items[j], c.items[i]
	}
	return c
}

// Reject removes, in place, the elements fn accepts.
func (c *Collection[T]) Reject(fn func(T) bool) *Collection[T] {
	out := c.items[:0]
	for _, it := range c.items {
		if !fn(it) {
			out = append(out, it)
		}
	}
	c.items = out
	return c
}

// Transform applies fn to every element in place.
func (c *Collection[T]) Transform(fn func(T) T) *Collection[T] {
	for i, it := range c.items {
		c.items[i] = fn(it)
	}
	return c
}

// Serialize projects every element: elements implementing Serializer
// use their own projection, others are passed through.
func (c *Collection[T]) Serialize() []any {
	out := make([]any, len(c.items))
	for i, it := range c.items {
		if s, ok := any(it).(Serializer); ok {
			out[i] = s.Serialize()
			continue
		}
		out[i] = it
	}
	return out
}

// ToJSON renders the serialized collection as UTF-8 JSON.
func (c *Collection[T]) ToJSON() ([]byte, error) {
	return json.Marshal(c.Serialize())
}

// elementValue reads a keyed value from a map or model element; other
// element types have no keyed values and yield nil.
func elementValue[T any](it T, key string) any {
	switch v := any(it).(type) {
	case map[string]any:
		return v[key]
	case Serializer:
		return v.Serialize()[key]
	}
	return nil
}

// normalize renders a value for comparison and joining so driver types
// (int64 vs int vs string) agree.
func normalize(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// identity renders a whole element for Diff comparison, using the
// model serialization when available.
func identity[T any](it T) string {
	v := any(it)
	if s, ok := v.(Serializer); ok {
		v = s.Serialize()
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}

// Flatten merges nested collections (such as Chunk output) back into
// one collection, preserving order.
func Flatten[T any](groups []*Collection[T]) *Collection[T] {
	out := New[T]()
	for _, g := range groups {
		if g != nil {
			out.Merge(g.All()...)
		}
	}
	return out
}

// Pluck extracts one value per element via fn.
func Pluck[T, V any](c *Collection[T], fn func(T) V) []V {
	out := make([]V, c.Count())
	for i, it := range c.All() {
		out[i] = fn(it)
	}
	return out
}

// Sum totals the values fn derives.
func Sum[T any](c *Collection[T], fn func(T) float64) float64 {
	var total float64
	for _, it := range c.All() {
		total += fn(it)
	}
	return total
}

// Avg averages the values fn derives; zero for an empty collection.
func Avg[T any](c *Collection[T], fn func(T) float64) float64 {
	if c.Count() == 0 {
		return 0
	}
	return Sum(c, fn) / float64(c.Count())
}

// Max returns the largest value fn derives; zero for an empty
// collection.
func Max[T any](c *Collection[T], fn func(T) float64) float64 {
	var best float64
	for i, it := range c.All() {
		v := fn(it)
		if i == 0 || v > best {
			best = v
		}
	}
	return best
}

// Min returns the smallest value fn derives; zero for an empty
// collection.
func Min[T any](c *Collection[T], fn func(T) float64) float64 {
	var best float64
	for i, it := range c.All() {
		v := fn(it)
		if i == 0 || v < best {
			best = v
		}
	}
	return best
}
