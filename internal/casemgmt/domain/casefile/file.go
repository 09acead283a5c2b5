// Package casefile models the per-case mutable data bag: named, dynamically
// typed values with placeholder resolution for dynamic task specifications.
package casefile

import (
	"sort"
	"strings"
)

// File is a snapshot of a case's data bag. It is a value type: mutations act
// on the receiver's private map, and Clone produces an independent copy, so a
// File handed out by the engine never aliases live engine state.
type File struct {
	values map[string]Value
}

// New creates an empty case file.
func New() *File {
	return &File{values: map[string]Value{}}
}

// FromMap creates a case file from the given values. Blank names are skipped.
func FromMap(values map[string]Value) *File {
	file := New()
	for name, value := range values {
		file.Set(name, value)
	}
	return file
}

// Set upserts a named value. A blank name is ignored.
func (f *File) Set(name string, value Value) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if f.values == nil {
		f.values = map[string]Value{}
	}
	f.values[name] = value
}

// Get returns the named value and whether it exists.
func (f *File) Get(name string) (Value, bool) {
	if f == nil || f.values == nil {
		return Value{}, false
	}
	value, ok := f.values[strings.TrimSpace(name)]
	return value, ok
}

// Remove deletes the named value. Removing an absent name is a no-op.
func (f *File) Remove(name string) {
	if f == nil || f.values == nil {
		return
	}
	delete(f.values, strings.TrimSpace(name))
}

// Names returns all value names in lexical order.
func (f *File) Names() []string {
	if f == nil {
		return nil
	}
	names := make([]string, 0, len(f.values))
	for name := range f.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of values.
func (f *File) Len() int {
	if f == nil {
		return 0
	}
	return len(f.values)
}

// Map returns a copy of the underlying values.
func (f *File) Map() map[string]Value {
	out := make(map[string]Value, f.Len())
	if f == nil {
		return out
	}
	for name, value := range f.values {
		out[name] = value
	}
	return out
}

// Clone returns an independent copy of the file.
func (f *File) Clone() *File {
	return FromMap(f.Map())
}

// Document returns the file as a generic JSON-like document keyed by variable
// name, the shape JSON-schema governance validates against.
func (f *File) Document() (map[string]any, error) {
	doc := make(map[string]any, f.Len())
	if f == nil {
		return doc, nil
	}
	for name, value := range f.values {
		decoded, err := value.Interface()
		if err != nil {
			return nil, err
		}
		doc[name] = decoded
	}
	return doc, nil
}
