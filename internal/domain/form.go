package domain

import "sort"

// FormState maps slot keys to their canonical values. Multi-value slots are
// stored comma-joined and Dosage holds a JSON-encoded name->amount map.
type FormState map[SlotKey]string

// Has reports whether key has been answered.
func (f FormState) Has(key SlotKey) bool {
	_, ok := f[key]
	return ok
}

// With returns a copy of f with key set to value.
func (f FormState) With(key SlotKey, value string) FormState {
	out := f.Clone()
	out[key] = value
	return out
}

// Clone returns a shallow copy that is never nil.
func (f FormState) Clone() FormState {
	out := make(FormState, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Keys returns the answered keys in lexical order.
func (f FormState) Keys() []SlotKey {
	keys := make([]SlotKey, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
