// Package principal models the authenticated identity attached to a request:
// a set of named claims, each holding a scalar value (string, int64, float64,
// bool) or a non-empty array of scalars.
package principal

import (
	"errors"
	"sort"
	"strconv"
)

// Well-known claim names.
const (
	// SubjectClaim identifies the caller (JWT "sub").
	SubjectClaim = "sub"

	// RoleClaim carries role membership, scalar or array-valued.
	RoleClaim = "role"

	// TierClaim carries the service tier used for rate limiting.
	TierClaim = "tier"
)

// ErrEmptyArray is returned when constructing an array value with no elements.
var ErrEmptyArray = errors.New("principal: empty array claim")

// ErrNestedArray is returned when an array element is itself an array.
var ErrNestedArray = errors.New("principal: nested array claim")

// Kind discriminates the variants of a claim Value.
type Kind int

const (
	KindString Kind = iota
	KindInt64
	KindFloat64
	KindBool
	KindArray
)

// Value is a claim value: one of the four scalar kinds, or an array of them.
// The zero Value is the empty string.
type Value struct {
	kind Kind
	str  string
	i64  int64
	f64  float64
	b    bool
	arr  []Value
}

// String creates a string claim value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int64 creates an integer claim value.
func Int64(i int64) Value { return Value{kind: KindInt64, i64: i} }

// Float64 creates a floating-point claim value.
func Float64(f float64) Value { return Value{kind: KindFloat64, f64: f} }

// Bool creates a boolean claim value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Array creates an array claim value from scalar elements. An empty array is
// not a representable claim, and arrays do not nest.
func Array(elems ...Value) (Value, error) {
	if len(elems) == 0 {
		return Value{}, ErrEmptyArray
	}
	for _, e := range elems {
		if e.kind == KindArray {
			return Value{}, ErrNestedArray
		}
	}
	vals := make([]Value, len(elems))
	copy(vals, elems)
	return Value{kind: KindArray, arr: vals}, nil
}

// Strings creates an array claim value from strings. It fails on empty input
// like Array.
func Strings(elems ...string) (Value, error) {
	vals := make([]Value, len(elems))
	for i, s := range elems {
		vals[i] = String(s)
	}
	return Array(vals...)
}

// Kind reports the variant held by the value.
func (v Value) Kind() Kind { return v.kind }

// AsString returns the string scalar and whether the value holds one.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsInt64 returns the integer scalar and whether the value holds one.
func (v Value) AsInt64() (int64, bool) { return v.i64, v.kind == KindInt64 }

// AsFloat64 returns the float scalar and whether the value holds one.
func (v Value) AsFloat64() (float64, bool) { return v.f64, v.kind == KindFloat64 }

// AsBool returns the boolean scalar and whether the value holds one.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// Elems returns the array elements, or nil for scalar values. The returned
// slice must not be modified.
func (v Value) Elems() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// Contains reports whether the value is the string s, or an array containing
// it. Comparison is exact and case-sensitive.
func (v Value) Contains(s string) bool {
	if v.kind == KindString {
		return v.str == s
	}
	if v.kind == KindArray {
		for _, e := range v.arr {
			if e.kind == KindString && e.str == s {
				return true
			}
		}
	}
	return false
}

// String renders the value for logging. Arrays render as their elements
// joined with commas.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt64:
		return strconv.FormatInt(v.i64, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.f64, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindArray:
		out := ""
		for i, e := range v.arr {
			if i > 0 {
				out += ","
			}
			out += e.String()
		}
		return out
	}
	return ""
}

// Principal is the verified identity produced by a successful authentication.
// Claim names are unique; insertion order is irrelevant. A principal is
// created once per request and treated as read-mostly afterwards: handlers
// that lazily resolve claims may add to it, but concurrent use from multiple
// goroutines requires external synchronization.
type Principal struct {
	claims map[string]Value
}

// New creates an empty principal.
func New() *Principal {
	return &Principal{claims: make(map[string]Value)}
}

// Set stores a claim, replacing any existing claim of the same name.
func (p *Principal) Set(name string, v Value) {
	if p.claims == nil {
		p.claims = make(map[string]Value)
	}
	p.claims[name] = v
}

// Get returns the named claim and whether it exists.
func (p *Principal) Get(name string) (Value, bool) {
	if p == nil {
		return Value{}, false
	}
	v, ok := p.claims[name]
	return v, ok
}

// StringClaim returns the named claim as a string scalar, or "" when the
// claim is absent or not a string.
func (p *Principal) StringClaim(name string) string {
	v, ok := p.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.AsString()
	return s
}

// Subject returns the "sub" claim, or "" when absent.
func (p *Principal) Subject() string { return p.StringClaim(SubjectClaim) }

// IsInRole reports whether the "role" claim equals or contains role.
func (p *Principal) IsInRole(role string) bool {
	v, ok := p.Get(RoleClaim)
	return ok && v.Contains(role)
}

// Names returns the claim names in sorted order.
func (p *Principal) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.claims))
	for name := range p.claims {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of claims.
func (p *Principal) Len() int {
	if p == nil {
		return 0
	}
	return len(p.claims)
}
