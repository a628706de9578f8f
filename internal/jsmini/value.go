package jsmini

import (
	"math"
	"strconv"
	"strings"
)

// Value is a runtime value: Undefined, nil (null), bool, float64, string,
// *Array, *Object or a callable (*closure, Native).
type Value = any

type undefinedType struct{}

// Undefined is the undefined value.
var Undefined Value = undefinedType{}

// Array is a mutable array value.
type Array struct {
	Elems []Value
}

// Object is a plain object with insertion-ordered keys.
type Object struct {
	props map[string]Value
	keys  []string
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{props: make(map[string]Value)}
}

// Get returns the property or Undefined.
func (o *Object) Get(key string) Value {
	if v, ok := o.props[key]; ok {
		return v
	}
	return Undefined
}

// Set stores a property.
func (o *Object) Set(key string, v Value) {
	if _, ok := o.props[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.props[key] = v
}

// Native is a built-in function.
type Native func(args []Value) (Value, error)

type closure struct {
	fn  *funcLit
	env *scope
}

func isCallable(v Value) bool {
	switch v.(type) {
	case *closure, Native:
		return true
	}
	return false
}

func typeOf(v Value) string {
	switch v.(type) {
	case undefinedType:
		return "undefined"
	case nil:
		return "object"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case *closure, Native:
		return "function"
	}
	return "object"
}

func numberToString(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ToString converts v the way JavaScript's String(v) does for the
// supported value kinds.
func ToString(v Value) string {
	switch x := v.(type) {
	case undefinedType:
		return "undefined"
	case nil:
		return "null"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		return numberToString(x)
	case string:
		return x
	case *Array:
		return joinArray(x, ",")
	case *closure, Native:
		return "function"
	}
	return "[object Object]"
}

func toNumber(v Value) float64 {
	switch x := v.(type) {
	case undefinedType:
		return math.NaN()
	case nil:
		return 0
	case bool:
		if x {
			return 1
		}
		return 0
	case float64:
		return x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			n, err := strconv.ParseUint(s[2:], 16, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case *Array:
		return toNumber(ToString(x))
	}
	return math.NaN()
}

func toBool(v Value) bool {
	switch x := v.(type) {
	case undefinedType, nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	}
	return true
}

func toInt32(v Value) int32 {
	return int32(toUint32(v))
}

func toUint32(v Value) uint32 {
	f := toNumber(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return uint32(int64(math.Trunc(math.Mod(f, 4294967296))))
}

// toIndex converts a relative index argument as used by slice and friends.
func toIndex(v Value, length, def int) int {
	if _, ok := v.(undefinedType); ok {
		return def
	}
	f := toNumber(v)
	if math.IsNaN(f) {
		return 0
	}
	n := int(math.Trunc(math.Max(math.Min(f, 1<<31), -(1 << 31))))
	if n < 0 {
		n += length
		if n < 0 {
			n = 0
		}
	}
	if n > length {
		n = length
	}
	return n
}

func strictEquals(a, b Value) bool {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case *Array, *Object:
		return a == b
	case *closure:
		y, ok := b.(*closure)
		return ok && x == y
	case Native:
		return false
	}
	if isCallable(b) {
		return false
	}
	return a == b
}

func looseEquals(a, b Value) bool {
	isNullish := func(v Value) bool {
		_, u := v.(undefinedType)
		return u || v == nil
	}
	if isNullish(a) || isNullish(b) {
		return isNullish(a) && isNullish(b)
	}
	if typeOf(a) == typeOf(b) {
		return strictEquals(a, b)
	}
	switch a.(type) {
	case *Array, *Object:
		a = ToString(a)
	}
	switch b.(type) {
	case *Array, *Object:
		b = ToString(b)
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return sa == sb
		}
	}
	return toNumber(a) == toNumber(b)
}

// joinArray renders a as Array.prototype.join does. An array already being
// joined further up renders as "", so self-referencing arrays terminate.
func joinArray(a *Array, sep string) string {
	return joinSeen(a, sep, map[*Array]bool{})
}

func joinSeen(a *Array, sep string, seen map[*Array]bool) string {
	if seen[a] {
		return ""
	}
	seen[a] = true
	defer delete(seen, a)

	parts := make([]string, len(a.Elems))
	for i, e := range a.Elems {
		switch x := e.(type) {
		case undefinedType, nil:
		case *Array:
			parts[i] = joinSeen(x, ",", seen)
		default:
			parts[i] = ToString(e)
		}
	}
	return strings.Join(parts, sep)
}

func arg(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Undefined
}

func isUndefined(v Value) bool {
	_, ok := v.(undefinedType)
	return ok
}
