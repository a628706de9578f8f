package jsmini

import (
	"math"
	"strings"
	"unicode/utf16"
)

func installBuiltins(global *scope) {
	str := NewObject()
	str.Set("fromCharCode", Native(func(args []Value) (Value, error) {
		units := make([]uint16, len(args))
		for i, a := range args {
			units[i] = uint16(toUint32(a))
		}
		return string(utf16.Decode(units)), nil
	}))
	global.vars["String"] = str

	mth := NewObject()
	mth.Set("floor", Native(func(args []Value) (Value, error) {
		return math.Floor(toNumber(arg(args, 0))), nil
	}))
	mth.Set("abs", Native(func(args []Value) (Value, error) {
		return math.Abs(toNumber(arg(args, 0))), nil
	}))
	mth.Set("min", Native(func(args []Value) (Value, error) {
		out := math.Inf(1)
		for _, a := range args {
			out = math.Min(out, toNumber(a))
		}
		return out, nil
	}))
	mth.Set("max", Native(func(args []Value) (Value, error) {
		out := math.Inf(-1)
		for _, a := range args {
			out = math.Max(out, toNumber(a))
		}
		return out, nil
	}))
	global.vars["Math"] = mth

	global.vars["NaN"] = math.NaN()
	global.vars["Infinity"] = math.Inf(1)
}

func getIndex(obj, key Value) (Value, error) {
	if f, ok := key.(float64); ok {
		switch o := obj.(type) {
		case *Array:
			if f >= 0 && f == math.Trunc(f) && int(f) < len(o.Elems) {
				return o.Elems[int(f)], nil
			}
			return Undefined, nil
		case string:
			r := []rune(o)
			if f >= 0 && f == math.Trunc(f) && int(f) < len(r) {
				return string(r[int(f)]), nil
			}
			return Undefined, nil
		}
	}
	return getMember(obj, ToString(key))
}

func setMember(obj Value, name string, v Value) error {
	switch o := obj.(type) {
	case *Object:
		o.Set(name, v)
		return nil
	case *Array:
		if name == "length" {
			n := toNumber(v)
			if n < 0 || n != math.Trunc(n) || n > 1<<24 {
				return throwf("RangeError: invalid array length")
			}
			for len(o.Elems) < int(n) {
				o.Elems = append(o.Elems, Undefined)
			}
			o.Elems = o.Elems[:int(n)]
			return nil
		}
		if f := toNumber(name); !math.IsNaN(f) && name == numberToString(f) {
			return setArrayIndex(o, f, v)
		}
		return throwf("TypeError: cannot set property %s on array", name)
	case undefinedType, nil:
		return throwf("TypeError: cannot set property %s of %s", name, ToString(obj))
	}
	// Writes to primitives are silently dropped.
	return nil
}

func getMember(obj Value, name string) (Value, error) {
	switch o := obj.(type) {
	case *Object:
		return o.Get(name), nil
	case *Array:
		return arrayMember(o, name), nil
	case string:
		return stringMember(o, name), nil
	case undefinedType, nil:
		return nil, throwf("TypeError: cannot read property %s of %s", name, ToString(obj))
	}
	return Undefined, nil
}

func arrayMember(a *Array, name string) Value {
	switch name {
	case "length":
		return float64(len(a.Elems))
	case "join":
		return Native(func(args []Value) (Value, error) {
			sep := ","
			if s := arg(args, 0); !isUndefined(s) {
				sep = ToString(s)
			}
			return joinArray(a, sep), nil
		})
	case "reverse":
		return Native(func(args []Value) (Value, error) {
			e := a.Elems
			for l, r := 0, len(e)-1; l < r; l, r = l+1, r-1 {
				e[l], e[r] = e[r], e[l]
			}
			return a, nil
		})
	case "slice":
		return Native(func(args []Value) (Value, error) {
			n := len(a.Elems)
			start := toIndex(arg(args, 0), n, 0)
			end := toIndex(arg(args, 1), n, n)
			out := &Array{}
			if start < end {
				out.Elems = append(out.Elems, a.Elems[start:end]...)
			}
			return out, nil
		})
	case "splice":
		return Native(func(args []Value) (Value, error) {
			n := len(a.Elems)
			start := toIndex(arg(args, 0), n, 0)
			count := n - start
			if len(args) > 1 {
				count = toIndex(args[1], n-start, 0)
				if toNumber(args[1]) < 0 {
					count = 0
				}
			}
			removed := &Array{Elems: append([]Value(nil), a.Elems[start:start+count]...)}
			var items []Value
			if len(args) > 2 {
				items = args[2:]
			}
			rest := append(append([]Value(nil), items...), a.Elems[start+count:]...)
			a.Elems = append(a.Elems[:start], rest...)
			return removed, nil
		})
	case "push":
		return Native(func(args []Value) (Value, error) {
			a.Elems = append(a.Elems, args...)
			return float64(len(a.Elems)), nil
		})
	case "pop":
		return Native(func(args []Value) (Value, error) {
			if len(a.Elems) == 0 {
				return Undefined, nil
			}
			v := a.Elems[len(a.Elems)-1]
			a.Elems = a.Elems[:len(a.Elems)-1]
			return v, nil
		})
	case "shift":
		return Native(func(args []Value) (Value, error) {
			if len(a.Elems) == 0 {
				return Undefined, nil
			}
			v := a.Elems[0]
			a.Elems = append([]Value(nil), a.Elems[1:]...)
			return v, nil
		})
	case "unshift":
		return Native(func(args []Value) (Value, error) {
			a.Elems = append(append([]Value(nil), args...), a.Elems...)
			return float64(len(a.Elems)), nil
		})
	case "indexOf":
		return Native(func(args []Value) (Value, error) {
			want := arg(args, 0)
			for i := toIndex(arg(args, 1), len(a.Elems), 0); i < len(a.Elems); i++ {
				if strictEquals(a.Elems[i], want) {
					return float64(i), nil
				}
			}
			return float64(-1), nil
		})
	case "concat":
		return Native(func(args []Value) (Value, error) {
			out := &Array{Elems: append([]Value(nil), a.Elems...)}
			for _, x := range args {
				if other, ok := x.(*Array); ok {
					out.Elems = append(out.Elems, other.Elems...)
				} else {
					out.Elems = append(out.Elems, x)
				}
			}
			return out, nil
		})
	}
	if f := toNumber(name); !math.IsNaN(f) && name == numberToString(f) {
		if f >= 0 && int(f) < len(a.Elems) {
			return a.Elems[int(f)]
		}
	}
	return Undefined
}

func stringMember(s, name string) Value {
	switch name {
	case "length":
		return float64(len([]rune(s)))
	case "split":
		return Native(func(args []Value) (Value, error) {
			sepArg := arg(args, 0)
			if isUndefined(sepArg) {
				return &Array{Elems: []Value{s}}, nil
			}
			sep := ToString(sepArg)
			var parts []string
			if sep == "" {
				for _, r := range s {
					parts = append(parts, string(r))
				}
			} else {
				parts = strings.Split(s, sep)
			}
			out := &Array{Elems: make([]Value, len(parts))}
			for i, p := range parts {
				out.Elems[i] = p
			}
			return out, nil
		})
	case "charAt":
		return Native(func(args []Value) (Value, error) {
			r := []rune(s)
			i := toNumber(arg(args, 0))
			if math.IsNaN(i) {
				i = 0
			}
			if i < 0 || int(i) >= len(r) {
				return "", nil
			}
			return string(r[int(i)]), nil
		})
	case "charCodeAt":
		return Native(func(args []Value) (Value, error) {
			r := []rune(s)
			i := toNumber(arg(args, 0))
			if math.IsNaN(i) {
				i = 0
			}
			if i < 0 || int(i) >= len(r) {
				return math.NaN(), nil
			}
			return float64(r[int(i)]), nil
		})
	case "indexOf":
		return Native(func(args []Value) (Value, error) {
			r := []rune(s)
			from := toIndex(arg(args, 1), len(r), 0)
			i := strings.Index(string(r[from:]), ToString(arg(args, 0)))
			if i < 0 {
				return float64(-1), nil
			}
			return float64(from + len([]rune(string(r[from:])[:i]))), nil
		})
	case "slice":
		return Native(func(args []Value) (Value, error) {
			r := []rune(s)
			start := toIndex(arg(args, 0), len(r), 0)
			end := toIndex(arg(args, 1), len(r), len(r))
			if start >= end {
				return "", nil
			}
			return string(r[start:end]), nil
		})
	case "substring":
		return Native(func(args []Value) (Value, error) {
			r := []rune(s)
			clamp := func(v Value, def int) int {
				if isUndefined(v) {
					return def
				}
				f := toNumber(v)
				if math.IsNaN(f) || f < 0 {
					return 0
				}
				return int(math.Min(f, float64(len(r))))
			}
			start, end := clamp(arg(args, 0), 0), clamp(arg(args, 1), len(r))
			if start > end {
				start, end = end, start
			}
			return string(r[start:end]), nil
		})
	case "substr":
		return Native(func(args []Value) (Value, error) {
			r := []rune(s)
			start := toIndex(arg(args, 0), len(r), 0)
			n := len(r) - start
			if l := arg(args, 1); !isUndefined(l) {
				f := toNumber(l)
				if math.IsNaN(f) || f < 0 {
					f = 0
				}
				n = int(math.Min(f, float64(n)))
			}
			return string(r[start : start+n]), nil
		})
	case "concat":
		return Native(func(args []Value) (Value, error) {
			var b strings.Builder
			b.WriteString(s)
			for _, a := range args {
				b.WriteString(ToString(a))
			}
			return b.String(), nil
		})
	case "toUpperCase":
		return Native(func(args []Value) (Value, error) {
			return strings.ToUpper(s), nil
		})
	case "toLowerCase":
		return Native(func(args []Value) (Value, error) {
			return strings.ToLower(s), nil
		})
	}
	return Undefined
}
