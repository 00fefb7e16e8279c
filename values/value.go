// Package values implements Ember's tagged-value runtime model: the
// small set of by-value variants (nil, bool, number) and the heap
// object variants tracked by the garbage collector (string, array,
// map, set, class, instance, bound method, exception, regex, promise,
// generator, iterator, function).
package values

import "fmt"

// Type is the discriminant tag of a Value. It alone determines which
// union arm Data holds; reading the wrong arm is undefined.
type Type byte

const (
	TypeNil Type = iota
	TypeBool
	TypeNumber
	TypeString
	TypeArray
	TypeMap
	TypeSet
	TypeClass
	TypeInstance
	TypeBoundMethod
	TypeException
	TypeRegex
	TypePromise
	TypeGenerator
	TypeIterator
	TypeFunction
)

func (t Type) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBool:
		return "bool"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	case TypeMap:
		return "map"
	case TypeSet:
		return "set"
	case TypeClass:
		return "class"
	case TypeInstance:
		return "instance"
	case TypeBoundMethod:
		return "bound_method"
	case TypeException:
		return "exception"
	case TypeRegex:
		return "regex"
	case TypePromise:
		return "promise"
	case TypeGenerator:
		return "generator"
	case TypeIterator:
		return "iterator"
	case TypeFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Value is the single runtime representation for every Ember value.
// nil/bool/number live directly in Data; every other variant stores a
// pointer to a heap object that the GC tracks on its object list.
type Value struct {
	Type Type
	Data any
}

// Object is implemented by every heap-allocated variant so the GC can
// walk the object graph uniformly regardless of concrete type.
type Object interface {
	// Children returns every Value this object directly references,
	// used by the tracing collector to walk the live set.
	Children() []*Value
	objectTag()
}

func Nil() *Value                 { return &Value{Type: TypeNil} }
func Bool(b bool) *Value          { return &Value{Type: TypeBool, Data: b} }
func Number(n float64) *Value     { return &Value{Type: TypeNumber, Data: n} }
func Str(s string) *Value         { return &Value{Type: TypeString, Data: &String{Chars: s}} }
func StrInterned(s string, tbl *InternTable) *Value {
	return &Value{Type: TypeString, Data: tbl.Intern(s)}
}

func (v *Value) IsNil() bool    { return v == nil || v.Type == TypeNil }
func (v *Value) IsBool() bool   { return v.Type == TypeBool }
func (v *Value) IsNumber() bool { return v.Type == TypeNumber }
func (v *Value) IsString() bool { return v.Type == TypeString }
func (v *Value) IsCallable() bool {
	return v.Type == TypeFunction || v.Type == TypeBoundMethod
}

// Truthy implements Ember's truthiness rule: nil and false are falsy,
// zero and the empty string are falsy, everything else is truthy.
func (v *Value) Truthy() bool {
	if v == nil {
		return false
	}
	switch v.Type {
	case TypeNil:
		return false
	case TypeBool:
		return v.Data.(bool)
	case TypeNumber:
		return v.Data.(float64) != 0
	case TypeString:
		return v.Data.(*String).Chars != ""
	default:
		return true
	}
}

func (v *Value) AsNumber() float64 { return v.Data.(float64) }
func (v *Value) AsBool() bool      { return v.Data.(bool) }

// AsString returns the character content of a string value.
func (v *Value) AsString() string { return v.Data.(*String).Chars }

// String renders a Value for `print`/interpolation/debugging.
func (v *Value) String() string {
	if v == nil || v.Type == TypeNil {
		return "nil"
	}
	switch v.Type {
	case TypeBool:
		if v.Data.(bool) {
			return "true"
		}
		return "false"
	case TypeNumber:
		return formatNumber(v.Data.(float64))
	case TypeString:
		return v.Data.(*String).Chars
	case TypeArray:
		return v.Data.(*Array).String()
	case TypeMap:
		return v.Data.(*Map).String()
	case TypeSet:
		return v.Data.(*Set).String()
	case TypeClass:
		return fmt.Sprintf("<class %s>", v.Data.(*Class).Name)
	case TypeInstance:
		inst := v.Data.(*Instance)
		if inst.Class == nil {
			return "<module>"
		}
		return fmt.Sprintf("<instance of %s>", inst.Class.Name)
	case TypeBoundMethod:
		return "<bound method>"
	case TypeException:
		return v.Data.(*Exception).String()
	case TypeRegex:
		return fmt.Sprintf("/%s/", v.Data.(*Regex).Pattern)
	case TypePromise:
		return fmt.Sprintf("<promise %s>", v.Data.(*Promise).State)
	case TypeGenerator:
		return "<generator>"
	case TypeIterator:
		return "<iterator>"
	case TypeFunction:
		return fmt.Sprintf("<function %s>", v.Data.(*Function).Name)
	default:
		return "<unknown>"
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}
