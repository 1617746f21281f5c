// Package dtype binds the element types cartomesh can move across the
// message-passing substrate to a primitive datatype identifier, the way a
// SIMD runtime binds Go numeric types to vector lane widths: a small,
// closed set of built-ins plus an escape hatch for anything the built-ins
// don't cover.
package dtype

import (
	"fmt"
	"reflect"
)

// Primitive identifies one of the substrate's primitive datatypes. A
// substrate.CartComm implementation uses Primitive to pick the wire
// representation and element size for a view.
type Primitive int

const (
	Int8 Primitive = iota
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Complex64
	Complex128
)

func (p Primitive) String() string {
	switch p {
	case Int8:
		return "Int8"
	case Int16:
		return "Int16"
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case Uint8:
		return "Uint8"
	case Uint16:
		return "Uint16"
	case Uint32:
		return "Uint32"
	case Uint64:
		return "Uint64"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	case Complex64:
		return "Complex64"
	case Complex128:
		return "Complex128"
	default:
		return "Unknown"
	}
}

// Sizeof returns the in-memory size, in bytes, of one element of the given
// primitive.
func Sizeof(p Primitive) int {
	switch p {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64, Complex64:
		return 8
	case Complex128:
		return 16
	default:
		panic(fmt.Sprintf("dtype: Sizeof called on unrecognized primitive %v", p))
	}
}

// Element is the set of Go types cartomesh can build a Descriptor over:
// every signed and unsigned integer width, both float widths, and both
// complex widths. Complex types are optional specializations a caller only
// reaches for if it actually needs them, exactly as the element trait
// allows.
type Element interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 | ~complex64 | ~complex128
}

var registry = map[reflect.Type]Primitive{}

// Register extends the element-to-primitive mapping for a user-defined
// named type, without editing any core cartomesh type. T's underlying type
// must already be resolvable by PrimitiveOf (i.e. it satisfies Element);
// Register exists for named types built on top of one of the built-ins that
// would otherwise share the built-in's reflect.Type only after a type
// switch, such as a domain-specific float64 wrapper.
func Register[T any](p Primitive) {
	var zero T
	registry[reflect.TypeOf(zero)] = p
}

// PrimitiveOf resolves T's primitive datatype identifier. Built-in numeric
// kinds resolve through a type switch on the zero value; anything else
// falls back to the Register-populated registry. An element type that
// resolves to neither is a programmer error and PrimitiveOf panics — the
// closest a generic Go function can come to "using an unmapped type is a
// static error" without a code-generation step.
func PrimitiveOf[T Element]() Primitive {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	case complex64:
		return Complex64
	case complex128:
		return Complex128
	}
	if p, ok := registry[reflect.TypeOf(zero)]; ok {
		return p
	}
	panic(fmt.Sprintf("dtype: no primitive registered for element type %T; call dtype.Register before using it", zero))
}
