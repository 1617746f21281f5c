package dtype

import "testing"

func TestPrimitiveOfBuiltins(t *testing.T) {
	tests := []struct {
		name string
		got  Primitive
		want Primitive
	}{
		{"int8", PrimitiveOf[int8](), Int8},
		{"int16", PrimitiveOf[int16](), Int16},
		{"int32", PrimitiveOf[int32](), Int32},
		{"int64", PrimitiveOf[int64](), Int64},
		{"uint8", PrimitiveOf[uint8](), Uint8},
		{"uint16", PrimitiveOf[uint16](), Uint16},
		{"uint32", PrimitiveOf[uint32](), Uint32},
		{"uint64", PrimitiveOf[uint64](), Uint64},
		{"float32", PrimitiveOf[float32](), Float32},
		{"float64", PrimitiveOf[float64](), Float64},
		{"complex64", PrimitiveOf[complex64](), Complex64},
		{"complex128", PrimitiveOf[complex128](), Complex128},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("PrimitiveOf() = %v, want %v", tt.got, tt.want)
			}
		})
	}
}

type kelvin float64

func TestRegisterExtendsMapping(t *testing.T) {
	Register[kelvin](Float64)
	if got := PrimitiveOf[kelvin](); got != Float64 {
		t.Errorf("PrimitiveOf[kelvin]() = %v, want %v", got, Float64)
	}
}

func TestPrimitiveOfUnregisteredPanics(t *testing.T) {
	type unregistered complex128 // distinct, never-registered named type
	defer func() {
		if recover() == nil {
			t.Fatal("expected PrimitiveOf to panic for an unregistered type")
		}
	}()
	_ = PrimitiveOf[unregistered]()
}

func TestSizeof(t *testing.T) {
	tests := []struct {
		p    Primitive
		want int
	}{
		{Int8, 1}, {Uint8, 1},
		{Int16, 2}, {Uint16, 2},
		{Int32, 4}, {Uint32, 4}, {Float32, 4},
		{Int64, 8}, {Uint64, 8}, {Float64, 8}, {Complex64, 8},
		{Complex128, 16},
	}
	for _, tt := range tests {
		if got := Sizeof(tt.p); got != tt.want {
			t.Errorf("Sizeof(%v) = %d, want %d", tt.p, got, tt.want)
		}
	}
}
