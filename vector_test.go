package cartomesh

import "testing"

func TestAddSub(t *testing.T) {
	a := []int{1, 2, 3}
	b := []int{4, 5, 6}
	if got := Add(a, b); !Equal(got, []int{5, 7, 9}) {
		t.Errorf("Add = %v", got)
	}
	if got := Sub(b, a); !Equal(got, []int{3, 3, 3}) {
		t.Errorf("Sub = %v", got)
	}
}

func TestScaleProd(t *testing.T) {
	if got := Scale([]int{1, 2, 3}, 3); !Equal(got, []int{3, 6, 9}) {
		t.Errorf("Scale = %v", got)
	}
	if got := Prod([]int{2, 3, 4}); got != 24 {
		t.Errorf("Prod = %d, want 24", got)
	}
	if got := Prod(nil); got != 1 {
		t.Errorf("Prod(nil) = %d, want 1", got)
	}
}

func TestFloorDivNegative(t *testing.T) {
	got := FloorDiv([]int{-1, 7, -7}, []int{2, 2, 2})
	want := []int{-1, 3, -4}
	if !Equal(got, want) {
		t.Errorf("FloorDiv = %v, want %v", got, want)
	}
}

func TestModFloored(t *testing.T) {
	got := Mod([]int{-1, 7, -7}, []int{3, 3, 3})
	want := []int{2, 1, 2}
	if !Equal(got, want) {
		t.Errorf("Mod = %v, want %v", got, want)
	}
}

func TestIsDirection(t *testing.T) {
	tests := []struct {
		d    []int
		want bool
	}{
		{[]int{0, 0}, false},
		{[]int{1, 0}, true},
		{[]int{-1, 1}, true},
		{[]int{2, 0}, false},
		{[]int{-1, -1, 1}, true},
	}
	for _, tt := range tests {
		if got := IsDirection(tt.d); got != tt.want {
			t.Errorf("IsDirection(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestAddPanicsOnLengthMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on length mismatch")
		}
	}()
	Add([]int{1, 2}, []int{1})
}
