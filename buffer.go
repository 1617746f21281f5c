package cartomesh

import (
	"reflect"
	"unsafe"
)

// bufPointer extracts the base address of a non-empty slice passed as
// any, the way the teacher's Memcpy type-switches over concrete slice
// types to find a base address for a raw memory copy. cartomesh widens
// that idea to any slice type via reflection, since Descriptor is generic
// over the element type and cannot enumerate every instantiation by hand.
// A nil or zero-length buffer yields a nil pointer. A nil pointer is safe
// only where nothing is read or written through it (a nil view, or the data
// argument on non-root peers in Scatter and Gather); a transfer through a
// non-nil view dereferences the base pointer.
func bufPointer(buf any) unsafe.Pointer {
	v := reflect.ValueOf(buf)
	if v.Kind() != reflect.Slice || v.Len() == 0 {
		return nil
	}
	return v.UnsafePointer()
}
