package internal

import "reflect"

// Same reports whether a and b are the same value: == for comparable values,
// identity of the underlying storage for slices, maps and funcs.
func Same(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	if ta.Comparable() {
		// structs holding interfaces can still panic on ==
		defer func() {
			if recover() != nil {
				same = false
			}
		}()

		return a == b
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Slice:
		return va.Len() == vb.Len() && va.UnsafePointer() == vb.UnsafePointer()
	case reflect.Map, reflect.Func:
		return va.UnsafePointer() == vb.UnsafePointer()
	}

	return false
}

// ShallowEqual is Same, extended to slices, arrays and maps whose elements are Same.
func ShallowEqual(a, b any) bool {
	if Same(a, b) {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Slice, reflect.Array:
		if va.Len() != vb.Len() {
			return false
		}
		for i := 0; i < va.Len(); i++ {
			if !Same(va.Index(i).Interface(), vb.Index(i).Interface()) {
				return false
			}
		}
		return true

	case reflect.Map:
		if va.Len() != vb.Len() {
			return false
		}
		iter := va.MapRange()
		for iter.Next() {
			other := vb.MapIndex(iter.Key())
			if !other.IsValid() || !Same(iter.Value().Interface(), other.Interface()) {
				return false
			}
		}
		return true
	}

	return false
}
