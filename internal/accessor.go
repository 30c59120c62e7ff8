package internal

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Accessor reads and writes the raw storage behind a property observer.
type Accessor interface {
	Get() any
	Set(v any) error
}

// identity is the observer cache key of an object: its dynamic type and address.
type identity struct {
	typ reflect.Type
	ptr unsafe.Pointer
}

func identityOf(obj any) (identity, error) {
	v := reflect.ValueOf(obj)

	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		if v.IsNil() {
			return identity{}, fmt.Errorf("%w: nil %s", ErrUnsupportedObject, v.Type())
		}
		return identity{typ: v.Type(), ptr: v.UnsafePointer()}, nil
	}

	return identity{}, fmt.Errorf("%w: %T", ErrUnsupportedObject, obj)
}

// NewAccessor returns the accessor of key on obj: an exported field of a struct
// pointer, or an entry of a map with string keys.
func NewAccessor(obj any, key string) (Accessor, error) {
	v := reflect.ValueOf(obj)

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() || v.Elem().Kind() != reflect.Struct {
			break
		}

		field := v.Elem().FieldByName(key)
		if !field.IsValid() || !field.CanSet() {
			return nil, fmt.Errorf("%w: %T has no exported field %q", ErrNoSuchProperty, obj, key)
		}
		return &fieldAccessor{field: field}, nil

	case reflect.Map:
		if v.IsNil() || v.Type().Key().Kind() != reflect.String {
			break
		}
		return &mapAccessor{m: v, key: reflect.ValueOf(key).Convert(v.Type().Key())}, nil
	}

	return nil, fmt.Errorf("%w: %T", ErrUnsupportedObject, obj)
}

type fieldAccessor struct {
	field reflect.Value
}

func (a *fieldAccessor) Get() any {
	return a.field.Interface()
}

func (a *fieldAccessor) Set(v any) error {
	rv, err := assignable(v, a.field.Type())
	if err != nil {
		return err
	}

	a.field.Set(rv)
	return nil
}

type mapAccessor struct {
	m   reflect.Value
	key reflect.Value
}

func (a *mapAccessor) Get() any {
	v := a.m.MapIndex(a.key)
	if !v.IsValid() {
		return reflect.Zero(a.m.Type().Elem()).Interface()
	}

	return v.Interface()
}

func (a *mapAccessor) Set(v any) error {
	rv, err := assignable(v, a.m.Type().Elem())
	if err != nil {
		return err
	}

	a.m.SetMapIndex(a.key, rv)
	return nil
}

func assignable(v any, typ reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch typ.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(typ), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: nil for %s", ErrTypeMismatch, typ)
	}

	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(typ) {
		return reflect.Value{}, fmt.Errorf("%w: %s for %s", ErrTypeMismatch, rv.Type(), typ)
	}

	return rv, nil
}
