package graph

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/feather-lang/foreign"
)

// Kwargs receives keyword arguments when it is the last parameter of a
// bound function or method.
type Kwargs map[string]*foreign.Obj

var (
	errorType  = reflect.TypeOf((*error)(nil)).Elem()
	kwargsType = reflect.TypeOf(Kwargs(nil))
	objPtrType = reflect.TypeOf((*foreign.Obj)(nil))
)

// callFunc calls fn with automatic argument conversion. recv, if non-nil,
// is passed as the first parameter.
func (r *Runtime) callFunc(fn reflect.Value, recv *reflect.Value, args []*foreign.Obj, kwargs []foreign.Kwarg) (*foreign.Obj, error) {
	fnType := fn.Type()
	numParams := fnType.NumIn()

	callArgs := make([]reflect.Value, 0, numParams)
	first := 0
	if recv != nil {
		callArgs = append(callArgs, *recv)
		first = 1
	}

	last := numParams
	takesKwargs := numParams > first && fnType.In(numParams-1) == kwargsType
	if takesKwargs {
		last--
	} else if len(kwargs) > 0 {
		return nil, typeError("got an unexpected keyword argument '%s'", kwargs[0].Name)
	}

	// Positional parameters, excluding receiver and Kwargs
	fixed := last - first
	variadic := fnType.IsVariadic() && !takesKwargs
	if variadic {
		fixed--
		if len(args) < fixed {
			return nil, typeError("takes at least %d positional arguments but %d were given", fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, typeError("takes %d positional arguments but %d were given", fixed, len(args))
	}

	for j := 0; j < fixed; j++ {
		converted, err := r.convertArg(args[j], fnType.In(first+j))
		if err != nil {
			return nil, typeError("argument %d: %v", j+1, err)
		}
		callArgs = append(callArgs, converted)
	}
	if variadic {
		elemType := fnType.In(numParams - 1).Elem()
		for j := fixed; j < len(args); j++ {
			converted, err := r.convertArg(args[j], elemType)
			if err != nil {
				return nil, typeError("argument %d: %v", j+1, err)
			}
			callArgs = append(callArgs, converted)
		}
	}
	if takesKwargs {
		kw := make(Kwargs, len(kwargs))
		for _, k := range kwargs {
			kw[k.Name] = k.Value
		}
		callArgs = append(callArgs, reflect.ValueOf(kw))
	}

	var results []reflect.Value
	_, err := guard(func() (any, error) {
		results = fn.Call(callArgs)
		return nil, nil
	})
	if err != nil {
		return nil, asException(err)
	}
	return r.processResults(results, fnType)
}

// processResults handles the return values from a call. A non-nil trailing
// error becomes the call's failure.
func (r *Runtime) processResults(results []reflect.Value, fnType reflect.Type) (*foreign.Obj, error) {
	if len(results) == 0 {
		return foreign.None(), nil
	}
	if fnType.Out(fnType.NumOut()-1).Implements(errorType) {
		lastResult := results[len(results)-1]
		if !lastResult.IsNil() {
			return nil, asException(lastResult.Interface().(error))
		}
		results = results[:len(results)-1]
	}
	switch len(results) {
	case 0:
		return foreign.None(), nil
	case 1:
		return r.toObj(results[0])
	}
	items := make([]*foreign.Obj, len(results))
	for i, res := range results {
		obj, err := r.toObj(res)
		if err != nil {
			return nil, err
		}
		items[i] = obj
	}
	return foreign.Tuple(items...), nil
}

// Convert stores obj in the Go value pointed to by dst, using the rules
// applied to function parameters. It is meant for values received through
// [Kwargs].
func (r *Runtime) Convert(obj *foreign.Obj, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("Convert: destination must be a non-nil pointer")
	}
	v, err := r.convertArg(obj, rv.Elem().Type())
	if err != nil {
		return err
	}
	rv.Elem().Set(v)
	return nil
}

// convertArg converts an Obj to a Go value of the specified type.
//
// Integer parameters accept only int values. Float parameters accept ints
// and doubles. Foreign references are replaced by the Go value they stand
// for.
func (r *Runtime) convertArg(arg *foreign.Obj, targetType reflect.Type) (reflect.Value, error) {
	if targetType == objPtrType {
		return reflect.ValueOf(arg), nil
	}

	switch targetType.Kind() {
	case reflect.String:
		s, err := arg.Str()
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(s).Convert(targetType), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := arg.Int()
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(targetType).Elem()
		if out.OverflowInt(v) {
			return reflect.Value{}, fmt.Errorf("integer %d overflows %v", v, targetType)
		}
		out.SetInt(v)
		return out, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := arg.Int()
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(targetType).Elem()
		if v < 0 || out.OverflowUint(uint64(v)) {
			return reflect.Value{}, fmt.Errorf("integer %d out of range for %v", v, targetType)
		}
		out.SetUint(uint64(v))
		return out, nil

	case reflect.Float32, reflect.Float64:
		out := reflect.New(targetType).Elem()
		if err := foreign.Decode(arg, out.Addr().Interface()); err != nil {
			return reflect.Value{}, err
		}
		return out, nil

	case reflect.Bool:
		b, err := arg.Bool()
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b).Convert(targetType), nil

	case reflect.Slice:
		items, err := arg.List()
		if err != nil {
			// Arrays and shapes
			out := reflect.New(targetType).Elem()
			if err := foreign.Decode(arg, out.Addr().Interface()); err != nil {
				return reflect.Value{}, err
			}
			return out, nil
		}
		elemType := targetType.Elem()
		slice := reflect.MakeSlice(targetType, len(items), len(items))
		for j, item := range items {
			converted, err := r.convertArg(item, elemType)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %v", j, err)
			}
			slice.Index(j).Set(converted)
		}
		return slice, nil

	case reflect.Map:
		if targetType.Key().Kind() == reflect.String {
			return r.convertDict(arg, targetType)
		}
		return r.convertKeyedMap(arg, targetType)

	case reflect.Interface:
		if ref, ok := arg.InternalRep().(*foreign.RefType); ok {
			return r.derefAs(ref, targetType)
		}
		if targetType.NumMethod() == 0 {
			if arg.IsNone() {
				return reflect.Zero(targetType), nil
			}
			return reflect.ValueOf(arg.Interface()), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot convert %s to interface %v", arg.Type(), targetType)

	case reflect.Ptr, reflect.Struct, reflect.Func:
		if arg.IsNone() && targetType.Kind() != reflect.Struct {
			return reflect.Zero(targetType), nil
		}
		ref, err := arg.Ref()
		if err != nil {
			return reflect.Value{}, err
		}
		return r.derefAs(ref, targetType)

	default:
		return reflect.Value{}, fmt.Errorf("unsupported parameter type: %v", targetType)
	}
}

func (r *Runtime) convertDict(arg *foreign.Obj, targetType reflect.Type) (reflect.Value, error) {
	d, err := arg.Dict()
	if err != nil {
		return reflect.Value{}, err
	}
	elemType := targetType.Elem()
	m := reflect.MakeMapWithSize(targetType, len(d.Order))
	for _, key := range d.Order {
		converted, err := r.convertArg(d.Items[key], elemType)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("value for key %q: %v", key, err)
		}
		m.SetMapIndex(reflect.ValueOf(key).Convert(targetType.Key()), converted)
	}
	return m, nil
}

// convertKeyedMap converts a keyed map to a Go map whose keys are the live
// objects the references stand for. A dict converts with its string keys.
func (r *Runtime) convertKeyedMap(arg *foreign.Obj, targetType reflect.Type) (reflect.Value, error) {
	if _, isDict := arg.InternalRep().(*foreign.DictType); isDict {
		if !reflect.TypeOf("").AssignableTo(targetType.Key()) {
			return reflect.Value{}, fmt.Errorf("cannot use dict as %v", targetType)
		}
		d, _ := arg.Dict()
		m := reflect.MakeMapWithSize(targetType, len(d.Order))
		for _, key := range d.Order {
			v, err := r.convertArg(d.Items[key], targetType.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("value for key %q: %v", key, err)
			}
			m.SetMapIndex(reflect.ValueOf(key), v)
		}
		return m, nil
	}
	km, err := arg.KeyedMap()
	if err != nil {
		return reflect.Value{}, err
	}
	m := reflect.MakeMapWithSize(targetType, km.Len())
	var convErr error
	km.Each(func(key, val *foreign.Obj) {
		if convErr != nil {
			return
		}
		k, err := r.convertArg(key, targetType.Key())
		if err != nil {
			convErr = fmt.Errorf("key %s: %v", key, err)
			return
		}
		if !k.Type().Comparable() {
			convErr = fmt.Errorf("key %s: %v is not comparable", key, k.Type())
			return
		}
		v, err := r.convertArg(val, targetType.Elem())
		if err != nil {
			convErr = fmt.Errorf("value for key %s: %v", key, err)
			return
		}
		m.SetMapIndex(k, v)
	})
	if convErr != nil {
		return reflect.Value{}, convErr
	}
	return m, nil
}

// derefAs returns the Go value behind ref if it is assignable to targetType.
func (r *Runtime) derefAs(ref *foreign.RefType, targetType reflect.Type) (reflect.Value, error) {
	v, ok := r.Deref(ref.ID)
	if !ok {
		return reflect.Value{}, fmt.Errorf("unknown foreign object %s", ref)
	}
	val := reflect.ValueOf(v)
	if !val.Type().AssignableTo(targetType) {
		return reflect.Value{}, fmt.Errorf("foreign object is %T, not %v", v, targetType)
	}
	return val, nil
}

// toObj converts a Go value back to an Obj. Values without a plain
// representation are registered as live objects. An unsigned integer that
// does not fit an int is a TypeError.
func (r *Runtime) toObj(result reflect.Value) (*foreign.Obj, error) {
	if !result.IsValid() {
		return foreign.None(), nil
	}
	if result.Type() == objPtrType {
		if result.IsNil() {
			return foreign.None(), nil
		}
		return result.Interface().(*foreign.Obj), nil
	}
	if m, ok := result.Interface().(*Module); ok {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.refLocked(m, func() *entry {
			return &entry{kind: foreign.KindNamespace, module: m}
		}, m.name, false), nil
	}

	switch result.Kind() {
	case reflect.String:
		return foreign.String(result.String()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return foreign.Int(result.Int()), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := result.Uint()
		if u > math.MaxInt64 {
			return nil, typeError("result %d overflows int", u)
		}
		return foreign.Int(int64(u)), nil

	case reflect.Float32, reflect.Float64:
		return foreign.Double(result.Float()), nil

	case reflect.Bool:
		return foreign.Bool(result.Bool()), nil

	case reflect.Slice, reflect.Array:
		if result.Kind() == reflect.Slice && result.IsNil() {
			return foreign.List(), nil
		}
		if obj, err := foreign.From(result.Interface()); err == nil {
			if _, isArray := obj.InternalRep().(*foreign.ArrayType); isArray {
				return obj, nil
			}
		}
		items := make([]*foreign.Obj, result.Len())
		for j := range items {
			item, err := r.toObj(result.Index(j))
			if err != nil {
				return nil, err
			}
			items[j] = item
		}
		return foreign.List(items...), nil

	case reflect.Map:
		if result.Type().Key().Kind() != reflect.String {
			return r.keyedToObj(result)
		}
		d := foreign.Dict()
		dict, _ := d.Dict()
		for _, k := range sortedKeys(result) {
			v, err := r.toObj(result.MapIndex(k))
			if err != nil {
				return nil, err
			}
			dict.Set(k.String(), v)
		}
		return d, nil

	case reflect.Interface:
		if result.IsNil() {
			return foreign.None(), nil
		}
		return r.toObj(result.Elem())

	case reflect.Ptr:
		if result.IsNil() {
			return foreign.None(), nil
		}
	}

	if obj, ok := result.Interface().(foreign.ObjType); ok {
		return foreign.NewObj(obj), nil
	}
	return r.instance(result), nil
}

// keyedToObj converts a map with non-string keys. Keys that are live objects
// build a keyed map; any plain key (an int, say) cannot key one, so the
// whole map is returned as a live object instead of losing entries.
func (r *Runtime) keyedToObj(result reflect.Value) (*foreign.Obj, error) {
	km := foreign.NewKeyedMap()
	iter := result.MapRange()
	for iter.Next() {
		k, err := r.toObj(iter.Key())
		if err != nil {
			return nil, err
		}
		if _, ok := k.InternalRep().(*foreign.RefType); !ok {
			return r.instance(result), nil
		}
		v, err := r.toObj(iter.Value())
		if err != nil {
			return nil, err
		}
		if err := km.Set(k, v); err != nil {
			return nil, err
		}
	}
	return km.Obj(), nil
}

// guard runs fn, turning a panic in registered Go code into an error.
func guard(fn func() (any, error)) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &foreign.Exception{Type: "panic", Message: fmt.Sprint(p)}
		}
	}()
	return fn()
}

// asException keeps foreign exceptions as they are and wraps other errors
// so they carry the Go error type as the exception type.
func asException(err error) error {
	var exc *foreign.Exception
	if errors.As(err, &exc) {
		return err
	}
	return &goError{err: err}
}

// goError is a Go error raised from registered code. It unwraps to the
// original error and reports itself as a foreign exception.
type goError struct {
	err error
}

func (e *goError) Error() string { return e.err.Error() }

func (e *goError) Unwrap() error { return e.err }

func (e *goError) As(target any) bool {
	if exc, ok := target.(**foreign.Exception); ok {
		*exc = &foreign.Exception{Type: fmt.Sprintf("%T", e.err), Message: e.err.Error()}
		return true
	}
	return false
}

func typeError(format string, args ...any) error {
	return &foreign.Exception{Type: "TypeError", Message: fmt.Sprintf(format, args...)}
}
