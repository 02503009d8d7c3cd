package wire

import (
	"fmt"
	"math"
	"reflect"
	"slices"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/object"
)

var mapStringAnyType = reflect.TypeOf(map[string]any(nil))

// ToNative converts o to plain Go values: nil, bool, int64, float64, string,
// []any and map[string]any. When a map repeats a key the first entry wins,
// matching Map.Get.
func ToNative[O object.Ownership](o object.Object[O]) any {
	return toNative(o.Share())
}

func toNative(o object.Object[object.Shared]) any {
	u := o.Unpack()
	switch u.Type {
	case object.TypeBool:
		return u.Bool
	case object.TypeI64:
		return u.I64
	case object.TypeF64:
		return u.F64
	case object.TypeBuf:
		return u.Buf
	case object.TypeList:
		out := make([]any, 0, u.List.Len())
		for _, item := range u.List.All() {
			out = append(out, toNative(item))
		}
		return out
	case object.TypeMap:
		out := make(map[string]any, u.Map.Len())
		for k, v := range u.Map.All() {
			if _, dup := out[k]; !dup {
				out[k] = toNative(v)
			}
		}
		return out
	default:
		return nil
	}
}

// FromNative converts plain Go values into a Shared object tree. Go maps are
// emitted with sorted keys. Supported inputs are nil, bool, all integer and
// float kinds, string, []byte (as text), []any, []string, map[string]any,
// map[string]string and map[any]any with string keys.
func FromNative(v any) (object.Object[object.Shared], error) {
	return fromNative(v, 0)
}

func fromNative(v any, depth int) (object.Object[object.Shared], error) {
	var zero object.Object[object.Shared]
	if depth > MaxDepth {
		return zero, ggerr.Errorf(ggerr.Range, "value nesting exceeds %d", MaxDepth)
	}

	switch x := v.(type) {
	case nil:
		return object.Null[object.Shared](), nil
	case object.Object[object.Shared]:
		return x, nil
	case bool:
		return object.Bool[object.Shared](x), nil
	case int:
		return object.I64[object.Shared](int64(x)), nil
	case int8:
		return object.I64[object.Shared](int64(x)), nil
	case int16:
		return object.I64[object.Shared](int64(x)), nil
	case int32:
		return object.I64[object.Shared](int64(x)), nil
	case int64:
		return object.I64[object.Shared](x), nil
	case uint:
		return fromUint(uint64(x))
	case uint8:
		return object.I64[object.Shared](int64(x)), nil
	case uint16:
		return object.I64[object.Shared](int64(x)), nil
	case uint32:
		return object.I64[object.Shared](int64(x)), nil
	case uint64:
		return fromUint(x)
	case float32:
		return object.F64[object.Shared](float64(x)), nil
	case float64:
		return object.F64[object.Shared](x), nil
	case string:
		return object.Buf[object.Shared](x), nil
	case []byte:
		return object.BufBytes[object.Shared](x), nil
	case []string:
		items := make([]object.Object[object.Shared], len(x))
		for i, s := range x {
			items[i] = object.Buf[object.Shared](s)
		}
		return object.NewList(items...), nil
	case []any:
		items := make([]object.Object[object.Shared], len(x))
		for i, item := range x {
			o, err := fromNative(item, depth+1)
			if err != nil {
				return zero, err
			}
			items[i] = o
		}
		return object.NewList(items...), nil
	case map[string]string:
		keys := sortedKeys(x)
		kvs := make([]object.KV[object.Shared], len(keys))
		for i, k := range keys {
			kvs[i] = object.NewKV(k, object.Buf[object.Shared](x[k]))
		}
		return object.NewMap(kvs...), nil
	case map[string]any:
		keys := sortedKeys(x)
		kvs := make([]object.KV[object.Shared], len(keys))
		for i, k := range keys {
			o, err := fromNative(x[k], depth+1)
			if err != nil {
				return zero, err
			}
			kvs[i] = object.NewKV(k, o)
		}
		return object.NewMap(kvs...), nil
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			ks, ok := k.(string)
			if !ok {
				return zero, ggerr.Errorf(ggerr.Invalid, "map key %v is not a string", k)
			}
			m[ks] = val
		}
		return fromNative(m, depth)
	}
	return zero, ggerr.Errorf(ggerr.Invalid, "unsupported value type %s", fmt.Sprintf("%T", v))
}

func fromUint(u uint64) (object.Object[object.Shared], error) {
	if u > math.MaxInt64 {
		return object.Object[object.Shared]{}, ggerr.Errorf(ggerr.Range, "integer %d overflows int64", u)
	}
	return object.I64[object.Shared](int64(u)), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
