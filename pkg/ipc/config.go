package ipc

import (
	"context"
	"time"
	"unsafe"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/arena"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/object"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/subscription"
)

// GetConfig reads the configuration value at keyPath of component (the
// caller's own component if empty). The value is copied into scratch and
// borrows from it. If scratch is too small the call fails with ggerr.Nomem.
// With a nil scratch the value is only checked for existence.
//
// A response holding a single entry named after the last key with a
// non-map value is unwrapped to that value.
func (c *Client) GetConfig(ctx context.Context, keyPath []string, component string, scratch *arena.Arena) (object.Object[object.Shared], error) {
	var out object.Object[object.Shared]
	err := c.getConfig(ctx, keyPath, component, func(v object.Object[object.Shared]) error {
		if scratch == nil {
			return nil
		}
		claimed, err := arena.ClaimObject(scratch, v)
		if err != nil {
			c.logger.Error("insufficient memory provided for response", "operation", OpGetConfiguration.Name)
			return err
		}
		out = claimed
		return nil
	})
	if err != nil {
		return object.Object[object.Shared]{}, err
	}
	return out, nil
}

// GetConfigStr reads a string configuration value into dst. The returned
// string aliases dst. A non-string value fails with ggerr.Failure; a value
// longer than dst fails with ggerr.Nomem.
func (c *Client) GetConfigStr(ctx context.Context, keyPath []string, component string, dst []byte) (string, error) {
	var out string
	err := c.getConfig(ctx, keyPath, component, func(v object.Object[object.Shared]) error {
		s, ok := v.AsBuf()
		if !ok {
			c.logger.Error("config value is not a string", "type", v.Type().String())
			return ggerr.Errorf(ggerr.Failure, "config value is %s, not a string", v.Type())
		}
		var err error
		out, err = copyString(dst, s)
		return err
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) getConfig(ctx context.Context, keyPath []string, component string, onValue func(object.Object[object.Shared]) error) error {
	path, err := keyPathObject(keyPath)
	if err != nil {
		return err
	}
	kvs := []object.KV[object.Shared]{object.NewKV("keyPath", path)}
	if component != "" {
		kvs = append(kvs, object.NewKV("componentName", object.Buf[object.Shared](component)))
	}
	params, _ := object.NewMap(kvs...).AsMap()

	return c.invoke(ctx, OpGetConfiguration, params, func(resp object.Map[object.Shared]) error {
		var value object.Object[object.Shared]
		if err := resp.Validate(object.Required("value", object.TypeMap, &value)); err != nil {
			c.logger.Error("failed validating server response", "operation", OpGetConfiguration.Name, "error", err)
			return ggerr.Wrap(ggerr.Invalid, "GetConfiguration response", err)
		}
		if len(keyPath) > 0 {
			value = unwrapLeaf(value, keyPath[len(keyPath)-1])
		}
		return onValue(value)
	})
}

// unwrapLeaf returns the value of a single-entry map keyed by key when that
// value is not itself a map.
func unwrapLeaf(v object.Object[object.Shared], key string) object.Object[object.Shared] {
	m, _ := v.AsMap()
	if m.Len() != 1 {
		return v
	}
	kv := m.At(0)
	if kv.Key() != key || kv.Val().Type() == object.TypeMap {
		return v
	}
	return kv.Val()
}

// UpdateConfig merges value into the caller's configuration at keyPath. A
// non-map value is merged as {lastKey: value} at the parent path. A nil
// timestamp sends 0; timestamps before the epoch are rejected with
// ggerr.Unsupported.
func (c *Client) UpdateConfig(ctx context.Context, keyPath []string, timestamp *time.Time, value object.Object[object.Shared]) error {
	if timestamp != nil && timestamp.Before(time.Unix(0, 0)) {
		return ggerr.Errorf(ggerr.Unsupported, "timestamp %s is before the epoch", timestamp)
	}

	if value.Type() != object.TypeMap {
		if len(keyPath) == 0 {
			return ggerr.Errorf(ggerr.Invalid, "root configuration value must be a map")
		}
		last := len(keyPath) - 1
		value = object.NewMap(object.NewKV(keyPath[last], value))
		keyPath = keyPath[:last]
	}

	path, err := keyPathObject(keyPath)
	if err != nil {
		return err
	}

	var ts float64
	if timestamp != nil {
		ts = float64(timestamp.Unix()) + float64(timestamp.Nanosecond())*1e-9
	}

	params, _ := object.NewMap(
		object.NewKV("keyPath", path),
		object.NewKV("timestamp", object.F64[object.Shared](ts)),
		object.NewKV("valueToMerge", value),
	).AsMap()
	return c.invoke(ctx, OpUpdateConfiguration, params, nil)
}

// SubscribeToConfigurationUpdate calls cb whenever configuration under
// keyPath of component (the caller's own if empty) changes. The key path
// passed to cb is a fresh slice.
// cb runs on the receive goroutine and must not make blocking requests on c;
// see the package documentation.
func (c *Client) SubscribeToConfigurationUpdate(ctx context.Context, component string, keyPath []string,
	cb func(component string, keyPath []string)) (*subscription.Subscription, error) {
	path, err := keyPathObject(keyPath)
	if err != nil {
		return nil, err
	}
	kvs := make([]object.KV[object.Shared], 0, 2)
	if component != "" {
		kvs = append(kvs, object.NewKV("componentName", object.Buf[object.Shared](component)))
	}
	kvs = append(kvs, object.NewKV("keyPath", path))
	params, _ := object.NewMap(kvs...).AsMap()

	return c.subscribe(ctx, OpSubscribeToConfigurationUpdate, params, func(event object.Map[object.Shared]) error {
		var update object.Object[object.Shared]
		if err := event.Validate(object.Required("configurationUpdateEvent", object.TypeMap, &update)); err != nil {
			return ggerr.Wrap(ggerr.Invalid, "configuration update", err)
		}
		um, _ := update.AsMap()

		var name, keys object.Object[object.Shared]
		err := um.Validate(
			object.Required("componentName", object.TypeBuf, &name),
			object.Required("keyPath", object.TypeList, &keys),
		)
		if err != nil {
			return ggerr.Wrap(ggerr.Invalid, "configuration update event", err)
		}

		list, _ := keys.AsList()
		changed := make([]string, 0, list.Len())
		for _, k := range list.All() {
			s, ok := k.AsBuf()
			if !ok {
				return ggerr.Errorf(ggerr.Invalid, "key path must contain only strings")
			}
			changed = append(changed, s)
		}
		component, _ := name.AsBuf()
		cb(component, changed)
		return nil
	})
}

// PrivateGetSystemConfig reads a nucleus system setting into dst. The
// returned string aliases dst.
func (c *Client) PrivateGetSystemConfig(ctx context.Context, key string, dst []byte) (string, error) {
	params, _ := object.NewMap(object.NewKV("key", object.Buf[object.Shared](key))).AsMap()

	var out string
	err := c.invoke(ctx, OpPrivateGetSystemConfig, params, func(resp object.Map[object.Shared]) error {
		var value object.Object[object.Shared]
		if err := resp.Validate(object.Required("value", object.TypeNull, &value)); err != nil {
			return ggerr.Wrap(ggerr.Invalid, "GetSystemConfig response", err)
		}
		s, ok := value.AsBuf()
		if !ok {
			return ggerr.Errorf(ggerr.Failure, "system config value is %s, not a string", value.Type())
		}
		var err error
		out, err = copyString(dst, s)
		return err
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// keyPathObject returns path as a list of text objects.
func keyPathObject(path []string) (object.Object[object.Shared], error) {
	if len(path) > MaxKeyPathLen {
		return object.Object[object.Shared]{}, ErrKeyPathTooLong
	}
	items := make([]object.Object[object.Shared], len(path))
	for i, p := range path {
		items[i] = object.Buf[object.Shared](p)
	}
	return object.NewList(items...), nil
}

// copyString copies s into dst and returns a string aliasing dst.
func copyString(dst []byte, s string) (string, error) {
	b, err := arena.New(dst).ClaimString(s)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", nil
	}
	return unsafe.String(unsafe.SliceData(b), len(b)), nil
}
