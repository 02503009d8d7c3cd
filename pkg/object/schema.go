package object

import "github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"

// Presence states whether a schema key must, may, or must not appear.
type Presence uint8

const (
	// PresenceOptional keys may be absent.
	PresenceOptional Presence = iota
	// PresenceRequired keys must be present.
	PresenceRequired
	// PresenceMissing keys must be absent.
	PresenceMissing
)

// String returns the presence name.
func (p Presence) String() string {
	switch p {
	case PresenceOptional:
		return "OPTIONAL"
	case PresenceRequired:
		return "REQUIRED"
	case PresenceMissing:
		return "MISSING"
	default:
		return "UNKNOWN"
	}
}

// SchemaEntry describes one key of a map schema.
type SchemaEntry[O Ownership] struct {
	Key      string
	Presence Presence
	// Type is the required type of the value. TypeNull accepts any type.
	Type Type
	// Dst, if set, receives the value, or Null when the key is absent.
	Dst *Object[O]
}

// Required describes a key that must be present with type t.
func Required[O Ownership](key string, t Type, dst *Object[O]) SchemaEntry[O] {
	return SchemaEntry[O]{Key: key, Presence: PresenceRequired, Type: t, Dst: dst}
}

// Optional describes a key that may be present with type t.
func Optional[O Ownership](key string, t Type, dst *Object[O]) SchemaEntry[O] {
	return SchemaEntry[O]{Key: key, Presence: PresenceOptional, Type: t, Dst: dst}
}

// Missing describes a key that must not be present.
func Missing[O Ownership](key string) SchemaEntry[O] {
	return SchemaEntry[O]{Key: key, Presence: PresenceMissing}
}

// Validate checks m against schema and stores found values in each entry's
// Dst. A missing required key yields Noentry; a value of the wrong type or a
// forbidden key yields Parse.
func (m Map[O]) Validate(schema ...SchemaEntry[O]) error {
	for _, e := range schema {
		v, found := m.Get(e.Key)
		if !found {
			if e.Presence == PresenceRequired {
				return ggerr.Errorf(ggerr.Noentry, "map missing required key %q", e.Key)
			}
			if e.Dst != nil {
				*e.Dst = Object[O]{}
			}
			continue
		}

		if e.Presence == PresenceMissing {
			return ggerr.Errorf(ggerr.Parse, "map has forbidden key %q", e.Key)
		}
		if e.Type != TypeNull && v.Type() != e.Type {
			return ggerr.Errorf(ggerr.Parse, "key %q has type %s, want %s", e.Key, v.Type(), e.Type)
		}
		if e.Dst != nil {
			*e.Dst = v
		}
	}
	return nil
}
