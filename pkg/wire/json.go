package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/arena"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/object"
)

// MaxDepth is the deepest nesting of lists and maps accepted by the codecs.
const MaxDepth = 15

// DecodeJSON decodes a JSON document into objects placed in a. Text and
// container nodes are charged to the arena; if it runs out the call fails
// with ggerr.Nomem and nothing is returned. The result borrows from a.
//
// Text must be valid UTF-8; DecodeJSON panics otherwise, as Object does when
// unpacking such text.
func DecodeJSON(data []byte, a *arena.Arena) (object.Object[object.Shared], error) {
	// JSON delimiters are ASCII, so a valid document has valid strings and keys.
	if !utf8.Valid(data) {
		panic("object: text payload is not valid UTF-8")
	}
	mark := a.Used()
	d := &jsonDecoder{dec: json.NewDecoder(bytes.NewReader(data)), a: a}
	d.dec.UseNumber()

	obj, err := d.value(0)
	if err == nil {
		if _, terr := d.dec.Token(); terr != io.EOF {
			err = ggerr.Errorf(ggerr.Parse, "trailing data after JSON value")
		}
	}
	if err != nil {
		a.Rewind(mark)
		return object.Object[object.Shared]{}, err
	}
	return obj, nil
}

type jsonDecoder struct {
	dec *json.Decoder
	a   *arena.Arena
}

func (d *jsonDecoder) value(depth int) (object.Object[object.Shared], error) {
	tok, err := d.dec.Token()
	if err != nil {
		return object.Object[object.Shared]{}, parseErr(err)
	}
	return d.fromToken(tok, depth)
}

func (d *jsonDecoder) fromToken(tok json.Token, depth int) (object.Object[object.Shared], error) {
	switch v := tok.(type) {
	case json.Delim:
		if depth >= MaxDepth {
			return object.Object[object.Shared]{}, ggerr.Errorf(ggerr.Range, "JSON nesting exceeds %d", MaxDepth)
		}
		switch v {
		case '[':
			return d.list(depth + 1)
		case '{':
			return d.object(depth + 1)
		}
		return object.Object[object.Shared]{}, ggerr.Errorf(ggerr.Parse, "unexpected delimiter %q", v)
	case bool:
		return object.Bool[object.Shared](v), nil
	case json.Number:
		return number(v)
	case string:
		b, err := d.a.ClaimString(v)
		if err != nil {
			return object.Object[object.Shared]{}, err
		}
		return object.BufBytes[object.Shared](b), nil
	case nil:
		return object.Null[object.Shared](), nil
	}
	return object.Object[object.Shared]{}, ggerr.Errorf(ggerr.Parse, "unexpected JSON token %T", tok)
}

func (d *jsonDecoder) list(depth int) (object.Object[object.Shared], error) {
	var tmp []object.Object[object.Shared]
	for d.dec.More() {
		item, err := d.value(depth)
		if err != nil {
			return object.Object[object.Shared]{}, err
		}
		tmp = append(tmp, item)
	}
	if _, err := d.dec.Token(); err != nil {
		return object.Object[object.Shared]{}, parseErr(err)
	}

	items, err := arena.Objects(d.a, len(tmp))
	if err != nil {
		return object.Object[object.Shared]{}, err
	}
	copy(items, tmp)
	return object.NewList(items...), nil
}

func (d *jsonDecoder) object(depth int) (object.Object[object.Shared], error) {
	var tmp []object.KV[object.Shared]
	for d.dec.More() {
		tok, err := d.dec.Token()
		if err != nil {
			return object.Object[object.Shared]{}, parseErr(err)
		}
		key, ok := tok.(string)
		if !ok {
			return object.Object[object.Shared]{}, ggerr.Errorf(ggerr.Parse, "map key is %T", tok)
		}
		kb, err := d.a.ClaimString(key)
		if err != nil {
			return object.Object[object.Shared]{}, err
		}
		val, err := d.value(depth)
		if err != nil {
			return object.Object[object.Shared]{}, err
		}
		tmp = append(tmp, object.NewKVBytes(kb, val))
	}
	if _, err := d.dec.Token(); err != nil {
		return object.Object[object.Shared]{}, parseErr(err)
	}

	kvs, err := arena.KVs(d.a, len(tmp))
	if err != nil {
		return object.Object[object.Shared]{}, err
	}
	copy(kvs, tmp)
	return object.NewMap(kvs...), nil
}

func number(n json.Number) (object.Object[object.Shared], error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return object.I64[object.Shared](i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return object.Object[object.Shared]{}, ggerr.Errorf(ggerr.Range, "number %s out of range", s)
	}
	return object.F64[object.Shared](f), nil
}

func parseErr(err error) error {
	if errors.Is(err, io.EOF) {
		return ggerr.Errorf(ggerr.Parse, "unexpected end of JSON input")
	}
	return ggerr.Wrap(ggerr.Parse, "json", err)
}

// AppendJSON appends the JSON encoding of o to dst.
// Non-finite floats yield ggerr.Invalid; nesting deeper than MaxDepth yields
// ggerr.Range.
func AppendJSON[O object.Ownership](dst []byte, o object.Object[O]) ([]byte, error) {
	return appendJSON(dst, o.Share(), 0)
}

// EncodeJSON returns the JSON encoding of o.
func EncodeJSON[O object.Ownership](o object.Object[O]) ([]byte, error) {
	return AppendJSON(nil, o)
}

func appendJSON(dst []byte, o object.Object[object.Shared], depth int) ([]byte, error) {
	u := o.Unpack()
	switch u.Type {
	case object.TypeNull:
		return append(dst, "null"...), nil
	case object.TypeBool:
		return strconv.AppendBool(dst, u.Bool), nil
	case object.TypeI64:
		return strconv.AppendInt(dst, u.I64, 10), nil
	case object.TypeF64:
		if math.IsNaN(u.F64) || math.IsInf(u.F64, 0) {
			return dst, ggerr.Errorf(ggerr.Invalid, "cannot encode %v as JSON", u.F64)
		}
		return appendFloat(dst, u.F64), nil
	case object.TypeBuf:
		return appendString(dst, u.Buf), nil
	}

	if depth >= MaxDepth {
		return dst, ggerr.Errorf(ggerr.Range, "object nesting exceeds %d", MaxDepth)
	}

	var err error
	switch u.Type {
	case object.TypeList:
		dst = append(dst, '[')
		for i, item := range u.List.All() {
			if i > 0 {
				dst = append(dst, ',')
			}
			if dst, err = appendJSON(dst, item, depth+1); err != nil {
				return dst, err
			}
		}
		return append(dst, ']'), nil
	case object.TypeMap:
		dst = append(dst, '{')
		first := true
		for key, val := range u.Map.All() {
			if !first {
				dst = append(dst, ',')
			}
			first = false
			dst = appendString(dst, key)
			dst = append(dst, ':')
			if dst, err = appendJSON(dst, val, depth+1); err != nil {
				return dst, err
			}
		}
		return append(dst, '}'), nil
	}
	return dst, ggerr.Errorf(ggerr.Invalid, "unknown object type %s", u.Type)
}

// appendFloat keeps a fractional marker so integral floats decode as F64.
func appendFloat(dst []byte, f float64) []byte {
	start := len(dst)
	dst = strconv.AppendFloat(dst, f, 'g', -1, 64)
	if !bytes.ContainsAny(dst[start:], ".eEn") {
		dst = append(dst, ".0"...)
	}
	return dst
}

const hexDigits = "0123456789abcdef"

func appendString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c >= utf8.RuneSelf {
			_, size := utf8.DecodeRuneInString(s[i:])
			dst = append(dst, s[i:i+size]...)
			i += size
			continue
		}
		switch {
		case c == '"':
			dst = append(dst, '\\', '"')
		case c == '\\':
			dst = append(dst, '\\', '\\')
		case c == '\n':
			dst = append(dst, '\\', 'n')
		case c == '\r':
			dst = append(dst, '\\', 'r')
		case c == '\t':
			dst = append(dst, '\\', 't')
		case c < 0x20:
			dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
		default:
			dst = append(dst, c)
		}
		i++
	}
	return append(dst, '"')
}
