package wire

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/fxamacker/cbor/v2"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/object"
)

// encMode is the CBOR encoder mode for objects and diagnostics.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortNone, // Map entry order is significant
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
		DefaultMapType:    mapStringAnyType,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// CBORObject encodes an object as CBOR, preserving map entry order and
// duplicate keys.
type CBORObject struct {
	object.Object[object.Shared]
}

// MarshalCBOR implements cbor.Marshaler.
func (c CBORObject) MarshalCBOR() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCBOR(&buf, c.Object, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CBOR major types used for container heads.
const (
	cborMajorArray = 4
	cborMajorMap   = 5
)

func writeCBOR(buf *bytes.Buffer, o object.Object[object.Shared], depth int) error {
	u := o.Unpack()
	if (u.Type == object.TypeList || u.Type == object.TypeMap) && depth >= MaxDepth {
		return ggerr.Errorf(ggerr.Range, "object nesting exceeds %d", MaxDepth)
	}

	switch u.Type {
	case object.TypeList:
		writeCBORHead(buf, cborMajorArray, uint64(u.List.Len()))
		for _, item := range u.List.All() {
			if err := writeCBOR(buf, item, depth+1); err != nil {
				return err
			}
		}
		return nil
	case object.TypeMap:
		writeCBORHead(buf, cborMajorMap, uint64(u.Map.Len()))
		for key, val := range u.Map.All() {
			if err := appendCBOR(buf, key); err != nil {
				return err
			}
			if err := writeCBOR(buf, val, depth+1); err != nil {
				return err
			}
		}
		return nil
	case object.TypeBool:
		return appendCBOR(buf, u.Bool)
	case object.TypeI64:
		return appendCBOR(buf, u.I64)
	case object.TypeF64:
		return appendCBOR(buf, u.F64)
	case object.TypeBuf:
		return appendCBOR(buf, u.Buf)
	default:
		return appendCBOR(buf, nil)
	}
}

func appendCBOR(buf *bytes.Buffer, v any) error {
	b, err := encMode.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// writeCBORHead writes a CBOR data item head (RFC 8949 section 3).
func writeCBORHead(buf *bytes.Buffer, major byte, n uint64) {
	m := major << 5
	switch {
	case n < 24:
		buf.WriteByte(m | byte(n))
	case n <= math.MaxUint8:
		buf.WriteByte(m | 24)
		buf.WriteByte(byte(n))
	case n <= math.MaxUint16:
		buf.WriteByte(m | 25)
		buf.Write([]byte{byte(n >> 8), byte(n)})
	case n <= math.MaxUint32:
		buf.WriteByte(m | 26)
		buf.Write([]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	default:
		buf.WriteByte(m | 27)
		for shift := 56; shift >= 0; shift -= 8 {
			buf.WriteByte(byte(n >> shift))
		}
	}
}
