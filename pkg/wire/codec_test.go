package wire

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/object"
)

func TestCBORObjectDecodesAsNative(t *testing.T) {
	obj := object.NewMap(
		object.NewKV("topic", object.Buf[object.Shared]("sensors/temp")),
		object.NewKV("qos", object.I64[object.Shared](-1)),
		object.NewKV("data", object.NewList(
			object.Bool[object.Shared](true),
			object.F64[object.Shared](1.25),
			object.Null[object.Shared](),
		)),
	)

	data, err := Marshal(CBORObject{obj})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got any
	if err := Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	want := map[string]any{
		"topic": "sensors/temp",
		"qos":   int64(-1),
		"data":  []any{true, 1.25, nil},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("decoded %#v, want %#v", got, want)
	}
}

func TestCBORObjectKeepsEntryOrder(t *testing.T) {
	obj := object.NewMap(
		object.NewKV("z", object.I64[object.Shared](1)),
		object.NewKV("a", object.I64[object.Shared](2)),
	)
	data, err := CBORObject{obj}.MarshalCBOR()
	if err != nil {
		t.Fatal(err)
	}
	// map(2) "z" 1 "a" 2
	want := []byte{0xa2, 0x61, 'z', 0x01, 0x61, 'a', 0x02}
	if !bytes.Equal(data, want) {
		t.Errorf("MarshalCBOR = % x, want % x", data, want)
	}
}

func TestCBORObjectDepthLimit(t *testing.T) {
	deep := object.Null[object.Shared]()
	for range MaxDepth + 1 {
		deep = object.NewList(deep)
	}
	if _, err := (CBORObject{deep}).MarshalCBOR(); !errors.Is(err, ggerr.Range) {
		t.Errorf("MarshalCBOR = %v, want RANGE", err)
	}
}

func TestWriteCBORHead(t *testing.T) {
	tests := []struct {
		n    uint64
		want []byte
	}{
		{0, []byte{0x80}},
		{23, []byte{0x97}},
		{24, []byte{0x98, 24}},
		{256, []byte{0x99, 0x01, 0x00}},
		{1 << 16, []byte{0x9a, 0x00, 0x01, 0x00, 0x00}},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		writeCBORHead(&buf, cborMajorArray, tt.n)
		if !bytes.Equal(buf.Bytes(), tt.want) {
			t.Errorf("head(%d) = % x, want % x", tt.n, buf.Bytes(), tt.want)
		}
	}
}
