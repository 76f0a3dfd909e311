package platform

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestValueRoundTrip(t *testing.T) {
	values := []any{
		nil,
		true,
		false,
		int32(-7),
		int64(1 << 40),
		3.25,
		"surface",
		strings.Repeat("x", 300), /* exercises the 2-byte size form */
		[]byte{1, 2, 3},
		[]int32{-1, 0, 1},
		[]int64{1 << 33},
		[]float64{0.5, -0.5},
		[]any{int64(1), "two", nil},
		map[string]any{
			"surfaceId": int64(1),
			"position":  map[string]any{"x": int64(10), "y": int64(20)},
			"mapped":    true,
		},
	}
	for _, v := range values {
		encoded, err := EncodeValue(v)
		if err != nil {
			t.Fatalf("encode %T: %v", v, err)
		}
		decoded, err := DecodeValue(encoded)
		if err != nil {
			t.Fatalf("decode %T: %v", v, err)
		}
		if !reflect.DeepEqual(decoded, v) {
			t.Fatalf("round trip %T: got %v, want %v", v, decoded, v)
		}
	}
}

func TestEncodeWidensInts(t *testing.T) {
	encoded, err := EncodeValue(map[string]any{"id": 7})
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeValue(encoded)
	if err != nil {
		t.Fatal(err)
	}
	m := decoded.(map[string]any)
	if m["id"] != int64(7) {
		t.Fatalf("int encoded as %T", m["id"])
	}
}

func TestEncodeUnsupportedType(t *testing.T) {
	if _, err := EncodeValue(struct{}{}); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

func TestMethodCallRoundTrip(t *testing.T) {
	call := MethodCall{
		Method: "commit_surface",
		Arguments: map[string]any{
			"surfaceId": int64(1),
			"textureId": int64(-1),
		},
	}
	encoded, err := EncodeMethodCall(call)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeMethodCall(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(decoded, call) {
		t.Fatalf("got %+v, want %+v", decoded, call)
	}
}

func TestEnvelopes(t *testing.T) {
	ok, err := EncodeSuccessEnvelope(nil)
	if err != nil {
		t.Fatal(err)
	}
	v, err := DecodeEnvelope(ok)
	if err != nil || v != nil {
		t.Fatalf("success envelope: %v, %v", v, err)
	}

	fail, err := EncodeErrorEnvelope("surface_doesnt_exist", "Surface 999 doesn't exist", nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = DecodeEnvelope(fail)
	var perr *Error
	if !errors.As(err, &perr) || perr.Code != "surface_doesnt_exist" {
		t.Fatalf("error envelope decoded to %v", err)
	}
}

func TestDecodeTrailingGarbage(t *testing.T) {
	encoded, _ := EncodeValue(int64(1))
	if _, err := DecodeValue(append(encoded, 0)); err == nil {
		t.Fatal("expected trailing bytes error")
	}
}
