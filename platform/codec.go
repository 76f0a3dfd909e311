/* Package platform carries typed method invocations between the
 * compositor core and the UI engine over a binary messenger. The
 * encoding is the engine's standard codec: self-describing, key/value
 * capable, byte-compatible with the reference implementation. */
package platform

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

var le = binary.LittleEndian

const (
	typeNull        = 0
	typeTrue        = 1
	typeFalse       = 2
	typeInt32       = 3
	typeInt64       = 4
	typeFloat64     = 6
	typeString      = 7
	typeUint8List   = 8
	typeInt32List   = 9
	typeInt64List   = 10
	typeFloat64List = 11
	typeList        = 12
	typeMap         = 13
)

/* Value domain: nil, bool, int32, int64, float64, string, []byte,
 * []int32, []int64, []float64, []any, map[string]any. Encode accepts
 * int and uint32 for convenience and widens them. */

type encoder struct {
	buf []byte
}

func (e *encoder) writeSize(n int) {
	switch {
	case n < 254:
		e.buf = append(e.buf, byte(n))
	case n <= math.MaxUint16:
		e.buf = append(e.buf, 254)
		e.buf = le.AppendUint16(e.buf, uint16(n))
	default:
		e.buf = append(e.buf, 255)
		e.buf = le.AppendUint32(e.buf, uint32(n))
	}
}

func (e *encoder) align(n int) {
	for len(e.buf)%n != 0 {
		e.buf = append(e.buf, 0)
	}
}

func (e *encoder) writeValue(v any) error {
	switch v := v.(type) {
	case nil:
		e.buf = append(e.buf, typeNull)
	case bool:
		if v {
			e.buf = append(e.buf, typeTrue)
		} else {
			e.buf = append(e.buf, typeFalse)
		}
	case int32:
		e.buf = append(e.buf, typeInt32)
		e.buf = le.AppendUint32(e.buf, uint32(v))
	case int64:
		e.buf = append(e.buf, typeInt64)
		e.buf = le.AppendUint64(e.buf, uint64(v))
	case int:
		return e.writeValue(int64(v))
	case uint32:
		return e.writeValue(int64(v))
	case uint64:
		return e.writeValue(int64(v))
	case float64:
		e.buf = append(e.buf, typeFloat64)
		e.align(8)
		e.buf = le.AppendUint64(e.buf, math.Float64bits(v))
	case string:
		e.buf = append(e.buf, typeString)
		e.writeSize(len(v))
		e.buf = append(e.buf, v...)
	case []byte:
		e.buf = append(e.buf, typeUint8List)
		e.writeSize(len(v))
		e.buf = append(e.buf, v...)
	case []int32:
		e.buf = append(e.buf, typeInt32List)
		e.writeSize(len(v))
		e.align(4)
		for _, x := range v {
			e.buf = le.AppendUint32(e.buf, uint32(x))
		}
	case []int64:
		e.buf = append(e.buf, typeInt64List)
		e.writeSize(len(v))
		e.align(8)
		for _, x := range v {
			e.buf = le.AppendUint64(e.buf, uint64(x))
		}
	case []float64:
		e.buf = append(e.buf, typeFloat64List)
		e.writeSize(len(v))
		e.align(8)
		for _, x := range v {
			e.buf = le.AppendUint64(e.buf, math.Float64bits(x))
		}
	case []any:
		e.buf = append(e.buf, typeList)
		e.writeSize(len(v))
		for _, x := range v {
			if err := e.writeValue(x); err != nil {
				return err
			}
		}
	case map[string]any:
		e.buf = append(e.buf, typeMap)
		e.writeSize(len(v))
		/* deterministic ordering keeps encodings comparable in tests */
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := e.writeValue(k); err != nil {
				return err
			}
			if err := e.writeValue(v[k]); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("standard codec: unsupported type %T", v)
	}
	return nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, fmt.Errorf("standard codec: truncated message")
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) take(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, fmt.Errorf("standard codec: truncated message")
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) readSize() (int, error) {
	b, err := d.readByte()
	if err != nil {
		return 0, err
	}
	switch b {
	case 254:
		raw, err := d.take(2)
		if err != nil {
			return 0, err
		}
		return int(le.Uint16(raw)), nil
	case 255:
		raw, err := d.take(4)
		if err != nil {
			return 0, err
		}
		return int(le.Uint32(raw)), nil
	}
	return int(b), nil
}

func (d *decoder) align(n int) {
	if rem := d.pos % n; rem != 0 {
		d.pos += n - rem
	}
}

func (d *decoder) readValue() (any, error) {
	t, err := d.readByte()
	if err != nil {
		return nil, err
	}
	switch t {
	case typeNull:
		return nil, nil
	case typeTrue:
		return true, nil
	case typeFalse:
		return false, nil
	case typeInt32:
		raw, err := d.take(4)
		if err != nil {
			return nil, err
		}
		return int32(le.Uint32(raw)), nil
	case typeInt64:
		raw, err := d.take(8)
		if err != nil {
			return nil, err
		}
		return int64(le.Uint64(raw)), nil
	case typeFloat64:
		d.align(8)
		raw, err := d.take(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(le.Uint64(raw)), nil
	case typeString:
		n, err := d.readSize()
		if err != nil {
			return nil, err
		}
		raw, err := d.take(n)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	case typeUint8List:
		n, err := d.readSize()
		if err != nil {
			return nil, err
		}
		raw, err := d.take(n)
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), raw...), nil
	case typeInt32List:
		n, err := d.readSize()
		if err != nil {
			return nil, err
		}
		d.align(4)
		raw, err := d.take(n * 4)
		if err != nil {
			return nil, err
		}
		vs := make([]int32, n)
		for i := range vs {
			vs[i] = int32(le.Uint32(raw[i*4:]))
		}
		return vs, nil
	case typeInt64List:
		n, err := d.readSize()
		if err != nil {
			return nil, err
		}
		d.align(8)
		raw, err := d.take(n * 8)
		if err != nil {
			return nil, err
		}
		vs := make([]int64, n)
		for i := range vs {
			vs[i] = int64(le.Uint64(raw[i*8:]))
		}
		return vs, nil
	case typeFloat64List:
		n, err := d.readSize()
		if err != nil {
			return nil, err
		}
		d.align(8)
		raw, err := d.take(n * 8)
		if err != nil {
			return nil, err
		}
		vs := make([]float64, n)
		for i := range vs {
			vs[i] = math.Float64frombits(le.Uint64(raw[i*8:]))
		}
		return vs, nil
	case typeList:
		n, err := d.readSize()
		if err != nil {
			return nil, err
		}
		vs := make([]any, n)
		for i := range vs {
			if vs[i], err = d.readValue(); err != nil {
				return nil, err
			}
		}
		return vs, nil
	case typeMap:
		n, err := d.readSize()
		if err != nil {
			return nil, err
		}
		m := make(map[string]any, n)
		for range n {
			k, err := d.readValue()
			if err != nil {
				return nil, err
			}
			v, err := d.readValue()
			if err != nil {
				return nil, err
			}
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("standard codec: non-string map key %T", k)
			}
			m[ks] = v
		}
		return m, nil
	}
	return nil, fmt.Errorf("standard codec: unknown type byte %d", t)
}

// EncodeValue serializes one value with the standard message codec.
func EncodeValue(v any) ([]byte, error) {
	var e encoder
	if err := e.writeValue(v); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// DecodeValue deserializes one value.
func DecodeValue(buf []byte) (any, error) {
	d := decoder{buf: buf}
	v, err := d.readValue()
	if err != nil {
		return nil, err
	}
	if d.pos != len(buf) {
		return nil, fmt.Errorf("standard codec: %d trailing bytes", len(buf)-d.pos)
	}
	return v, nil
}

/* method codec: a method call is the method name string followed by
 * the argument value; replies are envelopes tagged success/error. */

func EncodeMethodCall(call MethodCall) ([]byte, error) {
	var e encoder
	if err := e.writeValue(call.Method); err != nil {
		return nil, err
	}
	if err := e.writeValue(call.Arguments); err != nil {
		return nil, err
	}
	return e.buf, nil
}

func DecodeMethodCall(buf []byte) (MethodCall, error) {
	d := decoder{buf: buf}
	method, err := d.readValue()
	if err != nil {
		return MethodCall{}, err
	}
	name, ok := method.(string)
	if !ok {
		return MethodCall{}, fmt.Errorf("method codec: method name is %T", method)
	}
	args, err := d.readValue()
	if err != nil {
		return MethodCall{}, err
	}
	return MethodCall{Method: name, Arguments: args}, nil
}

func EncodeSuccessEnvelope(result any) ([]byte, error) {
	e := encoder{buf: []byte{0}}
	if err := e.writeValue(result); err != nil {
		return nil, err
	}
	return e.buf, nil
}

func EncodeErrorEnvelope(code, message string, details any) ([]byte, error) {
	e := encoder{buf: []byte{1}}
	if err := e.writeValue(code); err != nil {
		return nil, err
	}
	if err := e.writeValue(message); err != nil {
		return nil, err
	}
	if err := e.writeValue(details); err != nil {
		return nil, err
	}
	return e.buf, nil
}

/* DecodeEnvelope returns the success value or an *Error. */
func DecodeEnvelope(buf []byte) (any, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("method codec: empty envelope")
	}
	/* start past the tag byte but keep offsets relative to the whole
	 * envelope, matching the encoder's alignment */
	d := decoder{buf: buf, pos: 1}
	switch buf[0] {
	case 0:
		return d.readValue()
	case 1:
		code, err := d.readValue()
		if err != nil {
			return nil, err
		}
		message, err := d.readValue()
		if err != nil {
			return nil, err
		}
		details, err := d.readValue()
		if err != nil {
			return nil, err
		}
		codeStr, _ := code.(string)
		msgStr, _ := message.(string)
		return nil, &Error{Code: codeStr, Message: msgStr, Details: details}
	}
	return nil, fmt.Errorf("method codec: bad envelope tag %d", buf[0])
}
