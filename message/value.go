package message

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Kind is the type of a value.
type Kind uint8

// Value kinds. None is returned when reading past the last value of a
// message.
const (
	None Kind = iota
	Integer
	Number
	String
	Array
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Integer:
		return "integer"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ArrayType is the element type of array values.
type ArrayType uint8

// Array element types. Elements are encoded little-endian.
const (
	Uint8 ArrayType = iota + 1
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
)

// Size returns the size of a single element in bytes. Zero is returned
// for unknown types.
func (t ArrayType) Size() int {
	switch t {
	case Uint8, Int8:
		return 1
	case Int16:
		return 2
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		return 0
	}
}

func (t ArrayType) String() string {
	switch t {
	case Uint8:
		return "uint8"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Value is a single typed value of a message. Values returned by the
// reader reference reader memory and stay valid until the next message is
// read.
type Value struct {
	kind Kind
	bits uint64
	typ  ArrayType
	raw  []byte
}

// Int returns integer value.
func Int(v int64) Value {
	return Value{kind: Integer, bits: uint64(v)}
}

// Num returns floating number value.
func Num(v float64) Value {
	return Value{kind: Number, bits: math.Float64bits(v)}
}

// Str returns string value.
func Str(s string) Value {
	return Value{kind: String, raw: []byte(s)}
}

// Bytes returns uint8 array value.
func Bytes(b []byte) Value {
	return Value{kind: Array, typ: Uint8, raw: b}
}

// Float32s returns float32 array value.
func Float32s(f []float32) Value {
	raw := make([]byte, len(f)*Float32.Size())
	PutFloat32s(raw, f)
	return Value{kind: Array, typ: Float32, raw: raw}
}

// RawArray returns array value of provided type with little-endian
// encoded elements.
func RawArray(t ArrayType, data []byte) Value {
	return Value{kind: Array, typ: t, raw: data}
}

// Kind returns the kind of value.
func (v Value) Kind() Kind {
	return v.kind
}

// Int returns integer value. False is returned if value is not Integer.
func (v Value) Int() (int64, bool) {
	if v.kind != Integer {
		return 0, false
	}
	return int64(v.bits), true
}

// Float returns Integer or Number value as float.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case Integer:
		return float64(int64(v.bits)), true
	case Number:
		return math.Float64frombits(v.bits), true
	}
	return 0, false
}

// Text returns String value. It allocates.
func (v Value) Text() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return string(v.raw), true
}

// Bytes returns raw data of String and Array values.
func (v Value) Bytes() []byte {
	return v.raw
}

// ArrayType returns element type of Array value.
func (v Value) ArrayType() ArrayType {
	if v.kind != Array {
		return 0
	}
	return v.typ
}

// Len returns number of elements of Array or number of bytes of String.
func (v Value) Len() int {
	switch v.kind {
	case String:
		return len(v.raw)
	case Array:
		if s := v.typ.Size(); s > 0 {
			return len(v.raw) / s
		}
	}
	return 0
}

// Float32 returns element i of Float32 array.
func (v Value) Float32(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(v.raw[i*4:]))
}

// CopyFloat32s copies elements of Float32 array starting from element
// offset into dst and returns the number of copied elements.
func (v Value) CopyFloat32s(dst []float32, offset int) int {
	if v.kind != Array || v.typ != Float32 || offset >= v.Len() {
		return 0
	}
	src := v.raw[offset*4:]
	n := len(src) / 4
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return n
}

// Float32s returns a copy of Float32 array. It allocates.
func (v Value) Float32s() []float32 {
	if v.kind != Array || v.typ != Float32 {
		return nil
	}
	f := make([]float32, v.Len())
	v.CopyFloat32s(f, 0)
	return f
}

func (v Value) String() string {
	switch v.kind {
	case Integer:
		return fmt.Sprintf("integer(%d)", int64(v.bits))
	case Number:
		return fmt.Sprintf("number(%v)", math.Float64frombits(v.bits))
	case String:
		return fmt.Sprintf("string(%q)", v.raw)
	case Array:
		return fmt.Sprintf("array(%v:%d)", v.typ, v.Len())
	}
	return v.kind.String()
}

// PutFloat32s encodes floats into p. p must have space for all of them.
func PutFloat32s(p []byte, f []float32) {
	for i, s := range f {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
}

// encoded value layout:
//
//	Integer, Number: kind | 8 bytes
//	String:          kind | uint32 len | bytes
//	Array:           kind | type | uint32 count | elements
const (
	numericSize     = 1 + 8
	stringHeaderLen = 1 + 4
	arrayHeaderLen  = 1 + 1 + 4
)

// Size returns the number of channel bytes taken by a message with
// provided values, including the length prefix.
func Size(values ...Value) int {
	n := prefixSize
	for _, v := range values {
		switch v.kind {
		case Integer, Number:
			n += numericSize
		case String:
			n += stringHeaderLen + len(v.raw)
		case Array:
			n += arrayHeaderLen + len(v.raw)
		}
	}
	return n
}

// decode reads single value from p and returns it with its encoded size.
func decode(p []byte) (Value, int, error) {
	if len(p) == 0 {
		return Value{}, 0, ErrCorrupt
	}
	switch k := Kind(p[0]); k {
	case Integer, Number:
		if len(p) < numericSize {
			return Value{}, 0, ErrCorrupt
		}
		return Value{kind: k, bits: binary.LittleEndian.Uint64(p[1:])}, numericSize, nil
	case String:
		if len(p) < stringHeaderLen {
			return Value{}, 0, ErrCorrupt
		}
		n := int(binary.LittleEndian.Uint32(p[1:]))
		if n > len(p)-stringHeaderLen {
			return Value{}, 0, ErrCorrupt
		}
		end := stringHeaderLen + n
		return Value{kind: String, raw: p[stringHeaderLen:end:end]}, end, nil
	case Array:
		if len(p) < arrayHeaderLen {
			return Value{}, 0, ErrCorrupt
		}
		t := ArrayType(p[1])
		size := t.Size()
		if size == 0 {
			return Value{}, 0, ErrCorrupt
		}
		n := int(binary.LittleEndian.Uint32(p[2:]))
		if n > (len(p)-arrayHeaderLen)/size {
			return Value{}, 0, ErrCorrupt
		}
		end := arrayHeaderLen + n*size
		return Value{kind: Array, typ: t, raw: p[arrayHeaderLen:end:end]}, end, nil
	}
	return Value{}, 0, ErrCorrupt
}
