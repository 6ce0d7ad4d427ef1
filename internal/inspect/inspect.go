// Package inspect decodes the bytes at an offset as integers, floats and bit
// strings.
package inspect

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"strings"

	"hexpeek/internal/store"
)

// Span is the number of bytes Decode looks at.
const Span = 16

// Missing is the value of a field with too few bytes behind it.
const Missing = "-"

// Field is one decoded interpretation.
type Field struct {
	Name  string
	Value string
}

type intField struct {
	name   string
	size   int
	signed bool
}

var intFields = []intField{
	{"u8", 1, false}, {"i8", 1, true},
	{"u16", 2, false}, {"i16", 2, true},
	{"u32", 4, false}, {"i32", 4, true},
	{"u64", 8, false}, {"i64", 8, true},
	{"u128", 16, false}, {"i128", 16, true},
}

// Decode interprets the first Span bytes of data in the given byte order.
// Fields are returned in a fixed order.
func Decode(data []byte, order binary.ByteOrder) []Field {
	if len(data) > Span {
		data = data[:Span]
	}

	fields := []Field{
		{"bits 0-63", bitString(data, 0)},
		{"bits 64-127", bitString(data, 8)},
	}
	for _, f := range intFields {
		v := Missing
		if len(data) >= f.size {
			v = formatInt(data[:f.size], order, f.signed)
		}
		fields = append(fields, Field{f.name, v})
	}

	f32, f64 := Missing, Missing
	if len(data) >= 4 {
		f32 = formatFloat(float64(math.Float32frombits(order.Uint32(data))), 32)
	}
	if len(data) >= 8 {
		f64 = formatFloat(math.Float64frombits(order.Uint64(data)), 64)
	}
	return append(fields, Field{"f32", f32}, Field{"f64", f64})
}

// At decodes up to Span bytes of s starting at offset.
func At(s store.ByteStore, offset int64, order binary.ByteOrder) ([]Field, error) {
	n := int64(Span)
	if offset >= 0 && offset < s.Len() {
		n = min(n, s.Len()-offset)
	}
	data, err := s.Read(offset, int(n))
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", s.Source(), err)
	}
	return Decode(data, order), nil
}

// Lookup returns the value of the named field.
func Lookup(fields []Field, name string) (string, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

func bitString(data []byte, from int) string {
	if len(data) <= from {
		return Missing
	}
	var b strings.Builder
	for i := from; i < from+8 && i < len(data); i++ {
		if i > from {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%08b", data[i])
	}
	return b.String()
}

func formatInt(data []byte, order binary.ByteOrder, signed bool) string {
	switch len(data) {
	case 1:
		if signed {
			return fmt.Sprintf("%d", int8(data[0]))
		}
		return fmt.Sprintf("%d", data[0])
	case 2:
		v := order.Uint16(data)
		if signed {
			return fmt.Sprintf("%d", int16(v))
		}
		return fmt.Sprintf("%d", v)
	case 4:
		v := order.Uint32(data)
		if signed {
			return fmt.Sprintf("%d", int32(v))
		}
		return fmt.Sprintf("%d", v)
	case 8:
		v := order.Uint64(data)
		if signed {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%d", v)
	case 16:
		var high, low uint64
		if order == binary.BigEndian {
			high, low = order.Uint64(data[:8]), order.Uint64(data[8:])
		} else {
			low, high = order.Uint64(data[:8]), order.Uint64(data[8:])
		}

		n := new(big.Int).SetUint64(high)
		n.Lsh(n, 64)
		n.Or(n, new(big.Int).SetUint64(low))

		if signed && high&(1<<63) != 0 {
			n.Sub(n, new(big.Int).Lsh(big.NewInt(1), 128))
		}
		return n.String()
	}
	return Missing
}

func formatFloat(f float64, bits int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Sprintf("%v", f)
	}
	if bits == 32 {
		return fmt.Sprintf("%g", float32(f))
	}
	return fmt.Sprintf("%g", f)
}
