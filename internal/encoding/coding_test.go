package encoding

import (
	"bytes"
	"testing"
)

func TestFixed32(t *testing.T) {
	tests := []struct {
		name  string
		value uint32
		want  []byte
	}{
		{"zero", 0, []byte{0x00, 0x00, 0x00, 0x00}},
		{"one", 1, []byte{0x01, 0x00, 0x00, 0x00}},
		{"max", 0xFFFFFFFF, []byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{"0x12345678", 0x12345678, []byte{0x78, 0x56, 0x34, 0x12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 4)
			EncodeFixed32(buf, tt.value)
			if !bytes.Equal(buf, tt.want) {
				t.Errorf("EncodeFixed32(%d) = %v, want %v", tt.value, buf, tt.want)
			}
			if got := DecodeFixed32(tt.want); got != tt.value {
				t.Errorf("DecodeFixed32(%v) = %d, want %d", tt.want, got, tt.value)
			}
			if appended := AppendFixed32(nil, tt.value); !bytes.Equal(appended, tt.want) {
				t.Errorf("AppendFixed32(%d) = %v, want %v", tt.value, appended, tt.want)
			}
		})
	}
}

func TestSlice(t *testing.T) {
	var buf []byte
	buf = AppendFixed32(buf, 0x56789ABC)
	buf = AppendFixed32(buf, 0x0C0FFEE0)
	buf = append(buf, []byte("tail")...)

	s := NewSlice(buf)

	v1, ok := s.GetFixed32()
	if !ok || v1 != 0x56789ABC {
		t.Errorf("GetFixed32() = %x, %v; want 0x56789ABC, true", v1, ok)
	}
	v2, ok := s.GetFixed32()
	if !ok || v2 != 0x0C0FFEE0 {
		t.Errorf("GetFixed32() = %x, %v; want 0x0C0FFEE0, true", v2, ok)
	}
	tail, ok := s.GetBytes(4)
	if !ok || string(tail) != "tail" {
		t.Errorf("GetBytes(4) = %q, %v; want \"tail\", true", tail, ok)
	}
	if s.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", s.Remaining())
	}
}

func TestSliceShortReads(t *testing.T) {
	s := NewSlice([]byte{0x01, 0x02})
	if _, ok := s.GetFixed32(); ok {
		t.Errorf("GetFixed32() on short buffer should fail")
	}
	if _, ok := s.GetBytes(3); ok {
		t.Errorf("GetBytes(3) on 2-byte buffer should fail")
	}
}
