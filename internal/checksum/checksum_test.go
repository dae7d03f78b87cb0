package checksum

import "testing"

func TestValueMatchesIEEE(t *testing.T) {
	// "123456789" is the standard CRC-32/IEEE check string; its checksum is
	// the well-known value 0xCBF43926.
	got := Value([]byte("123456789"))
	const want = 0xCBF43926
	if got != want {
		t.Fatalf("Value() = %#x, want %#x", got, want)
	}
}

func TestExtendMatchesValue(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	whole := Value(data)

	split := len(data) / 3
	partial := Value(data[:split])
	extended := Extend(partial, data[split:])

	if extended != whole {
		t.Fatalf("Extend() = %#x, want %#x", extended, whole)
	}
}
