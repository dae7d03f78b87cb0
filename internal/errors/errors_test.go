package errors

import (
	"errors"
	"testing"
)

func TestDeviceErrorUnwraps(t *testing.T) {
	base := errors.New("disk yanked")
	err := NewDeviceError("read", 7, base)

	if !errors.Is(err, base) {
		t.Fatalf("errors.Is() should see through DeviceError to the wrapped cause")
	}
	if err.Error() == "" {
		t.Fatalf("Error() should not be empty")
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{ErrNotFound, ErrDirectoryExpected, ErrValueExpected, ErrNoSpace, ErrCorrupt, ErrNameTooLong, ErrExists}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Fatalf("sentinel %d and %d should be distinct", i, j)
			}
		}
	}
}
