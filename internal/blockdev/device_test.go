package blockdev

import (
	"bytes"
	"context"
	"testing"
)

func TestMemDeviceReadWriteRoundTrip(t *testing.T) {
	dev := NewMemDevice(4, 16)
	ctx := context.Background()

	in := bytes.Repeat([]byte{0xAB}, 16)
	if err := dev.WriteBlock(ctx, 2, in); err != nil {
		t.Fatalf("WriteBlock() error: %v", err)
	}

	out := make([]byte, 16)
	if err := dev.ReadBlock(ctx, 2, out); err != nil {
		t.Fatalf("ReadBlock() error: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Fatalf("ReadBlock() = %v, want %v", out, in)
	}
}

func TestMemDeviceOutOfRange(t *testing.T) {
	dev := NewMemDevice(2, 16)
	ctx := context.Background()
	buf := make([]byte, 16)
	if err := dev.ReadBlock(ctx, 5, buf); err == nil {
		t.Fatalf("ReadBlock() out of range should error")
	}
}

func TestFaultInjectorTornWrite(t *testing.T) {
	dev := NewMemDevice(1, 16)
	ctx := context.Background()

	original := bytes.Repeat([]byte{0x01}, 16)
	if err := dev.WriteBlock(ctx, 0, original); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	fi := NewFaultInjector(dev)
	fi.ArmTornWrite(0, 8)

	newData := bytes.Repeat([]byte{0x02}, 16)
	if err := fi.WriteBlock(ctx, 0, newData); err != nil {
		t.Fatalf("WriteBlock() error: %v", err)
	}

	out := make([]byte, 16)
	if err := dev.ReadBlock(ctx, 0, out); err != nil {
		t.Fatalf("ReadBlock() error: %v", err)
	}
	if !bytes.Equal(out[:8], newData[:8]) {
		t.Fatalf("first 8 bytes should be the new write")
	}
	if !bytes.Equal(out[8:], original[8:]) {
		t.Fatalf("remaining bytes should be untouched by the torn write")
	}
}

func TestFaultInjectorInactiveFailsAll(t *testing.T) {
	dev := NewMemDevice(1, 16)
	fi := NewFaultInjector(dev)
	fi.SetActive(false)

	ctx := context.Background()
	buf := make([]byte, 16)
	if err := fi.ReadBlock(ctx, 0, buf); err == nil {
		t.Fatalf("ReadBlock() on inactive device should fail")
	}
	if err := fi.WriteBlock(ctx, 0, buf); err == nil {
		t.Fatalf("WriteBlock() on inactive device should fail")
	}
}
