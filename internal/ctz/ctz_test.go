package ctz

import (
	"bytes"
	"context"
	"testing"

	"github.com/embeddedkv/litefs/internal/blockdev"
)

func TestNPointers(t *testing.T) {
	cases := map[uint32]int{0: 0, 1: 1, 2: 2, 3: 1, 4: 3, 5: 1, 6: 2, 8: 4}
	for index, want := range cases {
		if got := NPointers(index); got != want {
			t.Errorf("NPointers(%d) = %d, want %d", index, got, want)
		}
	}
}

func TestLastBlockIndex(t *testing.T) {
	blockSize := uint32(64)
	if got := LastBlockIndex(0, blockSize); got != 0 {
		t.Errorf("LastBlockIndex(0) = %d, want 0", got)
	}
	if got := LastBlockIndex(60, blockSize); got != 0 {
		t.Errorf("LastBlockIndex(60) = %d, want 0", got)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dev := blockdev.NewMemDevice(64, 64)
	ctx := context.Background()

	next := uint32(2)
	alloc := func(ctx context.Context) (uint32, error) {
		addr := next
		next++
		return addr, nil
	}

	data := bytes.Repeat([]byte{0x5a}, 500)
	w := NewWriter(dev, alloc)
	if err := w.Write(ctx, data); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	head, size := w.Finish()
	if size != uint32(len(data)) {
		t.Fatalf("Finish() size = %d, want %d", size, len(data))
	}

	out, err := Read(ctx, dev, head, size)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("Read() returned %d bytes, want %d matching bytes", len(out), len(data))
	}
}

func TestWriteReadSingleBlock(t *testing.T) {
	dev := blockdev.NewMemDevice(4, 64)
	ctx := context.Background()

	next := uint32(0)
	alloc := func(ctx context.Context) (uint32, error) {
		addr := next
		next++
		return addr, nil
	}

	data := []byte("hello ctz")
	w := NewWriter(dev, alloc)
	if err := w.Write(ctx, data); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	head, size := w.Finish()

	out, err := Read(ctx, dev, head, size)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("Read() = %q, want %q", out, data)
	}
}
