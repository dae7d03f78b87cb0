package litefs

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/embeddedkv/litefs/internal/blockdev"
)

func newTestFS(t *testing.T) (*FS, blockdev.Device) {
	t.Helper()
	dev := blockdev.NewMemDevice(256, 512)
	opts := NewOptions(WithBlockSize(512), WithProgramBlockSize(16))
	ctx := context.Background()
	if err := Format(ctx, dev, opts); err != nil {
		t.Fatalf("Format() error: %v", err)
	}
	fs, err := Connect(ctx, dev, opts)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	return fs, dev
}

func TestFormatConnectRoundTrip(t *testing.T) {
	fs, _ := newTestFS(t)
	defer fs.Close()

	entries, err := fs.List(context.Background(), "/")
	if err != nil {
		t.Fatalf("List(\"/\") error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("List(\"/\") on a fresh filesystem = %v, want empty", entries)
	}
}

func TestMkdirAndList(t *testing.T) {
	fs, _ := newTestFS(t)
	defer fs.Close()
	ctx := context.Background()

	if err := fs.Mkdir(ctx, "/a/b/c"); err != nil {
		t.Fatalf("Mkdir() error: %v", err)
	}

	root, err := fs.List(ctx, "/")
	if err != nil {
		t.Fatalf("List(\"/\") error: %v", err)
	}
	if len(root) != 1 || root[0].Name != "a" || root[0].Kind != Dictionary {
		t.Fatalf("List(\"/\") = %+v, want one Dictionary entry named a", root)
	}

	ab, err := fs.List(ctx, "/a/b")
	if err != nil {
		t.Fatalf("List(\"/a/b\") error: %v", err)
	}
	if len(ab) != 1 || ab[0].Name != "c" {
		t.Fatalf("List(\"/a/b\") = %+v, want one entry named c", ab)
	}

	if err := fs.Mkdir(ctx, "/a/b/c"); err != nil {
		t.Fatalf("Mkdir() on an existing directory should be idempotent, got: %v", err)
	}
}

func TestMkdirOverExistingFileFails(t *testing.T) {
	fs, _ := newTestFS(t)
	defer fs.Close()
	ctx := context.Background()

	if err := fs.Set(ctx, "/foo", []byte("hi")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := fs.Mkdir(ctx, "/foo"); !errors.Is(err, ErrDirectoryExpected) {
		t.Fatalf("Mkdir() over a file error = %v, want ErrDirectoryExpected", err)
	}
}

func TestSetGetInline(t *testing.T) {
	fs, _ := newTestFS(t)
	defer fs.Close()
	ctx := context.Background()

	if err := fs.Mkdir(ctx, "/dir"); err != nil {
		t.Fatalf("Mkdir() error: %v", err)
	}
	want := []byte("hello, littlefs")
	if err := fs.Set(ctx, "/dir/greeting", want); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, err := fs.Get(ctx, "/dir/greeting")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Get() = %q, want %q", got, want)
	}

	entries, err := fs.List(ctx, "/dir")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "greeting" || entries[0].Kind != Value {
		t.Fatalf("List(\"/dir\") = %+v, want one Value entry named greeting", entries)
	}
}

func TestSetGetCTZLargeFile(t *testing.T) {
	fs, _ := newTestFS(t)
	defer fs.Close()
	ctx := context.Background()

	want := bytes.Repeat([]byte("0123456789abcdef"), 256) // 4096 bytes, well above the inline threshold
	if err := fs.Set(ctx, "/big", want); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, err := fs.Get(ctx, "/big")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Get() returned %d bytes, want %d matching bytes", len(got), len(want))
	}
}

func TestSetOverwritesExistingFile(t *testing.T) {
	fs, _ := newTestFS(t)
	defer fs.Close()
	ctx := context.Background()

	if err := fs.Set(ctx, "/f", []byte("first")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := fs.Set(ctx, "/f", []byte("second, and longer")); err != nil {
		t.Fatalf("Set() overwrite error: %v", err)
	}

	got, err := fs.Get(ctx, "/f")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(got) != "second, and longer" {
		t.Fatalf("Get() = %q, want the overwritten contents", got)
	}

	entries, err := fs.List(ctx, "/")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("List(\"/\") after overwrite = %+v, want exactly one entry", entries)
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	fs, _ := newTestFS(t)
	defer fs.Close()
	ctx := context.Background()

	if err := fs.Set(ctx, "/f", []byte("data")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := fs.Delete(ctx, "/f"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := fs.Get(ctx, "/f"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after Delete() error = %v, want ErrNotFound", err)
	}

	entries, err := fs.List(ctx, "/")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("List(\"/\") after Delete() = %+v, want empty", entries)
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	fs, _ := newTestFS(t)
	defer fs.Close()

	if err := fs.Delete(context.Background(), "/nope"); err != nil {
		t.Fatalf("Delete() of a missing file error = %v, want nil", err)
	}
}

func TestMkdirChainSplitsWhenPairFills(t *testing.T) {
	fs, _ := newTestFS(t)
	defer fs.Close()
	ctx := context.Background()

	// program_block_size=16 and a small block_size force an early split as
	// many siblings accumulate in the root pair.
	for i := 0; i < 40; i++ {
		name := "/d" + string(rune('a'+i%26)) + string(rune('0'+i/26))
		if err := fs.Mkdir(ctx, name); err != nil {
			t.Fatalf("Mkdir(%q) error: %v", name, err)
		}
	}

	entries, err := fs.List(ctx, "/")
	if err != nil {
		t.Fatalf("List(\"/\") error: %v", err)
	}
	if len(entries) != 40 {
		t.Fatalf("List(\"/\") = %d entries, want 40", len(entries))
	}
}
