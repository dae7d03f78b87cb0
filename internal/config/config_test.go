package config

import (
	"strings"
	"testing"
)

func TestParseOverridesDefaults(t *testing.T) {
	src := `# sample mount options
[litefs]
block_size=512
program_block_size=16
name_length_max=64
lookahead_size=64
allocator_bias_start=after

[unrelated]
foo=bar
`
	o, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if o.BlockSize != 512 || o.ProgramBlockSize != 16 {
		t.Fatalf("Parse() = %+v, want block_size=512 program_block_size=16", o)
	}
	if o.NameLengthMax != 64 {
		t.Fatalf("NameLengthMax = %d, want 64", o.NameLengthMax)
	}
	if o.AllocatorBiasStart != "after" {
		t.Fatalf("AllocatorBiasStart = %q, want after", o.AllocatorBiasStart)
	}
	// Untouched defaults survive.
	if o.FileSizeMax != Default().FileSizeMax {
		t.Fatalf("FileSizeMax = %d, want default %d", o.FileSizeMax, Default().FileSizeMax)
	}
}

func TestParseRejectsIndivisibleBlockSize(t *testing.T) {
	src := "[litefs]\nblock_size=100\nprogram_block_size=32\n"
	if _, err := Parse(strings.NewReader(src)); err == nil {
		t.Fatalf("Parse() should reject program_block_size not dividing block_size")
	}
}

func TestParseRejectsMalformedLine(t *testing.T) {
	src := "[litefs]\nnotakeyvalue\n"
	if _, err := Parse(strings.NewReader(src)); err == nil {
		t.Fatalf("Parse() should reject a line without '='")
	}
}

func TestNewAppliesOptionsOverDefaults(t *testing.T) {
	o := New(WithBlockSize(1024), WithProgramBlockSize(64))
	if o.BlockSize != 1024 || o.ProgramBlockSize != 64 {
		t.Fatalf("New() = %+v, want block_size=1024 program_block_size=64", o)
	}
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
}
