// Package config parses mount options from a "[section]"/"key=value" file
// into the filesystem's tunables.
package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Options holds the tunables a mount is configured with.
type Options struct {
	ProgramBlockSize     uint32
	BlockSize            uint32
	NameLengthMax        uint32
	FileSizeMax          uint32
	FileAttributeSizeMax uint32

	// LookaheadSize is parsed and stored, but the allocator does not read
	// it; Connect sizes the path cache to four times this value.
	LookaheadSize uint32
	// AllocatorBiasStart is parsed and stored, but the allocator does not
	// read it: every allocator starts in the Before bias.
	AllocatorBiasStart string
}

// Default returns the littlefs reference defaults.
func Default() Options {
	return Options{
		ProgramBlockSize:     32,
		BlockSize:            512,
		NameLengthMax:        255,
		FileSizeMax:          2147483647,
		FileAttributeSizeMax: 1022,
		LookaheadSize:        32,
		AllocatorBiasStart:   "before",
	}
}

// Option mutates Options during construction.
type Option func(*Options)

// WithBlockSize overrides the block size.
func WithBlockSize(n uint32) Option { return func(o *Options) { o.BlockSize = n } }

// WithProgramBlockSize overrides the program block size.
func WithProgramBlockSize(n uint32) Option { return func(o *Options) { o.ProgramBlockSize = n } }

// WithNameLengthMax overrides the maximum file-name length.
func WithNameLengthMax(n uint32) Option { return func(o *Options) { o.NameLengthMax = n } }

// WithFileSizeMax overrides the maximum file size.
func WithFileSizeMax(n uint32) Option { return func(o *Options) { o.FileSizeMax = n } }

// New builds Options from the reference defaults, applying opts in order.
func New(opts ...Option) Options {
	o := Default()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Validate checks the invariants the on-disk format requires.
func (o Options) Validate() error {
	if o.BlockSize == 0 || o.ProgramBlockSize == 0 {
		return fmt.Errorf("config: block_size and program_block_size must be nonzero")
	}
	if o.BlockSize%o.ProgramBlockSize != 0 {
		return fmt.Errorf("config: program_block_size (%d) must divide block_size (%d)", o.ProgramBlockSize, o.BlockSize)
	}
	return nil
}

// Parse reads a "[section]"/"key=value" options file. Only the "[litefs]"
// section is consulted; lines in other sections are skipped, so a single
// options file can be shared with unrelated tools. An unknown key inside
// "[litefs]" is an error.
func Parse(r io.Reader) (Options, error) {
	o := Default()

	scanner := bufio.NewScanner(r)
	section := ""
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		if section != "litefs" {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Options{}, fmt.Errorf("config: line %d: expected key=value, got %q", lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if err := o.set(key, value); err != nil {
			return Options{}, fmt.Errorf("config: line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return Options{}, fmt.Errorf("config: scan: %w", err)
	}
	return o, o.Validate()
}

func (o *Options) set(key, value string) error {
	switch key {
	case "program_block_size":
		return setUint32(&o.ProgramBlockSize, value)
	case "block_size":
		return setUint32(&o.BlockSize, value)
	case "name_length_max":
		return setUint32(&o.NameLengthMax, value)
	case "file_size_max":
		return setUint32(&o.FileSizeMax, value)
	case "file_attribute_size_max":
		return setUint32(&o.FileAttributeSizeMax, value)
	case "lookahead_size":
		return setUint32(&o.LookaheadSize, value)
	case "allocator_bias_start":
		o.AllocatorBiasStart = value
		return nil
	default:
		return fmt.Errorf("unknown key %q", key)
	}
}

func setUint32(dst *uint32, value string) error {
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", value, err)
	}
	*dst = uint32(n)
	return nil
}
