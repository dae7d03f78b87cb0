package litefs

import "github.com/embeddedkv/litefs/internal/config"

// Options is the set of mount tunables. See internal/config for the
// functional-options constructor and file-based parser.
type Options = config.Options

// Option mutates Options during construction.
type Option = config.Option

// DefaultOptions returns the littlefs reference defaults.
func DefaultOptions() Options { return config.Default() }

// NewOptions builds Options from the reference defaults, applying opts in order.
func NewOptions(opts ...Option) Options { return config.New(opts...) }

var (
	// WithBlockSize overrides the block size.
	WithBlockSize = config.WithBlockSize
	// WithProgramBlockSize overrides the program block size.
	WithProgramBlockSize = config.WithProgramBlockSize
	// WithNameLengthMax overrides the maximum file-name length.
	WithNameLengthMax = config.WithNameLengthMax
	// WithFileSizeMax overrides the maximum file size.
	WithFileSizeMax = config.WithFileSizeMax
)
