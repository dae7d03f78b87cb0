package litefs

import liteerrors "github.com/embeddedkv/litefs/internal/errors"

// Error sentinels returned by the public API. Re-exported from
// internal/errors so callers never need to import an internal package.
var (
	ErrNotFound          = liteerrors.ErrNotFound
	ErrDirectoryExpected = liteerrors.ErrDirectoryExpected
	ErrValueExpected     = liteerrors.ErrValueExpected
	ErrNoSpace           = liteerrors.ErrNoSpace
	ErrCorrupt           = liteerrors.ErrCorrupt
	ErrNameTooLong       = liteerrors.ErrNameTooLong
	ErrExists            = liteerrors.ErrExists
)
