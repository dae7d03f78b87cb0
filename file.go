package litefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/embeddedkv/litefs/internal/ctz"
	"github.com/embeddedkv/litefs/internal/encoding"
	"github.com/embeddedkv/litefs/internal/entry"
	"github.com/embeddedkv/litefs/internal/logging"
	"github.com/embeddedkv/litefs/internal/tagcodec"
)

// Get reads the complete contents of the file at path.
func (fs *FS) Get(ctx context.Context, path string) ([]byte, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil, fmt.Errorf("litefs: get %q: %w", path, ErrValueExpected)
	}
	dirSegs, name := segs[:len(segs)-1], segs[len(segs)-1]

	dirPair, err := fs.findDirPair(ctx, dirSegs)
	if err != nil {
		return nil, err
	}
	rec, _, err := fs.lookupInChain(ctx, dirPair, name, len(dirSegs) == 0)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("litefs: get %q: %w", path, ErrNotFound)
	}
	if rec.kind != Value {
		return nil, fmt.Errorf("litefs: get %q: %w", path, ErrValueExpected)
	}
	if rec.isInline {
		return append([]byte(nil), rec.inline...), nil
	}
	data, err := ctz.Read(ctx, fs.dev, rec.fileRef.Head, rec.fileRef.Size)
	if err != nil {
		return nil, fmt.Errorf("litefs: get %q: %w", path, err)
	}
	return data, nil
}

// Set writes data as the complete contents of the file at path, creating it
// if it does not exist and overwriting it (as a new copy-on-write commit) if
// it does. Data no larger than the inline threshold is stored directly in the
// metadata block; larger data is written as a CTZ skip-list file.
func (fs *FS) Set(ctx context.Context, path string, data []byte) error {
	fs.log.Debugf(logging.NSFile+"set %s (%d bytes)", path, len(data))
	segs := splitPath(path)
	if len(segs) == 0 {
		return fmt.Errorf("litefs: set %q: %w", path, ErrValueExpected)
	}
	dirSegs, name := segs[:len(segs)-1], segs[len(segs)-1]
	if uint32(len(name)) > fs.opts.NameLengthMax {
		return fmt.Errorf("litefs: set %q: %w", path, ErrNameTooLong)
	}
	if uint32(len(data)) > fs.opts.FileSizeMax {
		return fmt.Errorf("litefs: set %q: file too large", path)
	}

	dirPair, err := fs.findDirPair(ctx, dirSegs)
	if err != nil {
		return err
	}

	rec, tailPair, err := fs.lookupInChain(ctx, dirPair, name, len(dirSegs) == 0)
	if err != nil {
		return err
	}
	if rec != nil && rec.kind != Value {
		return fmt.Errorf("litefs: set %q: %w", path, ErrExists)
	}

	var id uint16
	if rec != nil {
		id = rec.id
		tailPair = rec.pair
	} else {
		id, err = fs.nextID(ctx, tailPair, tailPair == dirPair && len(dirSegs) == 0)
		if err != nil {
			return err
		}
	}

	structTag, payload, err := fs.buildStructEntry(ctx, id, data)
	if err != nil {
		return fmt.Errorf("litefs: set %q: %w", path, err)
	}

	newEntries := []entry.Entry{
		{Tag: tagcodec.Tag{Valid: true, Abstract: tagcodec.TypeName, ID: id, Length: uint16(len(name))}, Payload: []byte(name)},
		{Tag: structTag, Payload: payload},
	}
	if err := fs.commitToPair(ctx, tailPair, newEntries); err != nil {
		return err
	}
	fs.cache.Erase(path)
	return nil
}

// buildStructEntry decides between inline and CTZ storage for data and
// returns the STRUCT tag and payload to commit for it.
func (fs *FS) buildStructEntry(ctx context.Context, id uint16, data []byte) (tagcodec.Tag, []byte, error) {
	if uint32(len(data)) <= fs.inlineThreshold() {
		return tagcodec.Tag{Valid: true, Abstract: tagcodec.TypeStruct, Chunk: tagcodec.ChunkInline, ID: id, Length: uint16(len(data))}, data, nil
	}

	w := ctz.NewWriter(fs.dev, fs.alloc.GetBlock)
	if err := w.Write(ctx, data); err != nil {
		return tagcodec.Tag{}, nil, fmt.Errorf("write ctz file: %w", err)
	}
	head, size := w.Finish()

	payload := make([]byte, 8)
	encoding.EncodeFixed32(payload[0:4], head)
	encoding.EncodeFixed32(payload[4:8], size)
	return tagcodec.Tag{Valid: true, Abstract: tagcodec.TypeStruct, Chunk: tagcodec.ChunkCTZ, ID: id, Length: 8}, payload, nil
}

// Delete removes the file at path. Deleting a name that does not exist is a
// no-op.
func (fs *FS) Delete(ctx context.Context, path string) error {
	fs.log.Debugf(logging.NSFile + "delete " + path)
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil
	}
	dirSegs, name := segs[:len(segs)-1], segs[len(segs)-1]

	dirPair, err := fs.findDirPair(ctx, dirSegs)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	rec, _, err := fs.lookupInChain(ctx, dirPair, name, len(dirSegs) == 0)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	if rec.kind != Value {
		return fmt.Errorf("litefs: delete %q: %w", path, ErrValueExpected)
	}

	newEntries := []entry.Entry{{Tag: tagcodec.Delete(rec.id)}}
	if err := fs.commitToPair(ctx, rec.pair, newEntries); err != nil {
		return err
	}
	fs.cache.Erase(path)
	return nil
}
