// Package entry defines the (tag, payload) unit stored in a metadata commit
// and the compaction rule used to collapse a replayed entry list to its
// minimal equivalent form.
package entry

import (
	"sort"

	"github.com/embeddedkv/litefs/internal/tagcodec"
)

// Entry is one (tag, payload) pair. Payload's length always equals Tag.Length.
type Entry struct {
	Tag     tagcodec.Tag
	Payload []byte
}

// Length returns the on-disk byte length of the entry: the 4-byte tag plus payload.
func Length(e Entry) int {
	return 4 + int(e.Tag.Length)
}

// compactionTypeOrder fixes a deterministic emission order for the distinct
// abstract types a single id may carry at once (e.g. a NAME and a STRUCT
// entry both describing the same directory entry).
var compactionTypeOrder = []tagcodec.AbstractType{
	tagcodec.TypeName,
	tagcodec.TypeStruct,
	tagcodec.TypeUserAttr,
	tagcodec.TypeTail,
	tagcodec.TypeCRC,
}

type survivor struct {
	firstSeen int
	id        uint16
	byType    map[tagcodec.AbstractType]Entry
}

// Compact replays entries in order and returns the minimal equivalent list:
// a later entry for the same id and abstract type replaces the earlier one,
// and a SPLICE entry for an id removes every entry with that id and shifts
// every higher id down by one. ids in the result are renumbered to the dense
// range 0..n-1 in ascending original-id order; within that, each id's
// entries are emitted in compactionTypeOrder.
func Compact(entries []Entry) []Entry {
	alive := make(map[uint16]*survivor)

	for i, e := range entries {
		if e.Tag.IsDelete() {
			id := e.Tag.ID
			delete(alive, id)
			shiftDown(alive, id)
			continue
		}

		s, ok := alive[e.Tag.ID]
		if !ok {
			s = &survivor{firstSeen: i, id: e.Tag.ID, byType: make(map[tagcodec.AbstractType]Entry)}
			alive[e.Tag.ID] = s
		}
		s.byType[e.Tag.Abstract] = Entry{Tag: e.Tag, Payload: e.Payload}
	}

	list := make([]*survivor, 0, len(alive))
	for _, s := range alive {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })

	out := make([]Entry, 0, len(list)*2)
	for newID, s := range list {
		for _, typ := range compactionTypeOrder {
			e, ok := s.byType[typ]
			if !ok {
				continue
			}
			e.Tag.ID = uint16(newID)
			out = append(out, e)
		}
	}
	return out
}

// shiftDown renumbers every surviving id greater than deletedID down by one,
// modeling the on-disk renumbering a SPLICE performs.
func shiftDown(alive map[uint16]*survivor, deletedID uint16) {
	ids := make([]uint16, 0, len(alive))
	for id := range alive {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if id <= deletedID {
			continue
		}
		s := alive[id]
		delete(alive, id)
		s.id--
		for typ, e := range s.byType {
			e.Tag.ID = s.id
			s.byType[typ] = e
		}
		alive[s.id] = s
	}
}
