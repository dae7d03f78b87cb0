package mblock

import (
	"testing"

	"github.com/embeddedkv/litefs/internal/entry"
	"github.com/embeddedkv/litefs/internal/tagcodec"
)

func nameEntry(id uint16, name string) entry.Entry {
	return entry.Entry{
		Tag:     tagcodec.Tag{Abstract: tagcodec.TypeName, ID: id, Length: uint16(len(name))},
		Payload: []byte(name),
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	b := &Block{RevisionCount: 1}
	b = AddCommit(b, []entry.Entry{nameEntry(0, "littlefs")})

	out, result := Serialize(32, 512, b)
	if result != Ok {
		t.Fatalf("Serialize() result = %v, want Ok", result)
	}

	parsed, err := Parse(32, out)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if parsed.RevisionCount != b.RevisionCount {
		t.Fatalf("RevisionCount = %d, want %d", parsed.RevisionCount, b.RevisionCount)
	}
	compacted := entry.Compact(parsed.Entries())
	if len(compacted) != 1 || string(compacted[0].Payload) != "littlefs" {
		t.Fatalf("unexpected entries: %+v", compacted)
	}
}

func TestSerializeDeterministic(t *testing.T) {
	b := AddCommit(&Block{RevisionCount: 4}, []entry.Entry{nameEntry(0, "a")})
	out1, _ := Serialize(16, 128, b)
	out2, _ := Serialize(16, 128, b)
	if string(out1) != string(out2) {
		t.Fatalf("Serialize() not deterministic")
	}
}

func TestEmergencySplitWhenOverflowing(t *testing.T) {
	b := &Block{RevisionCount: 1}
	for i := uint16(0); i < 40; i++ {
		b = AddCommit(b, []entry.Entry{nameEntry(i, "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx")})
	}
	_, result := Serialize(32, 256, b)
	if result != SplitEmergency {
		t.Fatalf("Serialize() result = %v, want SplitEmergency", result)
	}
}

func TestSplitPartitionsByID(t *testing.T) {
	b := &Block{RevisionCount: 1}
	for i := uint16(0); i < 4; i++ {
		b = AddCommit(b, []entry.Entry{nameEntry(i, "n")})
	}
	head, tail := Split(b, 10, 11)

	headIDs := IDs(head)
	tailIDs := IDs(tail)
	if len(headIDs)+len(tailIDs) != 4 {
		t.Fatalf("split lost entries: head=%d tail=%d", len(headIDs), len(tailIDs))
	}
	linked := LinkedBlocks(head)
	found := false
	for _, addr := range linked {
		if addr == 10 || addr == 11 {
			found = true
		}
	}
	if !found {
		t.Fatalf("head does not link to new pair: %v", linked)
	}
}
