package entry

import (
	"testing"

	"github.com/embeddedkv/litefs/internal/tagcodec"
)

func nameEntry(id uint16, name string) Entry {
	return Entry{
		Tag:     tagcodec.Tag{Valid: true, Abstract: tagcodec.TypeName, ID: id, Length: uint16(len(name))},
		Payload: []byte(name),
	}
}

func structEntry(id uint16, payload []byte) Entry {
	return Entry{
		Tag:     tagcodec.Tag{Valid: true, Abstract: tagcodec.TypeStruct, Chunk: tagcodec.ChunkInline, ID: id, Length: uint16(len(payload))},
		Payload: payload,
	}
}

func TestCompactLaterEntryWins(t *testing.T) {
	entries := []Entry{
		nameEntry(0, "a"),
		structEntry(0, []byte("hi")),
		structEntry(0, []byte("bye")),
	}
	got := Compact(entries)
	if len(got) != 2 {
		t.Fatalf("Compact() returned %d entries, want 2", len(got))
	}
	if string(got[1].Payload) != "bye" {
		t.Fatalf("Compact() struct payload = %q, want %q", got[1].Payload, "bye")
	}
}

func TestCompactDeleteRenumbers(t *testing.T) {
	entries := []Entry{
		nameEntry(0, "a"),
		nameEntry(1, "b"),
		nameEntry(2, "c"),
		{Tag: tagcodec.Delete(1)},
	}
	got := Compact(entries)
	if len(got) != 2 {
		t.Fatalf("Compact() returned %d entries, want 2", len(got))
	}
	if got[0].Tag.ID != 0 || string(got[0].Payload) != "a" {
		t.Fatalf("Compact()[0] = id %d payload %q, want id 0 payload a", got[0].Tag.ID, got[0].Payload)
	}
	if got[1].Tag.ID != 1 || string(got[1].Payload) != "c" {
		t.Fatalf("Compact()[1] = id %d payload %q, want id 1 payload c", got[1].Tag.ID, got[1].Payload)
	}
}

func TestCompactIsIdempotent(t *testing.T) {
	entries := []Entry{
		nameEntry(0, "a"),
		nameEntry(1, "b"),
		structEntry(1, []byte("v1")),
		structEntry(1, []byte("v2")),
		{Tag: tagcodec.Delete(0)},
	}
	once := Compact(entries)
	twice := Compact(once)
	if len(once) != len(twice) {
		t.Fatalf("Compact not idempotent: len %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Tag != twice[i].Tag || string(once[i].Payload) != string(twice[i].Payload) {
			t.Fatalf("Compact not idempotent at index %d: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestCRCExtendsConsistently(t *testing.T) {
	e := nameEntry(0, "littlefs")
	seed1, _ := CRC(0, tagcodec.InitialMask, e)
	seed2, _ := CRC(0, tagcodec.InitialMask, e)
	if seed1 != seed2 {
		t.Fatalf("CRC() not deterministic: %#x vs %#x", seed1, seed2)
	}
}
