package tagcodec

import "testing"

func TestPackUnpackRoundTrip(t *testing.T) {
	in := Tag{Valid: true, Abstract: TypeStruct, Chunk: ChunkCTZ, ID: 7, Length: 42}
	got := Unpack(Pack(in))
	if got != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, in)
	}
}

func TestEncodeDecodeChaining(t *testing.T) {
	a := Tag{Valid: true, Abstract: TypeName, ID: 0, Length: 8}
	b := Tag{Valid: true, Abstract: TypeStruct, Chunk: ChunkInline, ID: 0, Length: 5}

	rawA := Encode(InitialMask, a)
	decodedA, unchainedA := Decode(InitialMask, rawA)
	if decodedA != a {
		t.Fatalf("decode(a) = %+v, want %+v", decodedA, a)
	}

	rawB := Encode(unchainedA, b)
	decodedB, _ := Decode(unchainedA, rawB)
	if decodedB != b {
		t.Fatalf("decode(b) = %+v, want %+v", decodedB, b)
	}
}

func TestDeleteTag(t *testing.T) {
	d := Delete(5)
	if !d.IsDelete() || d.ID != 5 || d.Length != 0 {
		t.Fatalf("unexpected delete tag: %+v", d)
	}
}

func TestClassifiers(t *testing.T) {
	cases := []struct {
		tag  Tag
		want string
	}{
		{Tag{Abstract: TypeTail}, "hardtail"},
		{Tag{Abstract: TypeCRC}, "crc"},
		{Tag{Abstract: TypeSplice}, "delete"},
		{Tag{Abstract: TypeName}, "name"},
		{Tag{Abstract: TypeStruct, Chunk: ChunkInline}, "inline"},
		{Tag{Abstract: TypeStruct, Chunk: ChunkCTZ}, "ctz"},
	}
	for _, c := range cases {
		switch c.want {
		case "hardtail":
			if !c.tag.IsHardTail() {
				t.Errorf("%+v: expected hardtail", c.tag)
			}
		case "crc":
			if !c.tag.IsCRC() {
				t.Errorf("%+v: expected crc", c.tag)
			}
		case "delete":
			if !c.tag.IsDelete() {
				t.Errorf("%+v: expected delete", c.tag)
			}
		case "name":
			if !c.tag.IsName() {
				t.Errorf("%+v: expected name", c.tag)
			}
		case "inline":
			if !c.tag.IsInline() {
				t.Errorf("%+v: expected inline", c.tag)
			}
		case "ctz":
			if !c.tag.IsCTZ() {
				t.Errorf("%+v: expected ctz", c.tag)
			}
		}
	}
}
