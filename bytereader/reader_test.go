package bytereader

import "testing"

func TestReadCompactSize(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint64
	}{
		{"single byte", []byte{0x05}, 5},
		{"fd prefix", []byte{0xfd, 0x34, 0x12}, 0x1234},
		{"fe prefix", []byte{0xfe, 0x78, 0x56, 0x34, 0x12}, 0x12345678},
		{"ff prefix", []byte{0xff, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := New(c.in)
			got, err := r.ReadCompactSize("count")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Fatalf("got %d, want %d", got, c.want)
			}
			if r.Len() != 0 {
				t.Fatalf("expected cursor to consume entire input, %d bytes left", r.Len())
			}
		})
	}
}

func TestReadCompactSizeTruncated(t *testing.T) {
	r := New([]byte{0xfd, 0x01})
	_, err := r.ReadCompactSize("count")
	if err == nil {
		t.Fatal("expected truncated error")
	}
	if _, ok := err.(*TruncatedError); !ok {
		t.Fatalf("expected *TruncatedError, got %T", err)
	}
}

func TestReadCompactSizeCappedExceeded(t *testing.T) {
	r := New([]byte{0xfe, 0xff, 0xff, 0xff, 0xff})
	_, err := r.ReadCompactSizeCapped("vin", 100000)
	if err == nil {
		t.Fatal("expected sanity cap error")
	}
	if _, ok := err.(*SanityCapError); !ok {
		t.Fatalf("expected *SanityCapError, got %T", err)
	}
}

func TestReadVarBytes(t *testing.T) {
	r := New([]byte{0x03, 0xaa, 0xbb, 0xcc, 0xff})
	b, err := r.ReadVarBytes("script", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b) != 3 || b[0] != 0xaa || b[2] != 0xcc {
		t.Fatalf("unexpected bytes: %x", b)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 trailing byte, got %d", r.Len())
	}
}

func TestReadUint32LE(t *testing.T) {
	r := New([]byte{0x01, 0x00, 0x00, 0x00})
	v, err := r.ReadUint32LE("version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1 {
		t.Fatalf("got %d, want 1", v)
	}
}

func TestEnsureReportsOffsetAndField(t *testing.T) {
	r := New([]byte{0x01, 0x02})
	r.pos = 1
	err := r.Ensure("merkle_root", 32)
	te, ok := err.(*TruncatedError)
	if !ok {
		t.Fatalf("expected *TruncatedError, got %T", err)
	}
	if te.Field != "merkle_root" || te.Offset != 1 || te.Need != 32 || te.Have != 1 {
		t.Fatalf("unexpected truncated error: %+v", te)
	}
}
