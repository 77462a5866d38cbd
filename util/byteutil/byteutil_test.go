package byteutil

import (
	"bytes"
	"testing"
)

func TestConcat(t *testing.T) {
	a := []byte{0x01, 0x02}
	b := []byte{0x03}
	want := []byte{0x01, 0x02, 0x03}
	get := Concat(a, nil, b)
	if !bytes.Equal(get, want) {
		t.Fatalf("Get=%v, want=%v", get, want)
	}

	get[0] = 0xff
	if a[0] != 0x01 {
		t.Fatalf("Concat must not alias its inputs")
	}

	get = Concat()
	if len(get) != 0 {
		t.Fatalf("Get=%v, want empty", get)
	}
}

func TestCopy(t *testing.T) {
	if Copy(nil) != nil {
		t.Fatalf("Copy(nil) must stay nil")
	}

	raw := []byte{0x00, 0x01}
	get := Copy(raw)
	if !bytes.Equal(get, raw) {
		t.Fatalf("Get=%v, want=%v", get, raw)
	}

	get[1] = 0x09
	if raw[1] != 0x01 {
		t.Fatalf("Copy must not alias its input")
	}

	get = Copy([]byte{})
	if get == nil || len(get) != 0 {
		t.Fatalf("Copy of empty slice must be empty and non-nil")
	}
}
