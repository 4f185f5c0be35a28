package codec

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type sample struct {
	B string    `cbor:"b"`
	A int       `cbor:"a"`
	T time.Time `cbor:"t"`
}

func TestMarshal_Deterministic(t *testing.T) {
	t.Parallel()

	v := sample{B: "x", A: 10, T: time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)}
	first, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Marshal(v)
		if err != nil {
			t.Fatalf("Marshal #%d: %v", i, err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding not stable: %x vs %x", first, again)
		}
	}

	m1, _ := Marshal(map[string]int{"z": 1, "a": 2, "m": 3})
	m2, _ := Marshal(map[string]int{"m": 3, "z": 1, "a": 2})
	if !bytes.Equal(m1, m2) {
		t.Fatalf("map encoding depends on insertion order")
	}
}

func TestMarshal_KeepsSubSecondTime(t *testing.T) {
	t.Parallel()

	in := sample{T: time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out sample
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !out.T.Equal(in.T) {
		t.Fatalf("time = %v, want %v", out.T, in.T)
	}
}

func TestDiagnose(t *testing.T) {
	t.Parallel()

	data, err := Marshal(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diag, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(diag, `"a": 1`) {
		t.Fatalf("Diagnose = %q", diag)
	}
}
