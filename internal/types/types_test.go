package types

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestProgramID(t *testing.T) {
	a := ComputeProgramID("104,1,99")
	b := ComputeProgramID("104,1,99")
	c := ComputeProgramID("104,2,99")

	if a != b {
		t.Error("same text produced different IDs")
	}
	if a == c {
		t.Error("different text produced the same ID")
	}
	if a.IsZero() {
		t.Error("computed ID is zero")
	}

	parsed, err := ProgramIDFromBase58(a.String())
	if err != nil {
		t.Fatalf("ProgramIDFromBase58() failed: %v", err)
	}
	if parsed != a {
		t.Errorf("ProgramIDFromBase58(String()) = %s, want %s", parsed, a)
	}
}

func TestProgramIDInvalid(t *testing.T) {
	if _, err := ProgramIDFromBase58("abc"); !errors.Is(err, ErrInvalidProgramID) {
		t.Errorf("ProgramIDFromBase58(short) = %v, want ErrInvalidProgramID", err)
	}
	if _, err := ProgramIDFromBase58("0OIl"); err == nil {
		t.Error("ProgramIDFromBase58(bad alphabet) succeeded")
	}
	if _, err := ProgramIDFromBytes(make([]byte, 31)); !errors.Is(err, ErrInvalidProgramID) {
		t.Errorf("ProgramIDFromBytes(31) = %v, want ErrInvalidProgramID", err)
	}
}

func TestProgramIDJSON(t *testing.T) {
	id := ComputeProgramID("99")
	data, err := json.Marshal(map[string]ProgramID{"id": id})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out map[string]ProgramID
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out["id"] != id {
		t.Errorf("round trip = %s, want %s", out["id"], id)
	}
}
