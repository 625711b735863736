package intcode

import "testing"

func TestListing(t *testing.T) {
	want := "00000: arb 1\n" +
		"00002: out [rb-1]\n" +
		"00004: add [100], 1, [100]\n" +
		"00008: eq [100], 16, [101]\n" +
		"00012: jf [101], 0\n" +
		"00015: hlt\n"
	if got := Listing(MustParse(quine)); got != want {
		t.Errorf("Listing() =\n%s\nwant\n%s", got, want)
	}
}

func TestDisassembleData(t *testing.T) {
	lines := Disassemble(MustParse("1002,4,3,4,33,10099,1"))
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4: %v", len(lines), lines)
	}
	if lines[0].Text != "mul [4], 3, [4]" {
		t.Errorf("lines[0] = %q", lines[0].Text)
	}
	for i, want := range []string{".data 33", ".data 10099", ".data 1"} {
		l := lines[i+1]
		if !l.Data || l.Text != want {
			t.Errorf("lines[%d] = %+v, want data %q", i+1, l, want)
		}
	}
}

func TestDisassembleTruncated(t *testing.T) {
	// add needs three parameters but only two remain.
	lines := Disassemble([]int64{1, 2, 3})
	if len(lines) != 3 || !lines[0].Data {
		t.Errorf("Disassemble() = %v, want three data cells", lines)
	}
}
