package addr

import (
	"testing"
)

func TestAddressArithmeticRoundTrip(t *testing.T) {
	a := RelativeAddress(0x1000)

	for _, n := range []int{0, 1, 16, 0x1000, -0x800} {
		if got := a.Add(n).Diff(a); got != n {
			t.Errorf("(a + %d) - a = %d, want %d", n, got, n)
		}
		if got := a.Add(n).Add(-n); got != a {
			t.Errorf("a + %d - %d = %s, want %s", n, n, got, a)
		}
	}
}

func TestAddressOrdering(t *testing.T) {
	lo := AbsoluteAddress(0x400000)
	hi := AbsoluteAddress(0x401000)

	if !(lo < hi) {
		t.Error("lo < hi should hold")
	}
	if hi.Diff(lo) != 0x1000 {
		t.Errorf("hi - lo = %d, want 0x1000", hi.Diff(lo))
	}
	if lo.Diff(hi) != -0x1000 {
		t.Errorf("lo - hi = %d, want -0x1000", lo.Diff(hi))
	}
}

func TestInvalidSentinels(t *testing.T) {
	if InvalidRelativeAddress.IsValid() {
		t.Error("invalid relative address reports valid")
	}
	if InvalidAbsoluteAddress.IsValid() {
		t.Error("invalid absolute address reports valid")
	}
	if InvalidFileOffsetAddress.IsValid() {
		t.Error("invalid file offset address reports valid")
	}
	if !RelativeAddress(0).IsValid() {
		t.Error("zero relative address should be valid")
	}
	if InvalidRelativeAddress.Value() != 0xFFFFFFFF {
		t.Error("invalid sentinel should be all bits set")
	}
}

func TestAddressStrings(t *testing.T) {
	if s := RelativeAddress(0x1000).String(); s != "rva:0x00001000" {
		t.Errorf("unexpected string: %s", s)
	}
	if s := FileOffsetAddress(0x200).String(); s != "file:0x00000200" {
		t.Errorf("unexpected string: %s", s)
	}
}
