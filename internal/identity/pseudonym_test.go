package identity_test

import (
	"errors"
	"testing"

	"github.com/qboard/qboard/internal/identity"
)

func TestPseudonymize_Deterministic(t *testing.T) {
	p, err := identity.NewPseudonymizer("s1")
	if err != nil {
		t.Fatalf("NewPseudonymizer() error = %v", err)
	}

	first, err := p.Pseudonymize("U123")
	if err != nil {
		t.Fatalf("Pseudonymize() error = %v", err)
	}
	second, err := p.Pseudonymize("U123")
	if err != nil {
		t.Fatalf("Pseudonymize() error = %v", err)
	}

	if first != second {
		t.Errorf("same handle and salt produced %q and %q", first, second)
	}
	if len(first) != identity.PseudonymLength {
		t.Errorf("pseudonym length = %d, want %d", len(first), identity.PseudonymLength)
	}
	if !identity.Valid(first) {
		t.Errorf("Valid(%q) = false, want true", first)
	}
}

func TestPseudonymize_SaltChangesOutput(t *testing.T) {
	p1, _ := identity.NewPseudonymizer("s1")
	p2, _ := identity.NewPseudonymizer("s2")

	a, _ := p1.Pseudonymize("U123")
	b, _ := p2.Pseudonymize("U123")

	if a == b {
		t.Error("different salts produced identical pseudonyms")
	}
}

func TestPseudonymize_DistinctHandles(t *testing.T) {
	p, _ := identity.NewPseudonymizer("s1")

	a, _ := p.Pseudonymize("U123")
	b, _ := p.Pseudonymize("U124")

	if a == b {
		t.Error("distinct handles produced identical pseudonyms")
	}
}

func TestNewPseudonymizer_FailsClosedWithoutSalt(t *testing.T) {
	_, err := identity.NewPseudonymizer("")
	if !errors.Is(err, identity.ErrMissingSalt) {
		t.Errorf("NewPseudonymizer(\"\") error = %v, want ErrMissingSalt", err)
	}
}

func TestNewPseudonymizer_LongSalt(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}

	p, err := identity.NewPseudonymizer(string(long))
	if err != nil {
		t.Fatalf("NewPseudonymizer() error = %v", err)
	}
	got, err := p.Pseudonymize("U123")
	if err != nil {
		t.Fatalf("Pseudonymize() error = %v", err)
	}
	if len(got) != identity.PseudonymLength {
		t.Errorf("pseudonym length = %d, want %d", len(got), identity.PseudonymLength)
	}
}

func TestPseudonymize_EmptyHandle(t *testing.T) {
	p, _ := identity.NewPseudonymizer("s1")
	if _, err := p.Pseudonymize(""); err == nil {
		t.Error("Pseudonymize(\"\") should return an error")
	}
}

func TestShort(t *testing.T) {
	p, _ := identity.NewPseudonymizer("s1")
	full, _ := p.Pseudonymize("U123")

	short := identity.Short(full)
	if len(short) != identity.ShortLength {
		t.Errorf("Short() length = %d, want %d", len(short), identity.ShortLength)
	}
	if !identity.Valid(short) {
		t.Errorf("Valid(%q) = false, want true", short)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"full-hex", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", true},
		{"short-hex", "0123456789abcdef", true},
		{"wrong-length", "abc123", false},
		{"uppercase", "0123456789ABCDEF", false},
		{"non-hex", "0123456789abcdeg", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := identity.Valid(tt.in); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMaskExternalID(t *testing.T) {
	if got := identity.MaskExternalID("U1234567890abcdef"); got != "U123***" {
		t.Errorf("MaskExternalID() = %q, want U123***", got)
	}
	if got := identity.MaskExternalID("U12"); got != "U12" {
		t.Errorf("MaskExternalID() = %q, want U12", got)
	}
}
