package security

import (
	"strings"
	"testing"
)

func TestNewTokenIssuer_InvalidLength(t *testing.T) {
	for _, n := range []int{0, -5} {
		if _, err := NewTokenIssuer(n); err != ErrInvalidTokenLength {
			t.Errorf("NewTokenIssuer(%d) err = %v, want ErrInvalidTokenLength", n, err)
		}
	}
}

func TestTokenIssuer_Issue(t *testing.T) {
	issuer, err := NewTokenIssuer(DefaultTokenLength)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	token, err := issuer.Issue("user@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(token) != DefaultTokenLength {
		t.Errorf("token length = %d, want %d", len(token), DefaultTokenLength)
	}
	for _, c := range token {
		if !strings.ContainsRune(tokenAlphabet, c) {
			t.Errorf("token contains %q outside the alphanumeric alphabet", c)
		}
	}
	if strings.Contains(token, "user") {
		t.Error("token should not embed the identity")
	}
}

func TestTokenIssuer_Unique(t *testing.T) {
	issuer, _ := NewTokenIssuer(DefaultTokenLength)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		token, err := issuer.Issue("user@example.com")
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate token after %d issues", i)
		}
		seen[token] = true
	}
}

func TestTokenIssuer_UsesWholeAlphabet(t *testing.T) {
	issuer, _ := NewTokenIssuer(64)
	counts := make(map[rune]int)
	for i := 0; i < 200; i++ {
		token, _ := issuer.Issue("")
		for _, c := range token {
			counts[c]++
		}
	}
	if len(counts) != len(tokenAlphabet) {
		t.Errorf("distinct characters = %d, want %d", len(counts), len(tokenAlphabet))
	}
}

func TestTokenRejectAbove(t *testing.T) {
	if tokenRejectAbove%len(tokenAlphabet) != 0 || tokenRejectAbove > 256 {
		t.Errorf("tokenRejectAbove = %d is not a multiple of %d within a byte", tokenRejectAbove, len(tokenAlphabet))
	}
}
