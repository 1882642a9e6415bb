package service

import (
	"errors"
	"testing"
)

func TestNormalizeEmail(t *testing.T) {
	testCases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"user@example.com", "user@example.com", false},
		{"  User@Example.COM\t", "user@example.com", false},
		{"first.last+tag@sub.example.co.uk", "first.last+tag@sub.example.co.uk", false},
		{"", "", true},
		{"plainaddress", "", true},
		{"user@localhost", "", true},
		{"Bob <bob@example.com>", "", true},
		{"user@exa mple.com", "", true},
		{"user@@example.com", "", true},
		{"   ", "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := NormalizeEmail(tc.raw)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidIdentity) {
					t.Errorf("err = %v, want ErrInvalidIdentity", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Errorf("NormalizeEmail(%q) = %q, %v; want %q", tc.raw, got, err, tc.want)
			}
		})
	}
}

func TestNormalizeLookup(t *testing.T) {
	if got := NormalizeLookup(" User@Example.com "); got != "user@example.com" {
		t.Errorf("got %q", got)
	}
	if got := NormalizeLookup(" Not An Email "); got != "not an email" {
		t.Errorf("fallback got %q", got)
	}
}
