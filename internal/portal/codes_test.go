package portal

import (
	"strings"
	"testing"
)

func TestParseCode(t *testing.T) {
	cases := []struct {
		in      string
		code    string
		session int
	}{
		{"trout viper 1", "trout viper", 1},
		{"TrOuT vIpEr 1", "trout viper", 1},
		{" trout   viper  1  ", "trout viper", 1},
		{"trout viper1", "trout viper", 1},
		{"trout viper1foo", "trout viper", 1},
		{"trout viper 02", "trout viper", 2},
		{"trout viper", "trout viper", 0},
	}
	for _, tc := range cases {
		code, session, err := ParseCode(tc.in)
		if err != nil {
			t.Fatalf("ParseCode(%q): %v", tc.in, err)
		}
		if code != tc.code || session != tc.session {
			t.Fatalf("ParseCode(%q) = (%q, %d), want (%q, %d)", tc.in, code, session, tc.code, tc.session)
		}
	}
}

func TestParseCodeRejectsUnparseable(t *testing.T) {
	for _, in := range []string{"76 trombones", "", "trout", "123 456", "trout-viper 1"} {
		if _, _, err := ParseCode(in); err == nil {
			t.Fatalf("ParseCode(%q) did not reject", in)
		}
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  TROUT\tViper!!  7 "); got != "trout viper 7" {
		t.Fatalf("NormalizeCode = %q", got)
	}
}

func TestParseSessionCookie(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{MissingSession, 1, false},
		{"", 1, false},
		{"1", 1, false},
		{"3", 3, false},
		{"0", 0, true},
		{"-2", 0, true},
		{"abc", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseSessionCookie(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseSessionCookie(%q) did not reject", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseSessionCookie(%q) = (%d, %v), want %d", tc.in, got, err, tc.want)
		}
	}
}

func TestValidateSession(t *testing.T) {
	if err := ValidateSession(1, 1); err != nil {
		t.Fatalf("session 1 of 1 rejected: %v", err)
	}
	if err := ValidateSession(10, 1); err == nil {
		t.Fatal("session 10 of 1 accepted")
	}
	if err := ValidateSession(0, 1); err == nil {
		t.Fatal("session 0 accepted")
	}
}

func TestValidateToken(t *testing.T) {
	if err := ValidateToken("short-token"); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if err := ValidateToken(""); err == nil {
		t.Fatal("empty token accepted")
	}
	if err := ValidateToken(strings.Repeat("x", 129)); err == nil {
		t.Fatal("oversized token accepted")
	}
	if err := ValidateToken(strings.Repeat("x", 128)); err != nil {
		t.Fatalf("128-char token rejected: %v", err)
	}
}
