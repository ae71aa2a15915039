package canon

import (
	"reflect"
	"testing"
)

func TestSoundexCode(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"Robert", "R163"},
		{"Rupert", "R163"},
		{"Smith", "S530"},
		{"Smythe", "S530"},
		{"Tymczak", "T522"},
		{"Pfister", "P236"},
		{"Honeyman", "H555"},
		{"", ""},
		{"123", ""},
	}
	for _, tc := range tests {
		if got := soundexCode(tc.token); got != tc.want {
			t.Errorf("soundexCode(%q) = %q, want %q", tc.token, got, tc.want)
		}
	}
}

func TestNameTokens(t *testing.T) {
	tests := []struct {
		variant string
		want    []string
	}{
		{"Clinton, Bill", []string{"clinton", "bill"}},
		{"William J. Clinton", []string{"william", "j", "clinton"}},
		{"  Ghislaine   Maxwell ", []string{"ghislaine", "maxwell"}},
		{"...", nil},
	}
	for _, tc := range tests {
		if got := nameTokens(tc.variant); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("nameTokens(%q) = %v, want %v", tc.variant, got, tc.want)
		}
	}
}

func TestTokenKeyIgnoresOrder(t *testing.T) {
	if tokenKey("Clinton, Bill") != tokenKey("Bill Clinton") {
		t.Error("expected reordered forms to share a token key")
	}
	if tokenKey("Bill Clinton") == tokenKey("Bill Gates") {
		t.Error("expected distinct names to have distinct token keys")
	}
}

func TestStripSuffix(t *testing.T) {
	tests := []struct {
		variant   string
		wantBase  string
		wantFound bool
	}{
		{"Landon Thomas Jr.", "landon thomas", true},
		{"Landon Thomas", "landon thomas", false},
		{"Henry Ford II", "henry ford", true},
		{"Alan Dershowitz Esq.", "alan dershowitz", true},
		{"Jr.", "jr", false},
	}
	for _, tc := range tests {
		base, found := stripSuffix(tc.variant)
		if base != tc.wantBase || found != tc.wantFound {
			t.Errorf("stripSuffix(%q) = (%q, %v), want (%q, %v)",
				tc.variant, base, found, tc.wantBase, tc.wantFound)
		}
	}
}
