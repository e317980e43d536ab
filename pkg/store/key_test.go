package store

import (
	"strings"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "revision and fingerprint",
			key:  Key{Revision: "wanikani1", Fingerprint: "9f86d081884c7d65"},
			want: "wanikani:archive:wanikani1:9f86d081884c7d65",
		},
		{
			name: "no fingerprint",
			key:  Key{Revision: "wanikani1"},
			want: "wanikani:archive:wanikani1:anonymous",
		},
		{
			name: "no revision",
			key:  Key{Fingerprint: "abc"},
			want: "wanikani:archive:-:abc",
		},
		{
			name: "whitespace is trimmed",
			key:  Key{Revision: " wanikani1 ", Fingerprint: " abc "},
			want: "wanikani:archive:wanikani1:abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_Deterministic(t *testing.T) {
	key := Key{Revision: "wanikani1", Fingerprint: FingerprintToken("token")}

	first := key.String()
	for i := 0; i < 100; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q != %q", got, first)
		}
	}
}

func TestFingerprintToken(t *testing.T) {
	fp := FingerprintToken("my-secret-token")

	if len(fp) != fingerprintLen {
		t.Errorf("len = %d, want %d", len(fp), fingerprintLen)
	}
	if strings.Contains(fp, "secret") {
		t.Errorf("fingerprint %q leaks the token", fp)
	}
	if fp != FingerprintToken("my-secret-token") {
		t.Error("fingerprint must be stable")
	}
	if fp == FingerprintToken("other-token") {
		t.Error("different tokens must not share a fingerprint")
	}
	if got := FingerprintToken(""); got != "" {
		t.Errorf("FingerprintToken(\"\") = %q, want empty", got)
	}
}

func TestFingerprintToken_KnownValue(t *testing.T) {
	// sha256("test") = 9f86d081884c7d659a2feaa0c55ad015...
	if got := FingerprintToken("test"); got != "9f86d081884c7d65" {
		t.Errorf("FingerprintToken(\"test\") = %q", got)
	}
}
