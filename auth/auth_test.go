// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"testing"
)

func TestGenerateID(t *testing.T) {
	tests := []struct {
		name    string
		byteLen int
		wantLen int // hex encoded length = byteLen * 2
	}{
		{"8 bytes", 8, 16},
		{"16 bytes", 16, 32},
		{"24 bytes", 24, 48},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := GenerateID(tt.byteLen)
			if err != nil {
				t.Fatalf("GenerateID() error = %v", err)
			}
			if len(id) != tt.wantLen {
				t.Errorf("GenerateID() length = %d, want %d", len(id), tt.wantLen)
			}
			// Verify it's valid hex
			for _, c := range id {
				if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
					t.Errorf("GenerateID() contains invalid hex char: %c", c)
				}
			}
		})
	}

	// Test randomness - two IDs should be different
	id1, _ := GenerateID(16)
	id2, _ := GenerateID(16)
	if id1 == id2 {
		t.Error("GenerateID() produced duplicate IDs (extremely unlikely)")
	}
}

func TestGenerateSessionCode(t *testing.T) {
	code, err := GenerateSessionCode()
	if err != nil {
		t.Fatalf("GenerateSessionCode() error = %v", err)
	}

	if len(code) == 0 || len(code) > 6 {
		t.Errorf("GenerateSessionCode() length = %d, want 1-6", len(code))
	}

	// Base62 only: no special characters an audience member would mistype
	for _, c := range code {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			t.Errorf("GenerateSessionCode() contains non-base62 char: %c", c)
		}
	}

	// Codes should differ run to run
	code2, _ := GenerateSessionCode()
	if code == code2 {
		t.Error("GenerateSessionCode() produced duplicate codes (extremely unlikely)")
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	secret := "test-jwt-secret"

	token, err := GenerateSessionToken("user-1", "sess-1", secret)
	if err != nil {
		t.Fatalf("GenerateSessionToken() error = %v", err)
	}

	userID, sessionID, err := ParseSessionToken(token, secret)
	if err != nil {
		t.Fatalf("ParseSessionToken() error = %v", err)
	}
	if userID != "user-1" {
		t.Errorf("ParseSessionToken() userID = %q, want %q", userID, "user-1")
	}
	if sessionID != "sess-1" {
		t.Errorf("ParseSessionToken() sessionID = %q, want %q", sessionID, "sess-1")
	}
}

func TestParseSessionTokenRejects(t *testing.T) {
	secret := "test-jwt-secret"
	token, _ := GenerateSessionToken("user-1", "sess-1", secret)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", token, "different-secret"},
		{"garbage token", "not.a.jwt", secret},
		{"empty token", "", secret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseSessionToken(tt.token, tt.secret)
			if err != ErrInvalidToken {
				t.Errorf("ParseSessionToken() error = %v, want %v", err, ErrInvalidToken)
			}
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if !CheckPassword(hash, "correct horse battery staple") {
		t.Error("CheckPassword() rejected the correct password")
	}
	if CheckPassword(hash, "wrong password") {
		t.Error("CheckPassword() accepted a wrong password")
	}
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("token-a")
	h2 := HashToken("token-a")
	h3 := HashToken("token-b")

	if h1 != h2 {
		t.Error("HashToken() is not deterministic")
	}
	if h1 == h3 {
		t.Error("HashToken() produced same hash for different tokens")
	}
	if len(h1) != 64 {
		t.Errorf("HashToken() length = %d, want 64 hex chars", len(h1))
	}
}

func TestHashIP(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		salt string
	}{
		{"ipv4", "192.168.1.1", "salt1"},
		{"ipv6", "2001:db8::1", "salt1"},
		{"empty ip", "", "salt1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := HashIP(tt.ip, tt.salt)

			if len(hash) != 16 {
				t.Errorf("HashIP() length = %d, want 16", len(hash))
			}

			// Deterministic
			if hash != HashIP(tt.ip, tt.salt) {
				t.Error("HashIP() is not deterministic")
			}

			// Different salt changes the hash
			if hash == HashIP(tt.ip, tt.salt+"x") {
				t.Error("HashIP() ignored the salt")
			}
		})
	}
}

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name        string
		ua          string
		wantBrowser string
		wantOS      string
		wantClass   string
	}{
		{
			"chrome on windows",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"chrome", "windows", "desktop",
		},
		{
			"safari on iphone",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			"safari", "ios", "mobile",
		},
		{
			"firefox on linux",
			"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			"firefox", "linux", "desktop",
		},
		{
			"edge on windows",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
			"edge", "windows", "desktop",
		},
		{
			"chrome on android tablet",
			"Mozilla/5.0 (Linux; Android 13; SM-X700 Tablet) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"chrome", "android", "tablet",
		},
		{"empty", "", "unknown", "unknown", "unknown"},
		{"gibberish", "curl/8.4.0", "unknown", "unknown", "desktop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := ParseUserAgent(tt.ua)
			if fp.Browser != tt.wantBrowser {
				t.Errorf("ParseUserAgent() browser = %q, want %q", fp.Browser, tt.wantBrowser)
			}
			if fp.OS != tt.wantOS {
				t.Errorf("ParseUserAgent() os = %q, want %q", fp.OS, tt.wantOS)
			}
			if fp.DeviceClass != tt.wantClass {
				t.Errorf("ParseUserAgent() device class = %q, want %q", fp.DeviceClass, tt.wantClass)
			}
		})
	}
}
