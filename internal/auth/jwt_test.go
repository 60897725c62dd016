package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-at-least-16-chars!!"

// newTestVerifier creates an HS256 Verifier with a fixed secret so tests are
// deterministic.
func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier("", testSecret, "https://clerk.example.com")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

// newRSAKey returns a fresh key pair and the PEM encoding of its public half.
func newRSAKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return key, string(block)
}

// =========================================================================
// CONSTRUCTION TESTS
// =========================================================================

func TestNewVerifier(t *testing.T) {
	_, pubPEM := newRSAKey(t)

	tests := []struct {
		name    string
		pem     string
		secret  string
		wantErr bool
	}{
		{"no key material", "", "", true},
		{"short secret", "", "short", true},
		{"valid secret", "", "this-is-16-chars", false},
		{"garbage pem", "not a pem", "", true},
		{"valid pem", pubPEM, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVerifier(tt.pem, tt.secret, "")
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewVerifier() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// =========================================================================
// VERIFY TESTS
// =========================================================================

func TestIssueThenVerify(t *testing.T) {
	v := newTestVerifier(t)

	token, err := v.Issue("user_2abc", time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	subject, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if subject != "user_2abc" {
		t.Errorf("Verify() subject = %q, want %q", subject, "user_2abc")
	}
}

func TestVerify_Expired(t *testing.T) {
	v := newTestVerifier(t)

	token, err := v.Issue("user_2abc", -time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = v.Verify(token)
	if err == nil {
		t.Fatal("Verify() should reject expired tokens")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("Verify() error = %v, want mention of expiry", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	v := newTestVerifier(t)
	other, _ := NewVerifier("", "a-completely-different-secret", "https://clerk.example.com")

	token, _ := other.Issue("user_2abc", time.Minute)
	if _, err := v.Verify(token); err == nil {
		t.Fatal("Verify() should reject tokens signed with another secret")
	}
}

func TestVerify_WrongIssuer(t *testing.T) {
	v := newTestVerifier(t)
	other, _ := NewVerifier("", testSecret, "https://evil.example.com")

	token, _ := other.Issue("user_2abc", time.Minute)
	if _, err := v.Verify(token); err == nil {
		t.Fatal("Verify() should reject tokens from another issuer")
	}
}

func TestVerify_NoSubject(t *testing.T) {
	v := newTestVerifier(t)

	token, _ := v.Issue("", time.Minute)
	if _, err := v.Verify(token); err == nil {
		t.Fatal("Verify() should reject tokens without a subject")
	}
}

func TestVerify_Garbage(t *testing.T) {
	v := newTestVerifier(t)

	for _, tok := range []string{"", "not.a.jwt", "a.b"} {
		if _, err := v.Verify(tok); err == nil {
			t.Errorf("Verify(%q) should fail", tok)
		}
	}
}

func TestVerify_RS256(t *testing.T) {
	key, pubPEM := newRSAKey(t)
	v, err := NewVerifier(pubPEM, "", "")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	claims := jwt.RegisteredClaims{
		Subject:   "user_rsa",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	subject, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if subject != "user_rsa" {
		t.Errorf("Verify() subject = %q, want %q", subject, "user_rsa")
	}
}

func TestVerify_RS256RejectsHMAC(t *testing.T) {
	_, pubPEM := newRSAKey(t)
	v, _ := NewVerifier(pubPEM, "", "")

	// HS256 signed with the public key bytes: the classic algorithm
	// confusion attack.
	claims := jwt.RegisteredClaims{
		Subject:   "attacker",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(pubPEM))

	if _, err := v.Verify(token); err == nil {
		t.Fatal("Verify() should reject HS256 tokens when configured for RS256")
	}
}

func TestIssue_RequiresSecret(t *testing.T) {
	_, pubPEM := newRSAKey(t)
	v, _ := NewVerifier(pubPEM, "", "")

	if _, err := v.Issue("x", time.Minute); err == nil {
		t.Fatal("Issue() should fail without a shared secret")
	}
}
