package hyperroute

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTValidator(t *testing.T) {
	secret := []byte("test-secret")
	validate := JWTValidator(secret)

	valid, err := SignJWT(secret, "ada", time.Minute)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	expired, err := SignJWT(secret, "ada", -time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	foreign, err := SignJWT([]byte("other-secret"), "ada", time.Minute)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "ada"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing none token: %v", err)
	}

	tests := []struct {
		name  string
		token string
		ok    bool
	}{
		{"valid", valid, true},
		{"expired", expired, false},
		{"wrong secret", foreign, false},
		{"alg none", none, false},
		{"garbage", "not.a.jwt", false},
	}
	for _, tt := range tests {
		ok, err := validate(tt.token)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if ok != tt.ok {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.ok, ok)
		}
	}
}

func TestJWTValidatorWithoutSecret(t *testing.T) {
	if _, err := JWTValidator(nil)("anything"); err == nil {
		t.Errorf("expected error without secret")
	}
}
