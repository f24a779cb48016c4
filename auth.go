package hyperroute

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTValidator returns a TokenValidatorFunc accepting HS256 signed JWTs
// issued with secret. Expired, not yet valid or otherwise malformed tokens
// are rejected without an error.
func JWTValidator(secret []byte) TokenValidatorFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
	)
	keyFunc := func(*jwt.Token) (any, error) {
		return secret, nil
	}
	return func(token string) (bool, error) {
		if len(secret) == 0 {
			return false, errors.New("jwt secret not configured")
		}
		parsed, err := parser.Parse(token, keyFunc)
		if err != nil {
			logger.Debug("Rejected bearer token", "error", err)
			return false, nil
		}
		return parsed.Valid, nil
	}
}

// SignJWT issues an HS256 token for subject that expires after ttl.
func SignJWT(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
