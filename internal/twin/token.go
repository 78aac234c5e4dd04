package twin

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuerURL = "https://reqres.twin.local"

// tokenIssuer signs session tokens for register and login.
type tokenIssuer struct {
	key []byte
}

func newTokenIssuer(key []byte) *tokenIssuer {
	return &tokenIssuer{key: key}
}

// Issue signs an HS256 token for u.
func (t *tokenIssuer) Issue(u User, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    issuerURL,
		Subject:   strconv.Itoa(u.ID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token issued by t and returns the user id it names.
func (t *tokenIssuer) Verify(token string) (int, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuerURL))
	if err != nil {
		return 0, fmt.Errorf("invalid token: %w", err)
	}
	return strconv.Atoi(claims.Subject)
}
