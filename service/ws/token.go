package ws

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// VerifyBindToken checks that the bearer token presented at identity-join
// is an HMAC-signed JWT whose subject matches the claimed user id.
func VerifyBindToken(secret []byte, token, userID string) bool {
	if token == "" || userID == "" {
		return false
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return false
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return false
	}
	return sub == userID
}
