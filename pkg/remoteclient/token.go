// Package remoteclient signs and verifies the TOKEN bearer credential used
// against the remote platform API (the abstracted RemoteStorageClient a
// requestqueue/remote.Client speaks to). It does not perform the HTTP calls
// itself — pkg/requestqueue/remote owns its own transport and carries the
// token string it is configured with as a bearer token. pkg/kvstore/s3store
// authenticates with AWS access keys, not with this token.
package remoteclient

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload carried by a signed TOKEN credential. QueueID/ListID
// scope the token to a single queue or request list when the remote
// platform wants to issue narrowly-scoped credentials instead of an
// account-wide one.
type Claims struct {
	jwt.RegisteredClaims
	QueueID string `json:"queueId,omitempty"`
	ListID  string `json:"listId,omitempty"`
}

// SignToken signs claims with secret using HMAC-SHA256 and returns the
// compact JWT string suitable for the "TOKEN" environment variable / the
// Authorization: Bearer header.
func SignToken(claims Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates tokenString against secret, returning the
// embedded claims. Used by tests that need to mint or check fixture
// credentials without standing up the real remote platform; the admin API
// does not check tokens.
func VerifyToken(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return claims, nil
}

// NewClaims builds a Claims scoped to queueID (or account-wide if queueID is
// empty) with the given validity window.
func NewClaims(subject, queueID string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		QueueID: queueID,
	}
}
