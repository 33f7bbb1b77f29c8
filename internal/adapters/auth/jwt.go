// Package auth verifies the bearer credentials presented at handshake.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/talkroom/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// Claims are the fields the token issuer puts in every access token.
type Claims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HMAC-signed tokens against a shared secret.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify returns the identity carried by credential. Every failure wraps
// domain.ErrUnauthorized.
func (v *JWTVerifier) Verify(_ context.Context, credential string) (domain.Identity, error) {
	token := StripBearer(credential)
	if token == "" {
		return domain.Identity{}, fmt.Errorf("%w: no token", domain.ErrUnauthorized)
	}
	var claims Claims
	if _, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	id, err := domain.NewIdentity(claims.Subject, claims.Username, claims.Email)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return id, nil
}

// Sign issues a token for id. It exists for tooling and tests; production
// tokens come from the account service.
func (v *JWTVerifier) Sign(id domain.Identity, claims jwt.RegisteredClaims) (string, error) {
	if id.ID == "" {
		return "", errors.New("empty subject")
	}
	claims.Subject = string(id.ID)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username:         id.Username,
		Email:            id.Email,
		RegisteredClaims: claims,
	})
	return tok.SignedString(v.secret)
}

// StripBearer removes a leading "Bearer " and surrounding blanks.
func StripBearer(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, bearerPrefix) {
		s = strings.TrimSpace(s[len(bearerPrefix):])
	}
	return s
}

// ExtractToken picks the credential from the handshake auth field first and
// the Authorization header second.
func ExtractToken(authField, header string) string {
	if t := StripBearer(authField); t != "" {
		return t
	}
	return StripBearer(header)
}
