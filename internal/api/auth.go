package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"

	"dmchat/internal/types"
)

const defaultTokenExpiration = time.Hour

const (
	userIdClaim = "user-id"
	nameClaim   = "name"
	emailClaim  = "email"
	expClaim    = "exp"
)

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, identity types.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFrom(ctx context.Context) (types.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(types.Identity)
	return identity, ok
}

// extractBearerToken pulls the credential out of the Authorization header.
func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing authorization header")
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", fmt.Errorf("malformed authorization header")
	}

	return token, nil
}

func (s *ChatApp) createToken(identity types.Identity, exp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: identity.Id,
		nameClaim:   identity.Name,
		emailClaim:  identity.Email,
		expClaim:    time.Now().Add(exp).Unix(),
	})

	return token.SignedString(s.signingKey)
}

// verifyToken validates a bearer credential and returns the identity it
// carries. Expired, malformed and mis-signed tokens are rejected, as are
// tokens missing any required claim. The raw claim map never leaves this
// function.
func (s *ChatApp) verifyToken(tokenString string) (types.Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return types.Identity{}, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return types.Identity{}, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return types.Identity{}, fmt.Errorf("invalid token claims")
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok {
		return types.Identity{}, fmt.Errorf("invalid user id claim")
	}

	name, ok := claims[nameClaim].(string)
	if !ok {
		return types.Identity{}, fmt.Errorf("invalid name claim")
	}

	email, ok := claims[emailClaim].(string)
	if !ok {
		return types.Identity{}, fmt.Errorf("invalid email claim")
	}

	return types.Identity{
		Id:    int(userId),
		Name:  name,
		Email: email,
	}, nil
}

func hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}
