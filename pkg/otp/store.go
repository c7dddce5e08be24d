// Package otp keeps short-lived password reset codes in Redis.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "serenity:otp:"

// ErrInvalidCode is returned when a code is wrong, expired or was never issued.
var ErrInvalidCode = errors.New("invalid or expired code")

type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	return &Store{client, ttl}
}

// TTL is how long an issued code stays valid.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Issue creates a new four digit code for the email, replacing any earlier one.
func (s *Store) Issue(ctx context.Context, email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, key(email), code, s.ttl).Err(); err != nil {
		return "", errors.WithStack(err)
	}
	return code, nil
}

// Verify checks the code for the email. A matching code is consumed.
func (s *Store) Verify(ctx context.Context, email, code string) error {
	stored, err := s.client.Get(ctx, key(email)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidCode
	}
	if err != nil {
		return errors.WithStack(err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrInvalidCode
	}
	if err := s.client.Del(ctx, key(email)).Err(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func key(email string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(email))
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", errors.WithStack(err)
	}
	return fmt.Sprintf("%d", n.Int64()+1000), nil
}
