package session

import (
	"bytes"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidToken is returned when a session token is missing, malformed,
// expired or issued for another session.
var ErrInvalidToken = errors.New("invalid session token")

// DefaultTokenValidity is how long issued session tokens stay valid.
const DefaultTokenValidity = 7 * 24 * time.Hour

type (
	// Tokenizer issues and checks session ownership tokens.
	Tokenizer interface {
		Create(sessionID string) (string, error)
		Verify(tokenString, sessionID string) error
	}

	// TokenizerConfig contains fields which describe a Tokenizer
	TokenizerConfig struct {
		// KeyReader supplies the 64 byte signing key
		KeyReader io.Reader
		// TimeFunc is the clock for issuing and expiry; defaults to time.Now
		TimeFunc func() time.Time
		// Validity is the lifetime of a token; defaults to DefaultTokenValidity
		Validity time.Duration
	}

	jwtTokenizer struct {
		method   jwt.SigningMethod
		key      []byte
		timeFunc func() time.Time
		validity time.Duration
	}
)

// SecretKeyReader derives a stable signing key from a configured secret so
// tokens survive restarts.
func SecretKeyReader(secret string) io.Reader {
	sum := sha512.Sum512([]byte(secret))
	return bytes.NewReader(sum[:])
}

// NewTokenizer creates an HS256 Tokenizer keyed from cfg.KeyReader
func (cfg TokenizerConfig) NewTokenizer() (Tokenizer, error) {
	if cfg.KeyReader == nil {
		return nil, fmt.Errorf("generating Tokenizer key: no key reader")
	}
	key := make([]byte, 64)
	if _, err := io.ReadFull(cfg.KeyReader, key); err != nil {
		return nil, fmt.Errorf("generating Tokenizer key: %w", err)
	}
	t := jwtTokenizer{
		method:   jwt.SigningMethodHS256,
		key:      key,
		timeFunc: cfg.TimeFunc,
		validity: cfg.Validity,
	}
	if t.timeFunc == nil {
		t.timeFunc = time.Now
	}
	if t.validity <= 0 {
		t.validity = DefaultTokenValidity
	}
	return t, nil
}

// Create signs a token whose subject is the session ID
func (j jwtTokenizer) Create(sessionID string) (string, error) {
	now := j.timeFunc()
	claims := jwt.RegisteredClaims{
		Subject:   strings.ToLower(sessionID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(j.validity)),
	}
	token := jwt.NewWithClaims(j.method, claims)
	return token.SignedString(j.key)
}

// Verify checks the signature and expiry and that the token was issued for sessionID
func (j jwtTokenizer) Verify(tokenString, sessionID string) error {
	if tokenString == "" {
		return fmt.Errorf("%w: missing", ErrInvalidToken)
	}
	// Claims are checked below against the tokenizer's clock, not jwt.TimeFunc
	parser := jwt.NewParser(jwt.WithValidMethods([]string{j.method.Alg()}), jwt.WithoutClaimsValidation())
	var claims jwt.RegisteredClaims
	if _, err := parser.ParseWithClaims(tokenString, &claims, j.keyFunc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	now := j.timeFunc()
	if !claims.VerifyExpiresAt(now, true) {
		return fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	if !claims.VerifyIssuedAt(now, false) {
		return fmt.Errorf("%w: used before issued", ErrInvalidToken)
	}
	if !strings.EqualFold(claims.Subject, sessionID) {
		return fmt.Errorf("%w: issued for another session", ErrInvalidToken)
	}
	return nil
}

// keyFunc ensures the key type (method) of the token is correct before returning the key.
func (j jwtTokenizer) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method != j.method {
		return nil, fmt.Errorf("incorrect authorization signing method")
	}
	return j.key, nil
}
