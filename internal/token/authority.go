package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// KeySize is the size of the authority's secret key in bytes.
	KeySize = 32
	// NonceSize is the size of the per-token random nonce in bytes.
	NonceSize = 12
	// SaltSize is the size of the random salt used for password hashing.
	SaltSize = 16
	// Lifetime is how long an issued token remains valid.
	Lifetime = 24 * time.Hour
)

// Token is the wire form of an identity assertion. Nonce and MAC are
// base64-encoded by encoding/json.
type Token struct {
	Username       string `json:"username"`
	ExpirationTime int64  `json:"expiration_time"`
	Nonce          []byte `json:"nonce"`
	MAC            []byte `json:"mac"`
}

// Authority issues and verifies signed identity tokens. The secret key is
// generated when the authority is created and lives for the life of the
// process; it is never persisted, so tokens issued before a restart do not
// survive it. Validity is recomputed entirely from the token's own bytes
// plus the key — there is no server-side session state.
type Authority struct {
	key []byte
	now func() time.Time
}

// New creates an Authority with a fresh random 256-bit key. A failure here
// means the process has no working source of randomness and must not start.
func New() (*Authority, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate token key: %w", err)
	}
	return &Authority{key: key, now: time.Now}, nil
}

// Issue creates a signed token for username, valid for Lifetime from now.
func (a *Authority) Issue(username string) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate token nonce: %w", err)
	}

	t := Token{
		Username:       username,
		ExpirationTime: a.now().Add(Lifetime).Unix(),
		Nonce:          nonce,
	}
	t.MAC = a.sign(t.Username, t.ExpirationTime, t.Nonce)

	raw, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to serialize token: %w", err)
	}
	return string(raw), nil
}

// Verify checks a token string and returns the embedded username when it is
// well-formed, unexpired, and carries a valid tag. It fails closed: any
// decoding or validation problem yields ok == false, with no distinction
// between the causes.
func (a *Authority) Verify(tokenString string) (username string, ok bool) {
	t, err := Decode(tokenString)
	if err != nil {
		return "", false
	}
	if a.now().Unix() > t.ExpirationTime {
		return "", false
	}
	// hmac.Equal is constant time; a tampered tag cannot be probed
	// byte by byte.
	if !hmac.Equal(t.MAC, a.sign(t.Username, t.ExpirationTime, t.Nonce)) {
		return "", false
	}
	return t.Username, true
}

// Decode parses the wire form of a token without verifying it. Callers that
// care about authenticity must use Verify.
func Decode(tokenString string) (Token, error) {
	var t Token
	if err := json.Unmarshal([]byte(tokenString), &t); err != nil {
		return Token{}, fmt.Errorf("malformed token: %w", err)
	}
	if len(t.Nonce) != NonceSize {
		return Token{}, fmt.Errorf("malformed token: nonce must be %d bytes", NonceSize)
	}
	return t, nil
}

// sign computes the HMAC-SHA256 tag over (username, expiration, nonce).
// The expiration is fed in as big-endian bytes so the signed input is
// unambiguous.
func (a *Authority) sign(username string, expiration int64, nonce []byte) []byte {
	mac := hmac.New(sha256.New, a.key)
	mac.Write([]byte(username))
	mac.Write(binary.BigEndian.AppendUint64(nil, uint64(expiration)))
	mac.Write(nonce)
	return mac.Sum(nil)
}

// HashPassword returns the one-way digest of salt || password. The account
// handlers store this instead of the plaintext password.
func HashPassword(password string, salt []byte) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(password))
	return h.Sum(nil)
}

// NewSalt returns a fresh random salt for password hashing.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
