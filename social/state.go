package social

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultStateTTL bounds how long a user may sit on the provider consent page
const DefaultStateTTL = 10 * time.Minute

// StateManager seals the OAuth state parameter.
type StateManager interface {
	Encode(state *OAuthState) (string, error)
	Decode(token string) (*OAuthState, error)
}

// OAuthState travels through the provider round trip inside the state parameter.
type OAuthState struct {
	Nonce        string `json:"n"`
	Provider     string `json:"p"`
	CodeVerifier string `json:"cv,omitempty"`
	RedirectURL  string `json:"r,omitempty"`
	IssuedAt     int64  `json:"iat"`
	ExpiresAt    int64  `json:"exp"`
}

// EncryptedStateManager encrypts state with AES-GCM and signs the ciphertext with HMAC-SHA256.
type EncryptedStateManager struct {
	encryptionKey []byte
	hmacKey       []byte
	ttl           time.Duration
	now           func() time.Time
}

// StateOption configures an EncryptedStateManager
type StateOption func(*EncryptedStateManager)

// WithStateClock overrides the clock used to stamp and expire state
func WithStateClock(now func() time.Time) StateOption {
	return func(sm *EncryptedStateManager) {
		if now != nil {
			sm.now = now
		}
	}
}

// NewEncryptedStateManager creates a state manager. encryptionKey must be 16, 24 or 32 bytes.
func NewEncryptedStateManager(encryptionKey, hmacKey []byte, ttl time.Duration, opts ...StateOption) *EncryptedStateManager {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	sm := &EncryptedStateManager{
		encryptionKey: encryptionKey,
		hmacKey:       hmacKey,
		ttl:           ttl,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}
	return sm
}

// NewStateManagerFromSecret derives independent encryption and signing keys from one secret.
func NewStateManagerFromSecret(secret string, ttl time.Duration, opts ...StateOption) *EncryptedStateManager {
	enc, mac := DeriveStateKeys(secret)
	return NewEncryptedStateManager(enc, mac, ttl, opts...)
}

// DeriveStateKeys returns a 32 byte AES key and a 32 byte HMAC key for secret
func DeriveStateKeys(secret string) ([]byte, []byte) {
	enc := sha256.Sum256([]byte("state-encryption:" + secret))
	mac := sha256.Sum256([]byte("state-signing:" + secret))
	return enc[:], mac[:]
}

// Encode encrypts and signs the state, filling timestamps and nonce when unset.
func (sm *EncryptedStateManager) Encode(state *OAuthState) (string, error) {
	if state == nil {
		return "", ErrInvalidState
	}

	now := sm.now()
	if state.IssuedAt == 0 {
		state.IssuedAt = now.Unix()
	}
	if state.ExpiresAt == 0 {
		state.ExpiresAt = now.Add(sm.ttl).Unix()
	}
	if state.Nonce == "" {
		nonce, err := generateNonce()
		if err != nil {
			return "", err
		}
		state.Nonce = nonce
	}

	plaintext, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}

	gcm, err := sm.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	signed := append(sm.sign(ciphertext), ciphertext...)

	return base64.RawURLEncoding.EncodeToString(signed), nil
}

// Decode verifies, decrypts and expires the state.
func (sm *EncryptedStateManager) Decode(token string) (*OAuthState, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(data) < sha256.Size {
		return nil, ErrInvalidState
	}

	signature, ciphertext := data[:sha256.Size], data[sha256.Size:]
	if !hmac.Equal(signature, sm.sign(ciphertext)) {
		return nil, ErrInvalidState
	}

	gcm, err := sm.aead()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrInvalidState
	}

	plaintext, err := gcm.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, ErrInvalidState
	}

	var state OAuthState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return nil, ErrInvalidState
	}

	if sm.now().Unix() > state.ExpiresAt {
		return nil, ErrStateExpired
	}

	return &state, nil
}

func (sm *EncryptedStateManager) sign(data []byte) []byte {
	mac := hmac.New(sha256.New, sm.hmacKey)
	mac.Write(data)
	return mac.Sum(nil)
}

func (sm *EncryptedStateManager) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(sm.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("state cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func generateCodeVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func computeCodeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
