package crypto

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLen   = 32 // AES-256
	nonceLen = 12 // 96-bit GCM nonce
	tagLen   = 16 // 128-bit GCM tag
)

// ErrAuthentication is returned when a ciphertext fails tag verification:
// tampering, corruption, truncation, or decryption under the wrong user id.
// Partially decrypted plaintext is never returned alongside it.
var ErrAuthentication = errors.New("decryption failed: data corrupted, tampered with, or wrong user key")

// Engine provides per-user authenticated encryption for stored medical text.
// Keys are derived from the master key with PBKDF2-SHA256 using the user id
// as salt, so one leaked user key reveals neither the master key nor any
// other user's key. Encrypted blobs are laid out nonce || ciphertext || tag.
type Engine struct {
	provider   MasterKeyProvider
	iterations int

	mu        sync.RWMutex
	masterSum [sha256.Size]byte
	userKeys  map[string][]byte
}

func NewEngine(provider MasterKeyProvider, iterations int) (*Engine, error) {
	if provider == nil {
		return nil, errors.New("master key provider is required")
	}
	if iterations < 1 {
		return nil, fmt.Errorf("kdf iterations must be positive, got %d", iterations)
	}
	return &Engine{
		provider:   provider,
		iterations: iterations,
		userKeys:   make(map[string][]byte),
	}, nil
}

// userKey derives (or returns the cached) 32-byte key for userID. The cache
// is dropped whenever the provider starts returning a different master key,
// so derivations always reflect the current key.
func (e *Engine) userKey(ctx context.Context, userID string) ([]byte, error) {
	master, err := e.provider.MasterKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching master key: %w", err)
	}
	master = normalizeMasterKey(master)
	sum := sha256.Sum256(master)

	e.mu.RLock()
	if sum == e.masterSum {
		if k, ok := e.userKeys[userID]; ok {
			e.mu.RUnlock()
			return k, nil
		}
	}
	e.mu.RUnlock()

	k := pbkdf2.Key(master, []byte(userID), e.iterations, keyLen, sha256.New)

	e.mu.Lock()
	if sum != e.masterSum {
		e.masterSum = sum
		e.userKeys = make(map[string][]byte)
	}
	e.userKeys[userID] = k
	e.mu.Unlock()

	return k, nil
}

// Encrypt seals plaintext under userID's derived key with AES-256-GCM and a
// fresh random 96-bit nonce. Empty plaintext round-trips as an empty blob.
func (e *Engine) Encrypt(ctx context.Context, plaintext string, userID string) ([]byte, error) {
	if plaintext == "" {
		return []byte{}, nil
	}

	key, err := e.userKey(ctx, userID)
	if err != nil {
		return nil, err
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	// Seal appends ciphertext+tag to the nonce, yielding the stored layout.
	return aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a blob produced by Encrypt. Any verification failure is
// reported as ErrAuthentication.
func (e *Engine) Decrypt(ctx context.Context, blob []byte, userID string) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	if len(blob) < nonceLen+tagLen {
		return "", fmt.Errorf("blob of %d bytes is shorter than nonce and tag: %w", len(blob), ErrAuthentication)
	}

	key, err := e.userKey(ctx, userID)
	if err != nil {
		return "", err
	}

	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, blob[:nonceLen], blob[nonceLen:], nil)
	if err != nil {
		return "", ErrAuthentication
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initializing GCM: %w", err)
	}
	return aead, nil
}

// normalizeMasterKey truncates or zero-pads the supplied key material to
// exactly 32 bytes, matching what the key provisioning side stores.
func normalizeMasterKey(master []byte) []byte {
	if len(master) == keyLen {
		return master
	}
	if len(master) > keyLen {
		return master[:keyLen]
	}
	return append(bytes.Clone(master), make([]byte, keyLen-len(master))...)
}
