package comms

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

const keySize = 32 // AES-256

// Keyring holds versioned AES-256-GCM keys. New messages are sealed under
// the active key; superseded keys are retained (inactive) so in-flight
// messages stay decryptable after rotation.
type Keyring struct {
	mu     sync.RWMutex
	keys   map[string][]byte
	active string
}

// NewKeyring creates a keyring with one freshly generated active key.
func NewKeyring() (*Keyring, error) {
	k := &Keyring{keys: make(map[string][]byte)}
	if _, err := k.Rotate(); err != nil {
		return nil, err
	}
	return k, nil
}

// ActiveKeyID returns the id of the key new messages are sealed under.
func (k *Keyring) ActiveKeyID() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.active
}

// Rotate generates a new key version and makes it active. Old versions stay
// in the ring for decryption.
func (k *Keyring) Rotate() (string, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("comms: generate key: %w", err)
	}
	id := uuid.NewString()

	k.mu.Lock()
	k.keys[id] = key
	k.active = id
	k.mu.Unlock()
	return id, nil
}

// Encrypt seals plaintext under the given key version. The nonce is random
// per message and prepended to the ciphertext; aad binds the ciphertext to
// its context (the channel id) and must match on decrypt.
func (k *Keyring) Encrypt(keyID string, plaintext, aad []byte) ([]byte, error) {
	aead, err := k.aead(keyID)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("comms: generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Decrypt opens ciphertext sealed by Encrypt with the same key version and
// aad. Authentication failure returns ErrDecryptFailed.
func (k *Keyring) Decrypt(keyID string, ciphertext, aad []byte) ([]byte, error) {
	aead, err := k.aead(keyID)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, ErrDecryptFailed
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

func (k *Keyring) aead(keyID string) (cipher.AEAD, error) {
	k.mu.RLock()
	key, ok := k.keys[keyID]
	k.mu.RUnlock()
	if !ok {
		return nil, ErrKeyNotFound
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("comms: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("comms: init gcm: %w", err)
	}
	return aead, nil
}
