package comms

import "errors"

var (
	// ErrChannelNotFound is returned when a channel does not exist.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrChannelExpired is returned when a channel is past its TTL or ended.
	ErrChannelExpired = errors.New("channel expired")

	// ErrPermissionDenied is returned when a participant lacks the permission
	// for the attempted action.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrKeyNotFound is returned when a message references an unknown key
	// version.
	ErrKeyNotFound = errors.New("encryption key not found")

	// ErrDecryptFailed is returned when authenticated decryption fails.
	// Corrupted or tampered ciphertext is never returned as plaintext.
	ErrDecryptFailed = errors.New("decryption failed")
)
