package comms

import (
	"time"
)

// Permission is one channel action a participant may perform.
type Permission string

const (
	PermissionSend     Permission = "send"
	PermissionReceive  Permission = "receive"
	PermissionModerate Permission = "moderate"
	PermissionEnd      Permission = "end"
)

// ChannelStatus is the channel lifecycle state.
type ChannelStatus string

const (
	ChannelActive  ChannelStatus = "active"
	ChannelEnded   ChannelStatus = "ended"
	ChannelExpired ChannelStatus = "expired"
)

// Participant is one member of a channel with scoped permissions.
// Participant roles.
const (
	RoleResponder = "responder"
	RoleUser      = "user"
	RoleSystem    = "system"
)

type Participant struct {
	ID           string       `json:"id"`
	Role         string       `json:"role"` // responder, user, system
	Permissions  []Permission `json:"permissions"`
	JoinedAt     time.Time    `json:"joined_at"`
	LastActivity time.Time    `json:"last_activity"`
}

// Can reports whether the participant holds the permission.
func (p *Participant) Can(perm Permission) bool {
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

// AuditEntry is one append-only audit log record on a channel.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Detail string    `json:"detail,omitempty"`
}

// Message is a channel message at rest: ciphertext plus the key version it
// was sealed under. Plaintext is never stored.
type Message struct {
	ID         string    `json:"id"`
	ChannelID  string    `json:"channel_id"`
	SenderID   string    `json:"sender_id"`
	Ciphertext []byte    `json:"ciphertext"`
	KeyID      string    `json:"key_id"`
	SentAt     time.Time `json:"sent_at"`
}

// PlainMessage is a decrypted message handed to an authorized reader. Never
// persisted.
type PlainMessage struct {
	ID       string    `json:"id"`
	SenderID string    `json:"sender_id"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
}

// Channel is an encrypted, permissioned conversation between a matched
// responder and a user. KeyID tracks the key version new messages are
// sealed under; older messages keep their own key id.
type Channel struct {
	ID           string         `json:"id"`
	Participants []*Participant `json:"participants"`
	KeyID        string         `json:"key_id"`
	Status       ChannelStatus  `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	ExpiresAt    time.Time      `json:"expires_at"`
	Audit        []AuditEntry   `json:"audit"`
	Messages     []*Message     `json:"messages"`
}

// clone deep-copies the channel so callers outside the service mutex never
// share slices or participants with the live record.
func (c *Channel) clone() *Channel {
	cp := *c
	cp.Participants = make([]*Participant, len(c.Participants))
	for i, p := range c.Participants {
		pc := *p
		pc.Permissions = append([]Permission(nil), p.Permissions...)
		cp.Participants[i] = &pc
	}
	cp.Audit = append([]AuditEntry(nil), c.Audit...)
	cp.Messages = make([]*Message, len(c.Messages))
	for i, m := range c.Messages {
		mc := *m
		mc.Ciphertext = append([]byte(nil), m.Ciphertext...)
		cp.Messages[i] = &mc
	}
	return &cp
}

func (c *Channel) participant(id string) *Participant {
	for _, p := range c.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (c *Channel) expired(now time.Time) bool {
	return c.Status != ChannelActive || now.After(c.ExpiresAt)
}
