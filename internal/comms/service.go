// Package comms establishes encrypted, permissioned, audited channels
// between matched responders and users in crisis.
package comms

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/haven-crisis-platform/internal/observability/metrics"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// DefaultTTL is how long a channel stays usable without an explicit end.
const DefaultTTL = 24 * time.Hour

var responderPermissions = []Permission{PermissionSend, PermissionReceive, PermissionModerate, PermissionEnd}
var userPermissions = []Permission{PermissionSend, PermissionReceive}
var systemPermissions = []Permission{PermissionSend, PermissionReceive, PermissionModerate, PermissionEnd}

// Service owns channel lifecycle, message encryption and the audit trail.
type Service struct {
	mu       sync.RWMutex
	channels map[string]*Channel

	keyring *Keyring
	ttl     time.Duration
	metrics *metrics.CrisisMetrics
	logger  *logging.Logger
	now     func() time.Time
}

// NewService creates a channel service over the keyring.
func NewService(keyring *Keyring, ttl time.Duration, m *metrics.CrisisMetrics, logger *logging.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		channels: make(map[string]*Channel),
		keyring:  keyring,
		ttl:      ttl,
		metrics:  m,
		logger:   logger.WithComponent("comms"),
		now:      time.Now,
	}
}

// Establish creates a channel between a responder (full permissions) and a
// user (send/receive only), keyed to the current active key version.
func (s *Service) Establish(ctx context.Context, userID, responderID string) (*Channel, error) {
	now := s.now().UTC()
	ch := &Channel{
		ID:        uuid.NewString(),
		KeyID:     s.keyring.ActiveKeyID(),
		Status:    ChannelActive,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		Participants: []*Participant{
			{ID: responderID, Role: RoleResponder, Permissions: responderPermissions, JoinedAt: now, LastActivity: now},
			{ID: userID, Role: RoleUser, Permissions: userPermissions, JoinedAt: now, LastActivity: now},
		},
		Audit: []AuditEntry{{At: now, Actor: responderID, Action: "channel_created"}},
	}

	s.mu.Lock()
	s.channels[ch.ID] = ch
	out := ch.clone()
	s.mu.Unlock()

	s.logger.Info("secure channel established",
		"channel_id", ch.ID,
		"responder_id", responderID,
		"user_id", userID,
		"expires_at", ch.ExpiresAt,
	)
	return out, nil
}

// Get returns a detached copy of the channel by id.
func (s *Service) Get(ctx context.Context, channelID string) (*Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return nil, ErrChannelNotFound
	}
	return ch.clone(), nil
}

// SendMessage encrypts content under the channel's current key and appends
// it. The sender must hold send permission; every send is audited.
func (s *Service) SendMessage(ctx context.Context, channelID, senderID, content string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[channelID]
	if !ok {
		return nil, ErrChannelNotFound
	}
	now := s.now().UTC()
	if ch.expired(now) {
		s.metrics.ObserveChannelMessage("expired")
		return nil, ErrChannelExpired
	}
	sender := ch.participant(senderID)
	if sender == nil || !sender.Can(PermissionSend) {
		s.metrics.ObserveChannelMessage("denied")
		ch.Audit = append(ch.Audit, AuditEntry{At: now, Actor: senderID, Action: "send_denied"})
		return nil, ErrPermissionDenied
	}

	ciphertext, err := s.keyring.Encrypt(ch.KeyID, []byte(content), []byte(ch.ID))
	if err != nil {
		s.metrics.ObserveChannelMessage("encrypt_failed")
		return nil, err
	}
	msg := &Message{
		ID:         uuid.NewString(),
		ChannelID:  ch.ID,
		SenderID:   senderID,
		Ciphertext: ciphertext,
		KeyID:      ch.KeyID,
		SentAt:     now,
	}
	ch.Messages = append(ch.Messages, msg)
	ch.Audit = append(ch.Audit, AuditEntry{At: now, Actor: senderID, Action: "message_sent", Detail: msg.ID})
	sender.LastActivity = now

	s.metrics.ObserveChannelMessage("sent")
	return msg, nil
}

// Transcript decrypts the channel's messages for a participant with receive
// permission. Each message is opened under its own key version, so messages
// sealed before a rotation still decrypt.
func (s *Service) Transcript(ctx context.Context, channelID, readerID string) ([]PlainMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.channels[channelID]
	if !ok {
		return nil, ErrChannelNotFound
	}
	reader := ch.participant(readerID)
	if reader == nil || !reader.Can(PermissionReceive) {
		return nil, ErrPermissionDenied
	}

	out := make([]PlainMessage, 0, len(ch.Messages))
	for _, msg := range ch.Messages {
		plaintext, err := s.keyring.Decrypt(msg.KeyID, msg.Ciphertext, []byte(ch.ID))
		if err != nil {
			return nil, err
		}
		out = append(out, PlainMessage{
			ID:       msg.ID,
			SenderID: msg.SenderID,
			Content:  string(plaintext),
			SentAt:   msg.SentAt,
		})
	}
	return out, nil
}

// RotateKeys generates a new active key version and points every active
// channel at it. Messages already sealed keep their old key id.
func (s *Service) RotateKeys(ctx context.Context) (string, error) {
	newKeyID, err := s.keyring.Rotate()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	now := s.now().UTC()
	rotated := 0
	for _, ch := range s.channels {
		if ch.Status != ChannelActive {
			continue
		}
		ch.KeyID = newKeyID
		ch.Audit = append(ch.Audit, AuditEntry{At: now, Actor: "system", Action: "key_rotated", Detail: newKeyID})
		rotated++
	}
	s.mu.Unlock()

	s.logger.Info("channel keys rotated", "key_id", newKeyID, "channels", rotated)
	return newKeyID, nil
}

// EmergencyAccess adds a system participant with full permissions for a
// compliance override. The grant and its reason are audited.
func (s *Service) EmergencyAccess(ctx context.Context, channelID, adminID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[channelID]
	if !ok {
		return ErrChannelNotFound
	}
	now := s.now().UTC()
	ch.Participants = append(ch.Participants, &Participant{
		ID:           adminID,
		Role:         RoleSystem,
		Permissions:  systemPermissions,
		JoinedAt:     now,
		LastActivity: now,
	})
	ch.Audit = append(ch.Audit, AuditEntry{At: now, Actor: adminID, Action: "emergency_access_granted", Detail: reason})

	s.logger.Warn("emergency channel access granted",
		"channel_id", channelID,
		"admin_id", adminID,
		"reason", reason,
	)
	return nil
}

// End closes the channel. Requires end permission.
func (s *Service) End(ctx context.Context, channelID, requesterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[channelID]
	if !ok {
		return ErrChannelNotFound
	}
	p := ch.participant(requesterID)
	if p == nil || !p.Can(PermissionEnd) {
		return ErrPermissionDenied
	}
	ch.Status = ChannelEnded
	ch.Audit = append(ch.Audit, AuditEntry{At: s.now().UTC(), Actor: requesterID, Action: "channel_ended"})
	return nil
}
