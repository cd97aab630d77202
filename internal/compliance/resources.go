package compliance

import (
	"context"
	"fmt"
	"strings"
)

// ResourceLevel represents the depth of crisis resource information attached
// to a message.
type ResourceLevel string

const (
	// ResourceBrief is the shortest resource card.
	ResourceBrief ResourceLevel = "brief"
	// ResourceStandard is the default resource card.
	ResourceStandard ResourceLevel = "standard"
	// ResourceFull is the most comprehensive resource card.
	ResourceFull ResourceLevel = "full"
)

// Resource card templates
const (
	resourceBriefText = "If you are in immediate danger, call 911 or dial 988."

	resourceStandardText = "Support is available right now. Call or text 988 (Suicide & Crisis Lifeline) any time, or call 911 if you are in immediate danger."

	resourceFullText = "Support is available right now. Call or text 988 to reach the Suicide & Crisis Lifeline, available 24/7 and free. You can also text HOME to 741741 to reach the Crisis Text Line. If you or someone else is in immediate danger, call 911."
)

// ResourceConfig configures the crisis resource service.
type ResourceConfig struct {
	// Level determines which resource card template to use.
	Level ResourceLevel
	// Enabled controls whether resource cards are attached.
	Enabled bool
	// CustomText overrides the default template.
	CustomText string
}

// DefaultResourceConfig returns sensible defaults.
func DefaultResourceConfig() ResourceConfig {
	return ResourceConfig{
		Level:   ResourceStandard,
		Enabled: true,
	}
}

// ResourceService attaches crisis resource information to user-facing
// messages and audits each delivery.
type ResourceService struct {
	audit  *AuditService
	config ResourceConfig
}

// NewResourceService creates a new resource service.
func NewResourceService(audit *AuditService, config ResourceConfig) *ResourceService {
	return &ResourceService{
		audit:  audit,
		config: config,
	}
}

// Text returns the configured resource card text.
func (s *ResourceService) Text() string {
	if s.config.CustomText != "" {
		return s.config.CustomText
	}
	switch s.config.Level {
	case ResourceBrief:
		return resourceBriefText
	case ResourceFull:
		return resourceFullText
	default:
		return resourceStandardText
	}
}

// Apply appends the resource card to a message and audits the delivery.
// The message is returned unchanged when the service is disabled or the
// card is already present.
func (s *ResourceService) Apply(ctx context.Context, userID, message string) string {
	if !s.config.Enabled {
		return message
	}
	text := s.Text()
	if strings.Contains(message, text) {
		return message
	}

	if s.audit != nil {
		// Resource delivery proceeds even when the audit write fails.
		_ = s.audit.LogResourcesSent(ctx, userID, string(s.config.Level))
	}

	if message == "" {
		return text
	}
	return fmt.Sprintf("%s\n\n%s", message, text)
}
