package compliance

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourceService_Apply(t *testing.T) {
	svc := NewResourceService(nil, DefaultResourceConfig())

	out := svc.Apply(context.Background(), "user-1", "A counselor will reach out shortly.")
	assert.True(t, strings.HasPrefix(out, "A counselor will reach out shortly."))
	assert.Contains(t, out, "988")
}

func TestResourceService_ApplyDisabled(t *testing.T) {
	svc := NewResourceService(nil, ResourceConfig{Enabled: false})

	out := svc.Apply(context.Background(), "user-1", "hello")
	assert.Equal(t, "hello", out)
}

func TestResourceService_ApplyIdempotent(t *testing.T) {
	svc := NewResourceService(nil, DefaultResourceConfig())

	once := svc.Apply(context.Background(), "user-1", "stay with me")
	twice := svc.Apply(context.Background(), "user-1", once)
	assert.Equal(t, once, twice)
}

func TestResourceService_Levels(t *testing.T) {
	tests := []struct {
		level    ResourceLevel
		contains string
	}{
		{ResourceBrief, "911"},
		{ResourceStandard, "988"},
		{ResourceFull, "741741"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			svc := NewResourceService(nil, ResourceConfig{Level: tt.level, Enabled: true})
			assert.Contains(t, svc.Text(), tt.contains)
		})
	}
}

func TestResourceService_CustomText(t *testing.T) {
	svc := NewResourceService(nil, ResourceConfig{
		Enabled:    true,
		CustomText: "Call the local crisis line at 0800-111.",
	})

	out := svc.Apply(context.Background(), "user-1", "")
	assert.Equal(t, "Call the local crisis line at 0800-111.", out)
}
