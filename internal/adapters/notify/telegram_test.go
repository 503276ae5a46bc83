package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

func TestTelegram_DisabledWithoutCredentials(t *testing.T) {
	tg := NewTelegram("", "")
	assert.False(t, tg.enabled)

	err := tg.NotifyEvent(context.Background(), domain.EngineEvent{
		Timestamp: time.Now(), EventType: "started", Message: "engine started",
	})
	require.NoError(t, err, "disabled notifier is a silent no-op")
}

func TestTelegram_EnabledWithCredentials(t *testing.T) {
	tg := NewTelegram("bot-token", "chat-id")
	assert.True(t, tg.enabled)
}
