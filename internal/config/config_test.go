package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears keys for the duration of the test; envconfig treats an empty value as set.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t, "ENV", "PORT", "TRANSCRIPT_CAP", "SIDE_EFFECT_TIMEOUT", "DELIVERY_TIMEOUT",
		"SPAM_MESSAGES_PER_MINUTE", "SPAM_BURST", "SESSION_TTL")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 100, cfg.TranscriptCap)
	assert.Equal(t, 5*time.Second, cfg.SideEffectTimeout)
	assert.Equal(t, 3*time.Second, cfg.DeliveryTimeout)
	assert.Equal(t, 20, cfg.SpamMessagesPerMinute)
	assert.Equal(t, 168*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENV", " Production ")
	t.Setenv("TRANSCRIPT_CAP", "25")
	t.Setenv("DELIVERY_TIMEOUT", "750ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 25, cfg.TranscriptCap)
	assert.Equal(t, 750*time.Millisecond, cfg.DeliveryTimeout)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("TRANSCRIPT_CAP", "0")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("TRANSCRIPT_CAP", "ten")
	_, err = Load()
	assert.Error(t, err)
}

func TestOrigins(t *testing.T) {
	cfg := &Config{AllowedOrigins: " https://a.example , ,https://b.example", Host: "https://api.tandem.chat/v1"}
	assert.Equal(t, []string{
		"https://a.example",
		"https://b.example",
		"https://tandem.chat",
		"https://www.tandem.chat",
	}, cfg.Origins())

	cfg = &Config{FrontendURL: "http://localhost:3000", Host: "http://localhost:8080"}
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Origins())

	cfg = &Config{Host: "https://api.tandem.chat", AllowedOrigins: "https://TANDEM.chat"}
	assert.Equal(t, []string{"https://TANDEM.chat", "https://www.tandem.chat"}, cfg.Origins())
}

func TestAPIHost(t *testing.T) {
	assert.Equal(t, "api.tandem.chat", (&Config{Host: "https://api.tandem.chat:443/"}).APIHost())
	assert.Equal(t, "", (&Config{Host: "http://localhost:8080"}).APIHost())
}
