package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, TransportPostgres, cfg.Realtime.Transport)
	assert.Equal(t, []string{"announcements", "announcement_reactions", "announcement_reads"}, cfg.Realtime.Tables)
	assert.Equal(t, 15*time.Second, cfg.Feed.RefreshTimeout)
	assert.Equal(t, time.Minute, cfg.Search.CacheTTL)
	assert.True(t, cfg.WebSocket.Enabled)
}

func TestFromViperUnknownTransportFallsBack(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("REALTIME_TRANSPORT", "carrier-pigeon")
	v.Set("SEARCH_CACHE_TTL", "not-a-duration")

	cfg := fromViper(v)
	assert.Equal(t, TransportPostgres, cfg.Realtime.Transport)
	assert.Equal(t, time.Minute, cfg.Search.CacheTTL)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a, ,b "))
}
