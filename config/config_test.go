package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kqinotify/kqinotify/config"
)

func TestDefaultMatchesDocumentedDefaults(t *testing.T) {
	cfg := config.Default()
	assert.Nil(t, cfg.SkipFSTypes)
	assert.False(t, cfg.FollowSymlinks)
	assert.True(t, cfg.MaskAddSemantics)
	assert.Equal(t, 20*time.Millisecond, cfg.RescanDebounce)
	assert.Equal(t, "", cfg.HTTPAddr)
}

func TestStringIncludesEveryField(t *testing.T) {
	cfg := config.Default()
	cfg.SkipFSTypes = []string{"nfs"}
	cfg.HTTPAddr = ":9191"

	s := cfg.String()
	assert.Contains(t, s, "nfs")
	assert.Contains(t, s, ":9191")
	assert.Contains(t, s, "mask-add-semantics=true")
}
