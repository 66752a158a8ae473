//go:build !darwin && !freebsd

package kqworker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kqinotify/kqinotify/internal/kqworker"
)

func TestNewFailsOnUnsupportedPlatform(t *testing.T) {
	w, err := kqworker.New()
	assert.Nil(t, w)
	assert.ErrorIs(t, err, kqworker.ErrUnsupported)
}
