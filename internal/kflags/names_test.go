package kflags_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kqinotify/kqinotify/internal/kflags"
)

func TestParseMaskCombinesNames(t *testing.T) {
	m, err := kflags.ParseMask("create,delete,modify")
	require.NoError(t, err)
	assert.True(t, m.Has(kflags.InCreate|kflags.InDelete|kflags.InModify))
	assert.False(t, m.Has(kflags.InOpen))
}

func TestParseMaskEmptyMeansAllEvents(t *testing.T) {
	m, err := kflags.ParseMask("")
	require.NoError(t, err)
	assert.Equal(t, kflags.InAllEvents, m)
}

func TestParseMaskRejectsUnknownName(t *testing.T) {
	_, err := kflags.ParseMask("create,bogus")
	assert.Error(t, err)
}
