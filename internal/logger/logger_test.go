package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSetup(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	assert.Equal(t, zerolog.DebugLevel, Setup("debug", false))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	assert.Equal(t, zerolog.InfoLevel, Setup("", false))
	assert.Equal(t, zerolog.InfoLevel, Setup("loud", false))
	assert.Equal(t, zerolog.WarnLevel, Setup("warn", false))
}
