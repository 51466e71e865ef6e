package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_LevelByEnvironment(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, New("development").GetLevel())
	assert.Equal(t, zerolog.DebugLevel, NewFor("api", " Dev ").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("production").GetLevel())
}
