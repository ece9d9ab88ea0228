package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("info"))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel(" error "))
	assert.Equal(t, zerolog.Disabled, parseLevel("disabled"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("bogus"))
}

func TestInitSetsGlobalLevel(t *testing.T) {
	Init(Config{Format: "json", Level: "warn", Component: "test"})
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	Init(Config{Format: "json", Level: "info"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
