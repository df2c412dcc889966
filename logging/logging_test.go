package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/Skryldev/filter-engine/config"
)

func TestNew_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	l.Info().Msg("quiet")
	assert.Zero(t, buf.Len())

	l.Warn().Str("k", "v").Msg("loud")
	assert.Contains(t, buf.String(), `"k":"v"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background())
	id := CorrelationID(ctx)
	assert.Len(t, id, 8)
	assert.Equal(t, id, CorrelationID(WithCorrelationID(ctx)), "existing id is kept")

	var buf bytes.Buffer
	l := Ctx(ctx, zerolog.New(&buf))
	l.Info().Msg("x")
	assert.True(t, strings.Contains(buf.String(), id))
}
