package helpers

import (
	"bytes"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	ok := NewValueResult(3)
	v, err := ok.Value()
	assert.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.Equal(t, 3, ok.Unwrap())
	assert.NoError(t, ok.Error())

	r := NewErrorResult[int](errors.New("failed"))
	assert.EqualError(t, r.Error(), "failed")
	assert.Panics(t, func() { r.Unwrap() })
}

func TestWatermillZerologAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWatermill(zerolog.New(&buf).Level(zerolog.DebugLevel))

	logger.With(watermill.LogFields{"topic": "ponder"}).Error("publish failed", errors.New("closed"), nil)
	logger.Info("subscribed", watermill.LogFields{"handler": "steps"})

	out := buf.String()
	assert.Contains(t, out, `"topic":"ponder"`)
	assert.Contains(t, out, `"error":"closed"`)
	assert.Contains(t, out, `"level":"debug"`)
	assert.Contains(t, out, `"handler":"steps"`)
}
