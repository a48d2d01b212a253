package uvc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigNormalize_Defaults(t *testing.T) {
	cfg := Config{}.Normalize()

	assert.Equal(t, CodecAuto, cfg.Codec)
	assert.Equal(t, 12, cfg.NumTransfers)
	assert.Equal(t, 32, cfg.PacketsPerTransfer)
	assert.Equal(t, 8, cfg.FrameQueueSize)
	assert.Equal(t, 2000, cfg.ControlTimeoutMS)
	assert.Equal(t, 2*time.Second, cfg.controlTimeout())
	if assert.NotNil(t, cfg.DropOnOverflow) {
		assert.True(t, *cfg.DropOnOverflow)
	}
	if assert.NotNil(t, cfg.AutoDetachVC) {
		assert.True(t, *cfg.AutoDetachVC)
	}
}

func TestConfigNormalize_PreservesExplicit(t *testing.T) {
	off := false
	cfg := Config{
		Codec:            CodecMJPEG,
		NumTransfers:     4,
		DropOnOverflow:   &off,
		ControlTimeoutMS: 500,
	}.Normalize()

	assert.Equal(t, CodecMJPEG, cfg.Codec)
	assert.Equal(t, 4, cfg.NumTransfers)
	assert.False(t, *cfg.DropOnOverflow)
	assert.Equal(t, 500*time.Millisecond, cfg.controlTimeout())
}
