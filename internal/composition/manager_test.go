package composition

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBuildComposeArgsSingleSource(t *testing.T) {
	args := BuildComposeArgs([]string{"rtmp://cam/1"}, "/tmp/out.mp4")
	assert.Equal(t, []string{"-i", "rtmp://cam/1", "-c", "copy", "-y", "/tmp/out.mp4"}, args)
}

func TestBuildComposeArgsTwoSources(t *testing.T) {
	args := BuildComposeArgs([]string{"rtmp://cam/1", "rtmp://cam/2"}, "/tmp/out.mp4")
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-i rtmp://cam/1 -i rtmp://cam/2")
	assert.Contains(t, joined, "hstack=inputs=2")
	assert.Contains(t, joined, "-map [v] -map 0:a?")
	assert.Contains(t, joined, "libx264")
	assert.Equal(t, "/tmp/out.mp4", args[len(args)-1])
}

func TestBuildComposeArgsGrid(t *testing.T) {
	sources := []string{"a", "b", "c", "d"}
	args := BuildComposeArgs(sources, "/tmp/out.mp4")
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "xstack=inputs=4")
	assert.Contains(t, joined, "layout=0_0|w0_0|0_h0|w0_h0")
}

func TestXstackLayout(t *testing.T) {
	assert.Equal(t, "0_0|w0_0|0_h0", xstackLayout(3))
	assert.Equal(t, "0_0|w0_0|0_h0|w0_h0|0_h0+h0|w0_h0+h0", xstackLayout(6))
}

func TestRegistryKey(t *testing.T) {
	id := uuid.MustParse("2b0e7a64-3f5d-4a2e-9c1b-8d6f5e4a3b2c")
	assert.Equal(t, "composition:wedding:2b0e7a64-3f5d-4a2e-9c1b-8d6f5e4a3b2c", Key(id))
}

func TestProcessAliveRejectsBadPIDs(t *testing.T) {
	assert.False(t, processAlive(0))
	assert.False(t, processAlive(-1))
}
