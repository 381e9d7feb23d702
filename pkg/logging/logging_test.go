package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogfRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelWarn, &buf)

	Debug("Cache", "this should not appear")
	Info("Cache", "neither should this")
	Warn("Cache", "evicted %d entries", 3)

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "evicted 3 entries")
	assert.Contains(t, out, "subsystem=Cache")
}

func TestErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)

	Error("Adapter", assertErr("boom"), "probe failed for %s", "fs")

	out := buf.String()
	assert.True(t, strings.Contains(out, "probe failed for fs"))
	assert.True(t, strings.Contains(out, "boom"))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
