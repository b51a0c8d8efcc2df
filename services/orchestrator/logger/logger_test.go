package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVsHashesIdentity(t *testing.T) {
	l := &Logger{redact: true}
	out := l.sanitizeKVs([]interface{}{"identity", "+919876543210", "turn_id", "t-1"})

	assert.Len(t, out, 4)
	assert.Equal(t, "identity", out[0])
	assert.NotEqual(t, "+919876543210", out[1])
	assert.Contains(t, out[1], "h:")
	assert.Equal(t, "t-1", out[3])
}

func TestSanitizeKVsPassthroughWhenDisabled(t *testing.T) {
	l := &Logger{}
	kv := []interface{}{"identity", "+919876543210"}
	assert.Equal(t, kv, l.sanitizeKVs(kv))
}

func TestSanitizeKVsOddLength(t *testing.T) {
	l := &Logger{redact: true}
	out := l.sanitizeKVs([]interface{}{"phone", "123", "dangling"})
	assert.Len(t, out, 3)
	assert.Equal(t, "dangling", out[2])
}

func TestNopDoesNotPanic(t *testing.T) {
	l := Nop().With("component", "test")
	l.Info("hello", "identity", "x")
	l.Sync()
}
