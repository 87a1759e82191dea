package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVsHashesPersonalData(t *testing.T) {
	out := sanitizeKVs([]interface{}{"member_number", 7, "last_name", "Lovelace", "first_name", "Ada"})

	assert.Equal(t, "member_number", out[0])
	assert.Equal(t, 7, out[1])
	assert.Equal(t, "last_name", out[2])
	assert.True(t, strings.HasPrefix(out[3].(string), "hash:"))
	assert.NotContains(t, out[3], "Lovelace")
	assert.NotEqual(t, out[3], out[5])
}

func TestSanitizeKVsIsStable(t *testing.T) {
	a := sanitizeKVs([]interface{}{"last_name", "Lovelace"})
	b := sanitizeKVs([]interface{}{"last_name", "Lovelace"})
	assert.Equal(t, a, b)
}

func TestSanitizeKVsKeepsDanglingKey(t *testing.T) {
	out := sanitizeKVs([]interface{}{"error", "boom", "dangling"})
	assert.Equal(t, []interface{}{"error", "boom", "dangling"}, out)
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"prod", "dev", "test"} {
		l, err := New(mode)
		assert.NoError(t, err, mode)
		l.With("component", "test").Debug("hello", "last_name", "x")
	}
	NewNop().Info("discarded")
}
