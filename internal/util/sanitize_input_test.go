package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"photo.png":             "photo.png",
		"../../etc/passwd":      "passwd",
		"C:\\Users\\me\\a b.jpg": "a_b.jpg",
		"...":                   "file",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}

func TestContainsSuspicious(t *testing.T) {
	assert.True(t, ContainsSuspicious("<script>"))
	assert.True(t, ContainsSuspicious("{$ne: 1}"))
	assert.False(t, ContainsSuspicious("alice"))
}

func TestMaskedEmail(t *testing.T) {
	assert.Equal(t, "a***@example.com", MaskedEmail("to", "alice@example.com").String)
	assert.Equal(t, "***", MaskedEmail("to", "not-an-address").String)
	assert.Equal(t, "***", MaskedEmail("to", "@example.com").String)
}
