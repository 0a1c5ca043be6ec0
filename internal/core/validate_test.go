package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidDomain(t *testing.T) {
	valid := []string{
		"example.com",
		"sub.example.com",
		"a-b.example.co.uk",
		"xn--bcher-kva.example",
	}
	for _, d := range valid {
		assert.True(t, ValidDomain(d), d)
	}

	invalid := []string{
		"",
		"example",
		"-example.com",
		"example-.com",
		"exam ple.com",
		"example.com/path",
		"https://example.com",
		"example.123",
		strings.Repeat("a", 64) + ".com",
		strings.Repeat("a.", 127) + "com",
	}
	for _, d := range invalid {
		assert.False(t, ValidDomain(d), d)
	}
}
