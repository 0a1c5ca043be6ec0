package probe

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func secureHeaders() http.Header {
	h := http.Header{}
	h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	h.Set("Content-Security-Policy", "default-src 'self'")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-XSS-Protection", "1; mode=block")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Permissions-Policy", "geolocation=()")
	return h
}

func TestScoreAllSecure(t *testing.T) {
	p := NewSecurityHeaderProbe(time.Second)
	analysis := p.score("example.com", secureHeaders())

	assert.Equal(t, 100, analysis.Score)
	assert.Equal(t, "A+", analysis.Grade)
	assert.Empty(t, analysis.Vulnerabilities)
	assert.Empty(t, analysis.Recommendations)
	require.Len(t, analysis.Headers, 7)
	for name, check := range analysis.Headers {
		assert.True(t, check.Present, name)
		assert.True(t, check.Secure, name)
	}
}

func TestScoreAllMissing(t *testing.T) {
	p := NewSecurityHeaderProbe(time.Second)
	analysis := p.score("example.com", http.Header{})

	assert.Equal(t, 0, analysis.Score)
	assert.Equal(t, "F", analysis.Grade)
	// Only the error-severity headers count as vulnerabilities.
	assert.Equal(t, []string{"strict-transport-security", "content-security-policy"}, analysis.Vulnerabilities)
	assert.Len(t, analysis.Recommendations, 7)
}

func TestScoreWeakValueCostsHalf(t *testing.T) {
	p := NewSecurityHeaderProbe(time.Second)
	h := secureHeaders()
	h.Set("Strict-Transport-Security", "max-age=3600")

	analysis := p.score("example.com", h)

	assert.Equal(t, 90, analysis.Score)
	assert.Equal(t, "B", analysis.Grade)
	check := analysis.Headers["strict-transport-security"]
	assert.True(t, check.Present)
	assert.False(t, check.Secure)
	assert.NotEmpty(t, check.Recommendation)
	// Present-but-weak is a recommendation, not a vulnerability.
	assert.Empty(t, analysis.Vulnerabilities)
}

func TestScoreMixed(t *testing.T) {
	p := NewSecurityHeaderProbe(time.Second)
	h := secureHeaders()
	h.Del("Content-Security-Policy")       // -20
	h.Set("X-Frame-Options", "ALLOW-FROM") // -7 (15/2 rounds down)

	analysis := p.score("example.com", h)

	assert.Equal(t, 73, analysis.Score)
	assert.Equal(t, "C", analysis.Grade)
	assert.Equal(t, []string{"content-security-policy"}, analysis.Vulnerabilities)
}

func TestHSTSSecure(t *testing.T) {
	assert.True(t, hstsSecure("max-age=15552000"))
	assert.True(t, hstsSecure("includeSubDomains; max-age=31536000"))
	assert.False(t, hstsSecure("max-age=15551999"))
	assert.False(t, hstsSecure("includeSubDomains"))
	assert.False(t, hstsSecure("max-age=oops"))
}

func TestReferrerPolicySecure(t *testing.T) {
	assert.True(t, referrerPolicySecure("no-referrer"))
	assert.True(t, referrerPolicySecure(" Strict-Origin-When-Cross-Origin "))
	assert.False(t, referrerPolicySecure("unsafe-url"))
	assert.False(t, referrerPolicySecure("origin"))
}

func TestGradeForScore(t *testing.T) {
	cases := []struct {
		score int
		grade string
	}{
		{100, "A+"}, {97, "A+"},
		{96, "A"}, {93, "A"},
		{92, "B"}, {80, "B"},
		{79, "C"}, {65, "C"},
		{64, "D"}, {50, "D"},
		{49, "F"}, {0, "F"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.grade, GradeForScore(tc.score), "score %d", tc.score)
	}
}
