package probe

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pvieira/domain-sentry/internal/core"
)

// Security header scoring policy. Weights sum to 100; a missing header
// costs its full weight, a present-but-weak value costs half. The cut
// points are hand-tuned constants carried over from the original system.
const minHSTSMaxAge = 15552000 // 180 days

type headerSpec struct {
	name           string
	weight         int
	severity       string
	recommendation string
	secure         func(value string) bool
}

var headerSpecs = []headerSpec{
	{
		name:           "strict-transport-security",
		weight:         20,
		severity:       "error",
		recommendation: "Set Strict-Transport-Security with a max-age of at least 180 days",
		secure:         hstsSecure,
	},
	{
		name:           "content-security-policy",
		weight:         20,
		severity:       "error",
		recommendation: "Define a Content-Security-Policy without 'unsafe-inline' script sources",
		secure: func(v string) bool {
			return !strings.Contains(v, "'unsafe-inline'")
		},
	},
	{
		name:           "x-frame-options",
		weight:         15,
		severity:       "warning",
		recommendation: "Set X-Frame-Options to DENY or SAMEORIGIN to prevent clickjacking",
		secure: func(v string) bool {
			v = strings.ToUpper(strings.TrimSpace(v))
			return v == "DENY" || v == "SAMEORIGIN"
		},
	},
	{
		name:           "x-content-type-options",
		weight:         15,
		severity:       "warning",
		recommendation: "Set X-Content-Type-Options to nosniff",
		secure: func(v string) bool {
			return strings.EqualFold(strings.TrimSpace(v), "nosniff")
		},
	},
	{
		name:           "x-xss-protection",
		weight:         10,
		severity:       "info",
		recommendation: "Set X-XSS-Protection to 1; mode=block",
		secure: func(v string) bool {
			return strings.HasPrefix(strings.TrimSpace(v), "1")
		},
	},
	{
		name:           "referrer-policy",
		weight:         10,
		severity:       "info",
		recommendation: "Set Referrer-Policy to strict-origin-when-cross-origin or stricter",
		secure:         referrerPolicySecure,
	},
	{
		name:           "permissions-policy",
		weight:         10,
		severity:       "info",
		recommendation: "Define a Permissions-Policy to limit browser feature access",
		secure: func(v string) bool {
			return strings.TrimSpace(v) != ""
		},
	},
}

func hstsSecure(v string) bool {
	for _, part := range strings.Split(v, ";") {
		part = strings.TrimSpace(part)
		if rest, ok := strings.CutPrefix(strings.ToLower(part), "max-age="); ok {
			age, err := strconv.Atoi(rest)
			return err == nil && age >= minHSTSMaxAge
		}
	}
	return false
}

func referrerPolicySecure(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "no-referrer", "same-origin", "strict-origin", "strict-origin-when-cross-origin":
		return true
	}
	return false
}

// GradeForScore maps a 0-100 score onto a letter grade. Both the probe
// and the dashboard use this single ladder.
func GradeForScore(score int) string {
	switch {
	case score >= 97:
		return "A+"
	case score >= 93:
		return "A"
	case score >= 80:
		return "B"
	case score >= 65:
		return "C"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}

// SecurityHeaderProbe fetches a domain's response headers and scores its
// security posture against the seven-header policy above.
type SecurityHeaderProbe struct {
	client *http.Client
	now    func() time.Time
}

func NewSecurityHeaderProbe(timeout time.Duration) *SecurityHeaderProbe {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SecurityHeaderProbe{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		now: time.Now,
	}
}

func (p *SecurityHeaderProbe) Analyze(ctx context.Context, domain string) (*core.SecurityHeadersAnalysis, error) {
	resp, err := p.get(ctx, "https://"+domain)
	if err != nil {
		if isTimeout(err) {
			return nil, timeoutError(domain, err)
		}
		return nil, connectionError(domain, err)
	}
	defer resp.Body.Close()

	return p.score(domain, resp.Header), nil
}

func (p *SecurityHeaderProbe) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "domain-sentry/1.0")
	return p.client.Do(req)
}

func (p *SecurityHeaderProbe) score(domain string, headers http.Header) *core.SecurityHeadersAnalysis {
	analysis := &core.SecurityHeadersAnalysis{
		Domain:    domain,
		Timestamp: p.now(),
		Headers:   make(map[string]core.HeaderCheck, len(headerSpecs)),
	}

	score := 100
	for _, spec := range headerSpecs {
		value := headers.Get(spec.name)
		check := core.HeaderCheck{
			Present:  value != "",
			Severity: spec.severity,
		}
		check.Secure = check.Present && spec.secure(value)

		switch {
		case !check.Present:
			score -= spec.weight
		case !check.Secure:
			score -= spec.weight / 2
		}

		if !check.Secure {
			check.Recommendation = spec.recommendation
			analysis.Recommendations = append(analysis.Recommendations, spec.recommendation)
		}
		if !check.Present && spec.severity == "error" {
			analysis.Vulnerabilities = append(analysis.Vulnerabilities, spec.name)
		}
		analysis.Headers[spec.name] = check
	}

	if score < 0 {
		score = 0
	}
	analysis.Score = score
	analysis.Grade = GradeForScore(score)
	return analysis
}
