package probe

import (
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	"github.com/pvieira/domain-sentry/internal/core"
)

// WhoisProbe looks up domain registration data. Informational only; its
// output never enters the monitoring history.
type WhoisProbe struct {
	now func() time.Time
}

func NewWhoisProbe() *WhoisProbe {
	return &WhoisProbe{now: time.Now}
}

func (p *WhoisProbe) Lookup(domain string) (*core.WhoisInfo, error) {
	raw, err := whois.Whois(domain)
	if err != nil {
		return nil, connectionError(domain, err)
	}

	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		return nil, connectionError(domain, err)
	}

	info := &core.WhoisInfo{Domain: domain}
	if parsed.Registrar != nil {
		info.Registrar = parsed.Registrar.Name
	}
	if parsed.Domain != nil {
		info.Status = parsed.Domain.Status
		info.CreatedDate = whoisDate(parsed.Domain.CreatedDateInTime, parsed.Domain.CreatedDate)
		info.UpdatedDate = whoisDate(parsed.Domain.UpdatedDateInTime, parsed.Domain.UpdatedDate)
		info.ExpiryDate = whoisDate(parsed.Domain.ExpirationDateInTime, parsed.Domain.ExpirationDate)
		if info.ExpiryDate != nil {
			info.DaysToExpiry = int(info.ExpiryDate.Sub(p.now()).Hours() / 24)
		}
	}
	return info, nil
}

// whoisDate prefers the parser's pre-parsed timestamp and falls back to
// the raw string, which registries format every which way.
func whoisDate(parsed *time.Time, raw string) *time.Time {
	if parsed != nil {
		t := *parsed
		return &t
	}
	if raw == "" {
		return nil
	}
	for _, format := range whoisDateFormats {
		if t, err := time.Parse(format, raw); err == nil {
			return &t
		}
	}
	return nil
}

var whoisDateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"02-Jan-2006",
	"2006.01.02 15:04:05",
	"2006/01/02",
	"2006-01-02",
}
