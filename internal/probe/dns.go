package probe

import (
	"context"
	"time"

	"github.com/miekg/dns"
)

// Resolver performs explicit A-record lookups with their own timing,
// independent of the HTTP client's resolver cache.
type Resolver struct {
	client *dns.Client
	server string
}

// NewResolver builds a resolver against the given server ("host:port").
func NewResolver(server string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if server == "" {
		server = "1.1.1.1:53"
	}
	return &Resolver{
		client: &dns.Client{Timeout: timeout},
		server: server,
	}
}

// Lookup resolves the domain's A records and reports the query round trip.
func (r *Resolver) Lookup(ctx context.Context, domain string) ([]string, time.Duration, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeA)
	msg.RecursionDesired = true

	reply, rtt, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, 0, connectionError(domain, err)
	}

	var ips []string
	for _, ans := range reply.Answer {
		if a, ok := ans.(*dns.A); ok {
			ips = append(ips, a.A.String())
		}
	}
	return ips, rtt, nil
}
