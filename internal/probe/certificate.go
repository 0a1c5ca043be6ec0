package probe

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"math"
	"net"
	"time"

	"github.com/pvieira/domain-sentry/internal/core"
)

// CertificateProbe opens a TLS session to a domain and extracts the leaf
// certificate. Chain verification is deliberately disabled at the transport
// layer so expired or self-signed certificates can still be inspected; the
// alert engine, not the handshake, decides validity.
type CertificateProbe struct {
	timeout time.Duration
	port    string
	now     func() time.Time
}

func NewCertificateProbe(timeout time.Duration) *CertificateProbe {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CertificateProbe{
		timeout: timeout,
		port:    "443",
		now:     time.Now,
	}
}

func (p *CertificateProbe) Fetch(ctx context.Context, domain string) (*core.CertificateSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: p.timeout},
		Config: &tls.Config{
			ServerName:         domain,
			InsecureSkipVerify: true,
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(domain, p.port))
	if err != nil {
		if isTimeout(err) || ctx.Err() == context.DeadlineExceeded {
			return nil, timeoutError(domain, err)
		}
		return nil, connectionError(domain, err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, noCertificateError(domain)
	}

	cert := state.PeerCertificates[0]
	sum := sha256.Sum256(cert.Raw)
	now := p.now()

	snap := &core.CertificateSnapshot{
		Domain:          domain,
		Subject:         cert.Subject.String(),
		Issuer:          cert.Issuer.String(),
		ValidFrom:       cert.NotBefore,
		ValidTo:         cert.NotAfter,
		Fingerprint:     hex.EncodeToString(sum[:]),
		SerialNumber:    cert.SerialNumber.Text(16),
		DNSNames:        cert.DNSNames,
		DaysUntilExpiry: daysUntil(now, cert.NotAfter),
		Valid:           !now.Before(cert.NotBefore) && !now.After(cert.NotAfter),
	}
	return snap, nil
}

// daysUntil rounds up so a certificate expiring in one hour still counts
// as one day remaining, and a certificate past validTo goes negative.
func daysUntil(now, validTo time.Time) int {
	return int(math.Ceil(validTo.Sub(now).Hours() / 24))
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
