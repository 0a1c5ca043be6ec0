package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, daysUntil(now, now))
	assert.Equal(t, 1, daysUntil(now, now.Add(time.Hour)), "an hour left still counts as one day")
	assert.Equal(t, 1, daysUntil(now, now.Add(24*time.Hour)))
	assert.Equal(t, 2, daysUntil(now, now.Add(25*time.Hour)))
	assert.Equal(t, 30, daysUntil(now, now.Add(30*24*time.Hour)))
	assert.Equal(t, -1, daysUntil(now, now.Add(-25*time.Hour)), "past expiry goes negative")
}

func TestFetchLoopback(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	p := NewCertificateProbe(2 * time.Second)
	p.port = port

	snap, err := p.Fetch(context.Background(), host)
	require.NoError(t, err)
	assert.Equal(t, host, snap.Domain)
	assert.Len(t, snap.Fingerprint, 64)
	assert.NotEmpty(t, snap.SerialNumber)
	assert.True(t, snap.Valid)
	assert.Positive(t, snap.DaysUntilExpiry)
	assert.True(t, snap.ValidFrom.Before(snap.ValidTo))
}

func TestFetchConnectionRefused(t *testing.T) {
	// Grab a port that nothing listens on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	p := NewCertificateProbe(2 * time.Second)
	p.port = port

	_, err = p.Fetch(context.Background(), "127.0.0.1")
	require.Error(t, err)
	pe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, ErrConnection, pe.Kind)
	assert.Equal(t, "127.0.0.1", pe.Domain)
}

func TestProbeErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := connectionError("example.com", cause)

	assert.ErrorIs(t, err, cause)
	pe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, ErrConnection, pe.Kind)

	_, ok = AsError(errors.New("plain"))
	assert.False(t, ok)

	assert.Contains(t, noCertificateError("example.com").Error(), "no_certificate")
}
