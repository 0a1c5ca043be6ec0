package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/pvieira/domain-sentry/internal/core"
)

const maxBodyBytes = 5 * 1024 * 1024

// PerformanceProbe times an HTTP round trip and derives latency splits
// from httptrace checkpoints. DNS records and an explicit lookup timing
// come from the resolver so the split survives connection reuse.
type PerformanceProbe struct {
	timeout  time.Duration
	resolver *Resolver
	now      func() time.Time
}

func NewPerformanceProbe(timeout time.Duration, resolver *Resolver) *PerformanceProbe {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PerformanceProbe{
		timeout:  timeout,
		resolver: resolver,
		now:      time.Now,
	}
}

// Measure performs one GET against the domain. On transport failure the
// returned metrics carry a zero ResponseTime, which marks the sample as
// failed everywhere downstream, and the probe error is returned alongside.
func (p *PerformanceProbe) Measure(ctx context.Context, domain, location string) (*core.PerformanceMetrics, error) {
	metrics := &core.PerformanceMetrics{
		Domain:    domain,
		Timestamp: p.now(),
		Location:  location,
	}

	if p.resolver != nil {
		if ips, rtt, err := p.resolver.Lookup(ctx, domain); err == nil {
			metrics.ResolvedIPs = ips
			metrics.DNSLookupTime = float64(rtt.Milliseconds())
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	redirects := 0
	client := &http.Client{
		Timeout: p.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			redirects = len(via)
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			return nil
		},
	}

	// Monotonic checkpoints; every split is the gap to the previous one so
	// the four splits sum exactly to TotalTime.
	var start, dnsDone, connDone, firstByte time.Time

	trace := &httptrace.ClientTrace{
		DNSDone: func(httptrace.DNSDoneInfo) { dnsDone = time.Now() },
		GotConn: func(httptrace.GotConnInfo) { connDone = time.Now() },
		GotFirstResponseByte: func() {
			if firstByte.IsZero() {
				firstByte = time.Now()
			}
		},
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodGet, "https://"+domain, nil)
	if err != nil {
		return metrics, connectionError(domain, err)
	}
	req.Header.Set("User-Agent", "domain-sentry/1.0")

	start = time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return metrics, timeoutError(domain, err)
		}
		return metrics, connectionError(domain, err)
	}
	defer resp.Body.Close()

	size, _ := io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	end := time.Now()

	if dnsDone.IsZero() || dnsDone.Before(start) {
		dnsDone = start
	}
	if connDone.IsZero() || connDone.Before(dnsDone) {
		connDone = dnsDone
	}
	if firstByte.IsZero() || firstByte.Before(connDone) {
		firstByte = connDone
	}

	if metrics.DNSLookupTime == 0 {
		metrics.DNSLookupTime = millis(dnsDone.Sub(start))
	}
	metrics.ConnectionTime = millis(connDone.Sub(dnsDone))
	metrics.FirstByteTime = millis(firstByte.Sub(connDone))
	metrics.DownloadTime = millis(end.Sub(firstByte))
	metrics.TotalTime = metrics.DNSLookupTime + metrics.ConnectionTime + metrics.FirstByteTime + metrics.DownloadTime
	metrics.ResponseTime = millis(end.Sub(start))
	if metrics.ResponseTime == 0 {
		// Sub-millisecond round trips still count as successful samples.
		metrics.ResponseTime = 1
	}
	metrics.HTTPStatus = resp.StatusCode
	metrics.ContentSize = size
	metrics.RedirectCount = redirects

	return metrics, nil
}

// MeasureMany runs one measurement per location label. Measurements are
// independent and run concurrently; result order preserves input order.
func (p *PerformanceProbe) MeasureMany(ctx context.Context, domain string, locations []string) []*core.PerformanceMetrics {
	results := make([]*core.PerformanceMetrics, len(locations))
	done := make(chan int, len(locations))

	for i, loc := range locations {
		go func(i int, loc string) {
			m, _ := p.Measure(ctx, domain, loc)
			results[i] = m
			done <- i
		}(i, loc)
	}
	for range locations {
		<-done
	}
	return results
}

// AverageMetrics computes the arithmetic mean of every numeric field
// across the sample. Counts include failed measurements.
func AverageMetrics(results []*core.PerformanceMetrics) *core.PerformanceMetrics {
	if len(results) == 0 {
		return nil
	}
	avg := &core.PerformanceMetrics{
		Domain:    results[0].Domain,
		Timestamp: results[0].Timestamp,
		Location:  "average",
	}
	n := float64(len(results))
	var size int64
	for _, m := range results {
		avg.ResponseTime += m.ResponseTime
		avg.FirstByteTime += m.FirstByteTime
		avg.DNSLookupTime += m.DNSLookupTime
		avg.ConnectionTime += m.ConnectionTime
		avg.DownloadTime += m.DownloadTime
		avg.TotalTime += m.TotalTime
		size += m.ContentSize
		avg.RedirectCount += m.RedirectCount
	}
	avg.ResponseTime /= n
	avg.FirstByteTime /= n
	avg.DNSLookupTime /= n
	avg.ConnectionTime /= n
	avg.DownloadTime /= n
	avg.TotalTime /= n
	avg.ContentSize = size / int64(len(results))
	avg.RedirectCount = avg.RedirectCount / len(results)
	return avg
}

// FastestLocation returns the location with the lowest positive response
// time. Failed samples (ResponseTime <= 0) never win; ties go to the
// earlier sample in input order. Empty string means no successful sample.
func FastestLocation(results []*core.PerformanceMetrics) string {
	fastest := ""
	best := 0.0
	for _, m := range results {
		if m == nil || m.ResponseTime <= 0 {
			continue
		}
		if fastest == "" || m.ResponseTime < best {
			fastest = m.Location
			best = m.ResponseTime
		}
	}
	return fastest
}

func millis(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
