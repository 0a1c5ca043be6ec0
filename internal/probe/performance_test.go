package probe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvieira/domain-sentry/internal/core"
)

func sample(location string, responseTime float64) *core.PerformanceMetrics {
	return &core.PerformanceMetrics{
		Domain:       "example.com",
		Location:     location,
		ResponseTime: responseTime,
		TotalTime:    responseTime,
		ContentSize:  1000,
	}
}

func TestAverageMetrics(t *testing.T) {
	avg := AverageMetrics([]*core.PerformanceMetrics{
		sample("us-east", 100),
		sample("eu-west", 200),
		sample("ap-south", 300),
	})

	require.NotNil(t, avg)
	assert.Equal(t, "average", avg.Location)
	assert.Equal(t, "example.com", avg.Domain)
	assert.InDelta(t, 200, avg.ResponseTime, 0.001)
	assert.InDelta(t, 200, avg.TotalTime, 0.001)
	assert.Equal(t, int64(1000), avg.ContentSize)
}

func TestAverageMetricsEmpty(t *testing.T) {
	assert.Nil(t, AverageMetrics(nil))
}

func TestFastestLocation(t *testing.T) {
	assert.Equal(t, "eu-west", FastestLocation([]*core.PerformanceMetrics{
		sample("us-east", 300),
		sample("eu-west", 120),
		sample("ap-south", 250),
	}))
}

func TestFastestLocationSkipsFailedSamples(t *testing.T) {
	assert.Equal(t, "ap-south", FastestLocation([]*core.PerformanceMetrics{
		sample("us-east", 0), // failed sample
		nil,
		sample("ap-south", 400),
	}))
	assert.Equal(t, "", FastestLocation([]*core.PerformanceMetrics{sample("us-east", 0)}))
}

func TestFastestLocationTieGoesToFirst(t *testing.T) {
	assert.Equal(t, "us-east", FastestLocation([]*core.PerformanceMetrics{
		sample("us-east", 150),
		sample("eu-west", 150),
	}))
}

func TestMeasureManyPreservesLocationOrder(t *testing.T) {
	// A loopback port with no listener makes every measurement fail fast;
	// failed samples still come back one per location, in input order.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	p := NewPerformanceProbe(2*time.Second, nil)
	locations := []string{"us-east", "eu-west", "ap-south", "sa-east"}

	results := p.MeasureMany(context.Background(), addr, locations)

	require.Len(t, results, len(locations))
	for i, m := range results {
		require.NotNil(t, m, "location %s", locations[i])
		assert.Equal(t, locations[i], m.Location)
		assert.Equal(t, addr, m.Domain)
		assert.Zero(t, m.ResponseTime, "refused connections are failed samples")
	}
}

func TestMillis(t *testing.T) {
	assert.Equal(t, 1500.0, millis(1500*time.Millisecond))
	assert.Equal(t, 0.5, millis(500*time.Microsecond))
	assert.Equal(t, 0.0, millis(-time.Second))
}
