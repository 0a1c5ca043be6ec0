package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorstStatus(t *testing.T) {
	assert.Equal(t, StatusUnknown, WorstStatus())
	assert.Equal(t, StatusHealthy, WorstStatus(StatusHealthy, StatusHealthy))
	assert.Equal(t, StatusWarning, WorstStatus(StatusHealthy, StatusWarning))
	assert.Equal(t, StatusCritical, WorstStatus(StatusWarning, StatusCritical, StatusHealthy))
	assert.Equal(t, StatusUnknown, WorstStatus(StatusHealthy, StatusUnknown), "unknown outranks healthy")
	assert.Equal(t, StatusWarning, WorstStatus(StatusUnknown, StatusWarning))
}

func TestExpirySeverity(t *testing.T) {
	assert.Equal(t, SeverityLow, ExpirySeverity(30))
	assert.Equal(t, SeverityLow, ExpirySeverity(15))
	assert.Equal(t, SeverityMedium, ExpirySeverity(14))
	assert.Equal(t, SeverityMedium, ExpirySeverity(8))
	assert.Equal(t, SeverityHigh, ExpirySeverity(7))
	assert.Equal(t, SeverityHigh, ExpirySeverity(2))
	assert.Equal(t, SeverityCritical, ExpirySeverity(1))
	assert.Equal(t, SeverityCritical, ExpirySeverity(0))
}

func TestMoreSevere(t *testing.T) {
	assert.True(t, MoreSevere(SeverityCritical, SeverityHigh))
	assert.True(t, MoreSevere(SeverityMedium, SeverityLow))
	assert.False(t, MoreSevere(SeverityLow, SeverityLow))
	assert.False(t, MoreSevere(SeverityLow, SeverityCritical))
}
