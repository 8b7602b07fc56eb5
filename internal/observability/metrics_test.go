package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordsLabelledCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRequest("/support/tickets", "GET", 200, 15*time.Millisecond)
	m.RecordRequest("/support/tickets", "GET", 200, 5*time.Millisecond)
	m.RecordError("/support/tickets/:reference/escalate", "POST", "ESCALATION_REJECTED")
	m.RecordEscalation("escalation_on_read")
	m.RecordEvent("ticket_escalated")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/support/tickets", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("POST", "/support/tickets/:reference/escalate", "ESCALATION_REJECTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.escalations.WithLabelValues("escalation_on_read")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticketEvents.WithLabelValues("ticket_escalated")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "INTERNAL")
		m.RecordEscalation("manual")
		m.RecordEvent("ticket_created")
	})
	assert.Nil(t, m.Registry())
}
