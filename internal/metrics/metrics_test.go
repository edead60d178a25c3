package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCommand(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ban", "ban"},
		{"BAN", "ban"},
		{" purge ", "purge"},
		{"clearwarns", "clearwarns"},
		{"logchannel", "logchannel"},
		{"slowmode", "other"},
		{"", "other"},
		{"ban; drop table", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeCommand(tt.input))
		})
	}
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestCollect(t *testing.T) {
	collect(StatsSource{
		GuildCount:       func() int { return 7 },
		GatewayConnected: func() bool { return true },
	})
	assert.Equal(t, float64(7), gaugeValue(t, GuildsTotal))
	assert.Equal(t, float64(1), gaugeValue(t, GatewayConnectionState))

	collect(StatsSource{GatewayConnected: func() bool { return false }})
	assert.Equal(t, float64(7), gaugeValue(t, GuildsTotal))
	assert.Equal(t, float64(0), gaugeValue(t, GatewayConnectionState))

	collect(StatsSource{
		RecordCounts: func() (int, int, error) { return 3, 4, nil },
		AuditReadTxs: func() int { return 2 },
	})
	assert.Equal(t, float64(3), gaugeValue(t, RecordsStored.WithLabelValues("warning")))
	assert.Equal(t, float64(4), gaugeValue(t, RecordsStored.WithLabelValues("note")))
	assert.Equal(t, float64(2), gaugeValue(t, AuditStoreReadTxs))

	// A failed count keeps the last value
	collect(StatsSource{RecordCounts: func() (int, int, error) { return 0, 0, errors.New("db closed") }})
	assert.Equal(t, float64(3), gaugeValue(t, RecordsStored.WithLabelValues("warning")))
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/metrics", NormalizePath("/metrics"))
	assert.Equal(t, "/healthz", NormalizePath("/healthz"))
	assert.Equal(t, "other", NormalizePath("/wp-login.php"))
	assert.Equal(t, "other", NormalizePath("/"))
}
