package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsSource provides functions to retrieve current values for gauge metrics.
// Nil functions are skipped.
type StatsSource struct {
	GuildCount       func() int
	GatewayConnected func() bool
	RecordCounts     func() (warnings, notes int, err error)
	AuditReadTxs     func() int
}

// StartCollector launches a goroutine that periodically updates gauge metrics.
// It runs every interval until the context is cancelled.
func StartCollector(ctx context.Context, src StatsSource, interval time.Duration) {
	// Do an initial collection immediately
	collect(src)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect(src)
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("Metrics collector started")
}

func collect(src StatsSource) {
	if src.GuildCount != nil {
		GuildsTotal.Set(float64(src.GuildCount()))
	}
	if src.GatewayConnected != nil {
		if src.GatewayConnected() {
			GatewayConnectionState.Set(1)
		} else {
			GatewayConnectionState.Set(0)
		}
	}
	if src.RecordCounts != nil {
		warnings, notes, err := src.RecordCounts()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to count stored records")
		} else {
			RecordsStored.WithLabelValues("warning").Set(float64(warnings))
			RecordsStored.WithLabelValues("note").Set(float64(notes))
		}
	}
	if src.AuditReadTxs != nil {
		AuditStoreReadTxs.Set(float64(src.AuditReadTxs()))
	}
}
