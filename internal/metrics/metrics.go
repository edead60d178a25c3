package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Command metrics
var (
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gavel_commands_total",
		Help: "Total number of command invocations by outcome",
	}, []string{"command", "outcome"})

	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gavel_command_duration_seconds",
		Help:    "Command handling duration in seconds, including the confirmation window",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"command"})

	DenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gavel_denials_total",
		Help: "Total number of actions refused by the hierarchy validator",
	}, []string{"command", "reason"})
)

// Confirmation metrics
var (
	ConfirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gavel_confirmations_total",
		Help: "Total number of confirmation prompts by terminal state",
	}, []string{"state"})

	ConfirmationsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gavel_confirmations_pending",
		Help: "Number of confirmation prompts awaiting a response",
	})
)

// Purge metrics
var (
	PurgeDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gavel_purge_deleted_total",
		Help: "Total number of messages removed by batched deletes",
	})

	PurgeSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gavel_purge_skipped_total",
		Help: "Total number of matching messages passed over for exceeding the age cutoff",
	})

	PurgeChannelErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gavel_purge_channel_errors_total",
		Help: "Total number of channels that failed during a purge",
	})
)

// Gateway and activity-log metrics
var (
	GatewayConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gavel_gateway_connection_state",
		Help: "Gateway connection state (1=connected, 0=disconnected)",
	})

	GuildsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gavel_guilds_total",
		Help: "Number of guilds the bot is a member of",
	})

	ActivityLogsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gavel_activity_logs_total",
		Help: "Total number of activity events routed to log channels",
	}, []string{"category", "status"})

	RecordsStored = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gavel_records_stored",
		Help: "Number of durable moderation records by kind",
	}, []string{"kind"})

	AuditStoreReadTxs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gavel_audit_store_open_read_txs",
		Help: "Number of open read transactions on the audit store",
	})

	StoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gavel_store_errors_total",
		Help: "Total number of durable store failures",
	}, []string{"operation"})
)

// knownCommands bounds the command label space
var knownCommands = map[string]bool{
	"ban": true, "unban": true, "kick": true, "mute": true, "unmute": true,
	"clear": true, "purge": true, "massban": true,
	"warn": true, "warnings": true, "delwarn": true, "clearwarns": true,
	"note": true, "notes": true, "delnote": true, "clearnotes": true,
	"nickname": true, "logchannel": true, "modlog": true, "ping": true,
}

// NormalizeCommand maps a command name to a bounded label value.
// Unknown names collapse into "other".
func NormalizeCommand(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if knownCommands[name] {
		return name
	}
	return "other"
}

// Ops endpoint metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gavel_http_requests_total",
		Help: "Total number of requests to the ops endpoint",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gavel_http_request_duration_seconds",
		Help:    "Ops endpoint request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

var knownPaths = map[string]bool{
	"/metrics": true,
	"/healthz": true,
}

// NormalizePath maps a request path to a bounded label value
func NormalizePath(path string) string {
	if knownPaths[path] {
		return path
	}
	return "other"
}
