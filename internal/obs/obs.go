// Package obs wires the domain's operation log hook to zap and prometheus.
package obs

import (
	"context"

	"github.com/loadmarket/credits/pkg/credits"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const (
	labelOperation = "operation"
	labelType      = "type"
	labelStatus    = "status"
	labelKind      = "kind"
	labelTier      = "tier"

	statusOK    = "ok"
	statusError = "error"
)

// Metrics holds the process registry and the credits counters.
type Metrics struct {
	registry         *prometheus.Registry
	operations       *prometheus.CounterVec
	transactions     *prometheus.CounterVec
	premiumPurchases *prometheus.CounterVec
}

// NewMetrics builds a registry with runtime collectors and credits counters.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_operations_total",
		Help: "Credits operations by operation name and outcome.",
	}, []string{labelOperation, labelStatus})
	transactions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_transactions_total",
		Help: "Committed and failed ledger transactions by type.",
	}, []string{labelType, labelStatus})
	premiumPurchases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_premium_purchases_total",
		Help: "Premium placement purchases by content kind and tier.",
	}, []string{labelKind, labelTier, labelStatus})
	registry.MustRegister(operations, transactions, premiumPurchases)

	return &Metrics{
		registry:         registry,
		operations:       operations,
		transactions:     transactions,
		premiumPurchases: premiumPurchases,
	}
}

// Registry exposes the registry for the /metrics handler.
func (metrics *Metrics) Registry() *prometheus.Registry {
	return metrics.registry
}

// OperationRecorder implements credits.OperationLogger: every domain
// operation is logged through zap and counted in prometheus.
type OperationRecorder struct {
	logger  *zap.Logger
	metrics *Metrics
}

// NewOperationRecorder wires a recorder; metrics may be nil.
func NewOperationRecorder(logger *zap.Logger, metrics *Metrics) *OperationRecorder {
	return &OperationRecorder{logger: logger, metrics: metrics}
}

// LogOperation records one domain operation outcome.
func (recorder *OperationRecorder) LogOperation(_ context.Context, entry credits.OperationLog) {
	status := entry.Status
	if status == "" {
		status = statusOK
		if entry.Error != nil {
			status = statusError
		}
	}

	if recorder.metrics != nil {
		recorder.metrics.operations.WithLabelValues(entry.Operation, status).Inc()
		if entry.TransactionType != "" {
			recorder.metrics.transactions.WithLabelValues(entry.TransactionType.String(), status).Inc()
		}
		if entry.PremiumType != "" {
			recorder.metrics.premiumPurchases.WithLabelValues(entry.PostKind.String(), entry.PremiumType.String(), status).Inc()
		}
	}

	if recorder.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("user_id", entry.UserID.String()),
		zap.String("status", status),
	}
	if entry.TransactionType != "" {
		fields = append(fields, zap.String("transaction_type", entry.TransactionType.String()))
	}
	if entry.PostKind != "" {
		fields = append(fields, zap.String("post_kind", entry.PostKind.String()), zap.Int64("post_id", entry.PostID))
	}
	if entry.PremiumType != "" {
		fields = append(fields, zap.String("premium_type", entry.PremiumType.String()))
	}
	if entry.Amount != 0 {
		fields = append(fields, zap.Int64("amount", entry.Amount))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		recorder.logger.Warn("credits operation failed", fields...)
		return
	}
	recorder.logger.Info("credits operation", fields...)
}
