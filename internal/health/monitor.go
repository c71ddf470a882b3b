package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jmerrifield20/hashledger/internal/ledger"
	"go.uber.org/zap"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported for the ledger.
const ServiceName = "hashledger.Ledger"

// Config holds integrity monitor configuration.
type Config struct {
	CheckInterval time.Duration
}

// Verifier is the subset of the ledger the monitor needs.
type Verifier interface {
	Verify() error
	Len() int
}

// MetricsRecordFunc is an optional callback for recording check results.
type MetricsRecordFunc func(valid bool)

// IntegrityMonitor periodically verifies the ledger and publishes the result
// as gRPC health status: SERVING when intact, NOT_SERVING when broken.
type IntegrityMonitor struct {
	ledger    Verifier
	health    *grpchealth.Server
	cfg       Config
	onMetrics MetricsRecordFunc
	logger    *zap.Logger

	mu        sync.Mutex
	lastValid *bool
}

// New creates a new IntegrityMonitor reporting to hs.
func New(l Verifier, hs *grpchealth.Server, cfg Config, logger *zap.Logger) *IntegrityMonitor {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	return &IntegrityMonitor{
		ledger: l,
		health: hs,
		cfg:    cfg,
		logger: logger,
	}
}

// SetMetricsRecorder configures the metrics callback.
func (m *IntegrityMonitor) SetMetricsRecorder(fn MetricsRecordFunc) {
	m.onMetrics = fn
}

// Run checks once immediately, then every CheckInterval until ctx is done.
func (m *IntegrityMonitor) Run(ctx context.Context) {
	m.CheckNow()

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.CheckNow()
		case <-ctx.Done():
			return
		}
	}
}

// CheckNow verifies the ledger, updates the health status and returns the
// verification error, if any.
func (m *IntegrityMonitor) CheckNow() error {
	err := m.ledger.Verify()
	valid := err == nil

	status := healthpb.HealthCheckResponse_SERVING
	if !valid {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	m.health.SetServingStatus(ServiceName, status)
	m.health.SetServingStatus("", status)

	if m.onMetrics != nil {
		m.onMetrics(valid)
	}

	m.mu.Lock()
	changed := m.lastValid == nil || *m.lastValid != valid
	m.lastValid = &valid
	m.mu.Unlock()

	if changed {
		if valid {
			m.logger.Info("ledger integrity verified", zap.Int("records", m.ledger.Len()))
		} else {
			fields := []zap.Field{zap.Error(err)}
			var ie *ledger.IntegrityError
			if errors.As(err, &ie) {
				fields = append(fields, zap.Uint64("position", ie.Position))
			}
			m.logger.Error("ledger integrity check FAILED", fields...)
		}
	}
	return err
}
