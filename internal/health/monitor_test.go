package health_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmerrifield20/hashledger/internal/health"
	"github.com/jmerrifield20/hashledger/internal/ledger"
	"go.uber.org/zap"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// stubVerifier lets tests flip the verification result.
type stubVerifier struct {
	err error
}

func (s *stubVerifier) Verify() error { return s.err }
func (s *stubVerifier) Len() int      { return 4 }

func servingStatus(t *testing.T, hs *grpchealth.Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestCheckNow_validLedgerServing(t *testing.T) {
	hs := grpchealth.NewServer()
	l := ledger.New()
	l.Append("a")
	m := health.New(l, hs, health.Config{}, zap.NewNop())

	if err := m.CheckNow(); err != nil {
		t.Fatalf("CheckNow(): %v", err)
	}
	for _, svc := range []string{health.ServiceName, ""} {
		if got := servingStatus(t, hs, svc); got != healthpb.HealthCheckResponse_SERVING {
			t.Errorf("service %q: got %v, want SERVING", svc, got)
		}
	}
}

func TestCheckNow_brokenLedgerNotServing(t *testing.T) {
	hs := grpchealth.NewServer()
	v := &stubVerifier{err: &ledger.IntegrityError{Position: 2, Err: ledger.ErrDigestMismatch}}
	m := health.New(v, hs, health.Config{}, zap.NewNop())

	if err := m.CheckNow(); !errors.Is(err, ledger.ErrDigestMismatch) {
		t.Fatalf("CheckNow(): got %v, want ErrDigestMismatch", err)
	}
	if got := servingStatus(t, hs, health.ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("got %v, want NOT_SERVING", got)
	}

	v.err = nil
	m.CheckNow()
	if got := servingStatus(t, hs, health.ServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("after recovery: got %v, want SERVING", got)
	}
}

func TestCheckNow_recordsMetrics(t *testing.T) {
	hs := grpchealth.NewServer()
	v := &stubVerifier{}
	m := health.New(v, hs, health.Config{}, zap.NewNop())

	var results []bool
	m.SetMetricsRecorder(func(valid bool) { results = append(results, valid) })

	m.CheckNow()
	v.err = ledger.ErrBrokenLink
	m.CheckNow()

	if len(results) != 2 || !results[0] || results[1] {
		t.Errorf("metrics results: got %v, want [true false]", results)
	}
}

func TestRun_stopsOnCancel(t *testing.T) {
	hs := grpchealth.NewServer()
	m := health.New(&stubVerifier{}, hs, health.Config{CheckInterval: time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := servingStatus(t, hs, health.ServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("got %v, want SERVING", got)
	}
}
