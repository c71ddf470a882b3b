package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/hashledger/internal/auth"
	"github.com/jmerrifield20/hashledger/internal/health"
	"github.com/jmerrifield20/hashledger/internal/ledger"
	"github.com/jmerrifield20/hashledger/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpchealth "google.golang.org/grpc/health"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ledger over HTTP with a gRPC health endpoint",
	Long: `Serve starts a fresh in-memory ledger and exposes it over HTTP:

  GET  /api/v1/ledger                     length, root digest, validity
  GET  /api/v1/ledger/verify              full-chain verification
  GET  /api/v1/ledger/records             every record
  GET  /api/v1/ledger/records/:position   one record
  POST /api/v1/ledger/records             append {"payload": "..."}

A gRPC server carries the standard health service, whose status tracks
ledger integrity; /healthz reflects it over HTTP. The ledger is discarded
on exit.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := ledger.New(ledger.WithLogger(logger))
	server.SetRecordsGauge(l.Len())
	logger.Info("ledger initialised", zap.String("genesis_digest", l.Root()))

	// ── Writer auth ───────────────────────────────────────────────────────────
	var tokens *auth.TokenIssuer
	if secret := viper.GetString("auth.writer_secret"); secret != "" {
		tokens = auth.NewTokenIssuer([]byte(secret), viper.GetString("auth.issuer"), viper.GetDuration("auth.token_ttl"))
	} else {
		logger.Warn("auth.writer_secret is empty; appends are open to any client")
	}

	// ── gRPC health ───────────────────────────────────────────────────────────
	grpcPort := viper.GetInt("grpc.port")
	hs := grpchealth.NewServer()
	grpcSrv := server.NewGRPCServer(hs, logger)

	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", grpcPort))
	if err != nil {
		return fmt.Errorf("gRPC listen on :%d: %w", grpcPort, err)
	}

	monitor := health.New(l, hs, health.Config{
		CheckInterval: viper.GetDuration("health.check_interval"),
	}, logger)
	monitor.SetMetricsRecorder(server.RecordIntegrityCheck)

	conn, err := grpc.NewClient(fmt.Sprintf("localhost:%d", grpcPort),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return fmt.Errorf("dial local gRPC: %w", err)
	}
	defer conn.Close()

	// ── HTTP ──────────────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(ctx, server.RouterConfig{
		CORSOrigins:  viper.GetStringSlice("http.cors_origins"),
		RateLimitRPS: viper.GetInt("http.rate_limit_rps"),
		Healthz:      server.NewHealthGateway(conn),
	}, server.NewLedgerHandler(l, tokens, logger), logger)

	httpPort := viper.GetInt("http.port")
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Start ─────────────────────────────────────────────────────────────────
	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC health listening", zap.Int("port", grpcPort))
		if err := grpcSrv.Serve(grpcLis); err != nil {
			errCh <- fmt.Errorf("gRPC serve: %w", err)
		}
	}()
	go func() {
		logger.Info("HTTP listening", zap.Int("port", httpPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP serve: %w", err)
		}
	}()
	go monitor.Run(ctx)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("server failed", zap.Error(runErr))
	}
	logger.Info("shutting down...")
	stop()

	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	hs.Shutdown()
	grpcSrv.GracefulStop()

	logger.Info("stopped", zap.Int("records", l.Len()), zap.String("root", l.Root()))
	return runErr
}
