package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/filflo-cli/internal/history"
	"github.com/KaramelBytes/filflo-cli/internal/server"
)

var (
	srvAddr     string
	srvData     string
	srvProvider string
	srvModel    string
	srvMaxTok   int
	srvTemp     float64
	srvHistory  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analytical agent and dashboard metrics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ag, err := newAgent(cmd, srvData, srvProvider, srvModel, srvMaxTok, srvTemp)
		if err != nil {
			return err
		}
		store, closeStore, err := newHistoryStore(cmd.Context(), orDefault(srvHistory, cfg.HistoryBackend))
		if err != nil {
			return err
		}
		defer closeStore()

		if cfg.LogEnv == "production" {
			gin.SetMode(gin.ReleaseMode)
		}
		s := server.New(ag, ag.Data(), store, server.Config{
			RatePerMin: cfg.RateLimitPerMin,
			Logger:     logger,
			Telemetry:  metrics,
		})
		addr := orDefault(srvAddr, cfg.ListenAddr)
		srv := &http.Server{
			Addr:              addr,
			Handler:           s.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			logger.Info("starting HTTP server", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()
		fmt.Printf("✓ Listening on %s\n", addr)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)
		select {
		case err, ok := <-errc:
			if ok {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		case <-quit:
		}

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	},
}

// newHistoryStore opens the conversation backend. The returned func releases it.
func newHistoryStore(ctx context.Context, backend string) (history.Store, func(), error) {
	switch backend {
	case "", "memory":
		return history.NewMemoryStore(cfg.HistoryMaxTurns), func() {}, nil
	case "redis":
		rs, err := history.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			cfg.HistoryMaxTurns, time.Duration(cfg.HistoryTTLHours)*time.Hour)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("redis connected", zap.String("addr", cfg.RedisAddr))
		return rs, func() { _ = rs.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown history backend %q (use memory or redis)", backend)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addAgentFlags(serveCmd, &srvData, &srvProvider, &srvModel, &srvMaxTok, &srvTemp)
	serveCmd.Flags().StringVar(&srvAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&srvHistory, "history", "", "conversation backend: memory|redis (default from config)")
}
