package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/confluence/backend/internal/api"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 실시간 가격 피드 시작 (WS / REST 폴러, 설정된 경우)
- --with-scheduler 지정 시 스캔/만료 스케줄러도 함께 실행

Endpoints:
  GET  /health
  GET  /metrics
  GET  /api/analysis/{symbol}?fresh=true
  GET  /api/killzone
  GET  /api/signals?status=&symbol=&open=&limit=
  POST /api/signals                      {symbol, action:"generate"}
  POST /api/signals/{symbol}/generate
  GET  /api/signals/{id}
  GET  /api/signals/{id}/size?user=
  GET  /api/performance?period=1M
  GET  /api/settings/{userID}
  PUT  /api/settings/{userID}
  POST /api/prices
  GET  /api/prices/stats

Example:
  go run ./cmd/confluence api
  go run ./cmd/confluence api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "스케줄러를 같은 프로세스에서 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Confluence API Server ===")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	// Realtime feed
	a.attachFeeds()
	a.feed.Start(ctx)
	defer a.feed.Stop()

	if apiWithScheduler {
		sched, err := a.newScheduler()
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	server := api.New(a.cfg, a.log, a.router())
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
