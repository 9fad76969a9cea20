// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

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

	"github.com/Thermoquad/bitbrick/internal/httpserver"
	"github.com/Thermoquad/bitbrick/internal/metrics"
	"github.com/Thermoquad/bitbrick/pkg/bitbrick"
	"github.com/Thermoquad/bitbrick/pkg/blocks"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the blocks over HTTP",
	Long: `Run an HTTP bridge that plays the host runtime for the board.

Routes:
  GET  /info             Extension metadata (same as "bitbrick blocks -f json")
  POST /blocks/:opcode   Invoke a block; body is a JSON object of arguments,
                         e.g. {"PORT": 1, "POWER": 50}
  POST /stop             Fire the stop-all event
  GET  /sensors          Read and decode all four sensors
  GET  /state            Current output state and last command frame
  GET  /healthz          Liveness
  GET  /readyz           Readiness (fails once the board link drops)
  GET  /metrics          Prometheus metrics (metrics.path, if metrics.enable)

Every response carries an X-Request-ID header. On shutdown the stop-all event
is fired so the board is left with every output off.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default :8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	board, connInfo, err := OpenBoard(cmd.Context(), cfg.Link)
	if err != nil {
		return err
	}
	defer closeBoard(board)

	reg := metrics.NewRegistry()
	appMetrics := metrics.NewAppMetrics(reg)

	device := bitbrick.NewDevice(board, deviceOptions(appMetrics)...)
	bus := blocks.NewEventBus()
	ext := blocks.New(bus, device, blocks.WithLogger(logger.Named("blocks")))

	done := linkDone(board)
	gin.SetMode(gin.ReleaseMode)
	srv := httpserver.New(cfg.HTTP, cfg.Metrics, httpserver.Deps{
		Extension:      ext,
		Bus:            bus,
		Device:         device,
		Logger:         logger.Named("http"),
		Metrics:        appMetrics,
		MetricsHandler: metrics.Handler(reg),
		Ready: func() bool {
			select {
			case <-done:
				return false
			default:
				return true
			}
		},
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	fmt.Printf("bitbrick - HTTP Bridge\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Listening on %s\n", cfg.HTTP.Addr)
	logger.Info("bridge started", zap.String("addr", cfg.HTTP.Addr), zap.String("link", connInfo))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	bus.Emit(blocks.ProjectStopAll)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
