package server

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

	"kairo-keeper/cmd/root"
	"kairo-keeper/controllers"
	"kairo-keeper/internal/config"
	"kairo-keeper/internal/logger"
	"kairo-keeper/internal/middleware"
	"kairo-keeper/internal/models"
	"kairo-keeper/internal/rpc"
	"kairo-keeper/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动HTTP服务",
	Long:  `Run the control server: supervises tunnel clients and serves the API on a unix socket and a TCP address`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := startServer(context.Background()); err != nil {
			logger.Fatal(err)
		}
	},
}

/**
 * Run the control server until SIGINT/SIGTERM
 * @param {context.Context} ctx - Parent context
 * @returns {error} Startup or serve error
 * @description
 * - Refuses to start when another server answers on the socket or TCP address
 * - Serves the same router on every listener
 * - On shutdown stops accepting requests, then stops every tunnel
 */
func startServer(ctx context.Context) error {
	cfg := config.App()
	gin.SetMode(cfg.Server.Mode)

	listeners, err := CreateListeners(rpc.Endpoints(cfg))
	if len(listeners) == 0 {
		return fmt.Errorf("no listener could be created: %w", err)
	}

	binaries, err := services.NewBinaryServiceFromConfig(cfg)
	if err != nil {
		closeListeners(listeners)
		return err
	}
	logs := services.NewTunnelLogBuffer(0)
	manager := services.NewTunnelManager(services.TunnelManagerOptions{
		StopTimeout: cfg.Tunnel.StopTimeout,
		IdFlag:      cfg.Tunnel.IdFlag,
		Sink:        logs,
	})
	manager.OnEvent(func(ev models.TunnelEvent) {
		entry := logger.WithFields(logger.Fields{
			"tunnel_id": ev.TunnelId,
			"pid":       ev.Pid,
			"reason":    string(ev.Reason),
		})
		if ev.Error != "" {
			entry.WithField("error", ev.Error).Errorf("Tunnel %s, client may still be running", ev.Kind)
			return
		}
		entry.Infof("Tunnel %s", ev.Kind)
	})

	router := gin.New()
	router.Use(gin.Recovery(), middleware.MetricsMiddleware())
	controllers.Version = root.SoftwareVer
	controllers.NewAPIController(binaries).RegisterRoutes(router)
	controllers.NewTunnelController(manager, logs, binaries).RegisterRoutes(router)
	controllers.NewBinaryController(binaries).RegisterRoutes(router)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	g, gctx := errgroup.WithContext(ctx)
	for _, ln := range listeners {
		ln := ln
		logger.Infof("Kairo server listening on %s://%s", ln.Addr().Network(), ln.Addr().String())
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", ln.Addr(), err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down kairo server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("HTTP shutdown: %v", err)
		}
		manager.StopAll()
		removeSocket(listeners)
		return nil
	})
	return g.Wait()
}

func closeListeners(listeners []net.Listener) {
	for _, ln := range listeners {
		ln.Close()
	}
	removeSocket(listeners)
}

func init() {
	root.RootCmd.AddCommand(serverCmd)
}
