package tunnel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kairo-keeper/internal/config"
	"kairo-keeper/internal/keyring"
	"kairo-keeper/internal/logger"
	"kairo-keeper/internal/models"
	"kairo-keeper/internal/rpc"
	"kairo-keeper/internal/utils"
	"kairo-keeper/services"

	"github.com/spf13/cobra"
)

var (
	startToken      string
	startForeground bool
)

var startCmd = &cobra.Command{
	Use:   "start <tunnel-id>",
	Short: "Start tunnel connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTunnelId(args[0])
		if err != nil {
			return err
		}
		token, err := keyring.ResolveToken(startToken)
		if err != nil {
			return err
		}

		if !startForeground {
			// 尝试使用 RPC 客户端连接 kairo 服务器
			done, err := tryStartTunnelViaRPC(id, token)
			if done || err != nil {
				return err
			}
			fmt.Println("Kairo server is not running, running the tunnel in the foreground")
		}
		return runForeground(cmd.Context(), id, token)
	},
}

/**
 * Try to start a tunnel through the kairo server
 * @param {int} id - Tunnel id
 * @param {string} token - Authentication token
 * @returns {bool} true when the server handled the request
 * @returns {error} Error reported by the server
 * @description
 * - A server that cannot be reached yields (false, nil) so the caller can fall back
 */
func tryStartTunnelViaRPC(id int, token string) (bool, error) {
	client := newClient()
	defer client.Close()

	out, err := client.Start(id, token)
	if errors.Is(err, rpc.ErrServerUnavailable) {
		logger.Debugf("Failed to call kairo API: %v", err)
		return false, nil
	}
	if err != nil {
		return true, fmt.Errorf("failed to start tunnel %d: %w", id, err)
	}
	fmt.Printf("Successfully started tunnel %d via kairo server (PID: %d)\n", out.TunnelId, out.Pid)
	return true, nil
}

// consoleSink keeps and logs tunnel output, and echoes it to the terminal
type consoleSink struct {
	buf *services.TunnelLogBuffer
}

func (s consoleSink) WriteLine(tunnelId int, stream models.LogStream, line string) {
	s.buf.WriteLine(tunnelId, stream, line)
	if stream == models.StreamError {
		fmt.Fprintf(os.Stderr, "[%d] %s\n", tunnelId, line)
	} else {
		fmt.Printf("[%d] %s\n", tunnelId, line)
	}
}

/**
 * Supervise one tunnel in this process until Ctrl+C or client exit
 * @param {context.Context} ctx - Parent context
 * @param {int} id - Tunnel id
 * @param {string} token - Authentication token
 * @returns {error} Acquisition or start error, or an error when the client exits by itself
 */
func runForeground(ctx context.Context, id int, token string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.App()
	binaries, err := services.NewBinaryServiceFromConfig(cfg)
	if err != nil {
		return err
	}
	bin, err := binaries.Ensure(ctx, utils.PrintStatus, utils.PrintProgress)
	if err != nil {
		return err
	}

	manager := services.NewTunnelManager(services.TunnelManagerOptions{
		StopTimeout: cfg.Tunnel.StopTimeout,
		IdFlag:      cfg.Tunnel.IdFlag,
		Sink:        consoleSink{buf: services.NewTunnelLogBuffer(0)},
	})
	exited := make(chan struct{}, 1)
	manager.OnExit(func(int) {
		select {
		case exited <- struct{}{}:
		default:
		}
	})

	pid, err := manager.Start(id, bin.AbsolutePath, token)
	if err != nil {
		return err
	}
	fmt.Printf("Tunnel %d running (PID: %d), press Ctrl+C to stop\n", id, pid)

	select {
	case <-ctx.Done():
		manager.Stop(id)
		fmt.Printf("Tunnel %d stopped\n", id)
		return nil
	case <-exited:
		return fmt.Errorf("tunnel client %d exited", id)
	}
}

func init() {
	startCmd.Flags().SortFlags = false
	startCmd.Flags().StringVarP(&startToken, "token", "u", "", "Authentication token (default: KAIRO_TOKEN or keyring)")
	startCmd.Flags().BoolVarP(&startForeground, "foreground", "f", false, "Supervise the tunnel in this process instead of the server")

	tunnelCmd.AddCommand(startCmd)
}
