package tunnel

import (
	"errors"
	"fmt"
	"strconv"

	"kairo-keeper/cmd/root"
	"kairo-keeper/internal/rpc"

	"github.com/spf13/cobra"
)

var tunnelCmd = &cobra.Command{
	Use:   "tunnel",
	Short: "Tunnel operations (list, start/stop etc.)",
	Long:  `Tunnel operations (list, start/stop etc.)`,
}

const tunnelExample = `  # start tunnel 42 through the running kairo server
  kairo tunnel start 42

  # run tunnel 42 in the foreground, without a server
  kairo tunnel start 42 --foreground

  # show the last 50 output lines of tunnel 42
  kairo tunnel logs 42 -n 50`

func parseTunnelId(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid tunnel id %q: must be a positive integer", arg)
	}
	return id, nil
}

// serverError adds a hint when no server answered
func serverError(err error) error {
	if errors.Is(err, rpc.ErrServerUnavailable) {
		return fmt.Errorf("%w, start it with `kairo server`", err)
	}
	return err
}

func newClient() *rpc.TunnelClient {
	return rpc.NewTunnelClient(nil)
}

func init() {
	root.RootCmd.AddCommand(tunnelCmd)

	tunnelCmd.Example = tunnelExample
}
