package tunnel

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stopAll bool

var stopCmd = &cobra.Command{
	Use:   "stop [tunnel-id]",
	Short: "Stop a tunnel, or all tunnels with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if stopAll {
			return stopAllTunnels()
		}
		if len(args) == 0 {
			return fmt.Errorf("must specify a tunnel id or --all")
		}
		id, err := parseTunnelId(args[0])
		if err != nil {
			return err
		}
		return stopTunnel(id)
	},
}

func stopTunnel(id int) error {
	client := newClient()
	defer client.Close()

	out, err := client.Stop(id)
	if err != nil {
		return fmt.Errorf("failed to stop tunnel %d: %w", id, serverError(err))
	}
	fmt.Println(out.Message)
	return nil
}

func stopAllTunnels() error {
	client := newClient()
	defer client.Close()

	n, err := client.StopAll()
	if err != nil {
		return fmt.Errorf("failed to stop tunnels: %w", serverError(err))
	}
	fmt.Printf("Stopped %d tunnels\n", n)
	return nil
}

func init() {
	stopCmd.Flags().BoolVarP(&stopAll, "all", "a", false, "Stop every running tunnel")
	tunnelCmd.AddCommand(stopCmd)
}
