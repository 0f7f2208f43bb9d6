package binary

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kairo-keeper/internal/utils"

	"github.com/spf13/cobra"
)

var installForce bool

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download, verify and install the latest tunnel client",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := newBinaryService()
		if err != nil {
			return err
		}
		if !installForce {
			if bin, ok := svc.Installed(); ok {
				fmt.Printf("Tunnel client %s is already installed at %s (use --force to reinstall)\n", bin.Version, bin.AbsolutePath)
				return nil
			}
		}

		bin, err := svc.Acquire(ctx, utils.PrintStatus, utils.PrintProgress)
		if err != nil {
			return err
		}
		for _, w := range bin.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		return nil
	},
}

func init() {
	installCmd.Flags().BoolVarP(&installForce, "force", "f", false, "Reinstall even if a client is installed")
	binaryCmd.AddCommand(installCmd)
}
