package binary

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare the installed tunnel client with the latest release",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newBinaryService()
		if err != nil {
			return err
		}
		check, err := svc.Check(context.Background())
		if err != nil {
			return err
		}

		installed := check.Installed
		if installed == "" {
			installed = "(none)"
		}
		fmt.Printf("Installed: %s\n", installed)
		fmt.Printf("Latest:    %s\n", check.Latest)
		if check.Upgrade {
			fmt.Println("An update is available, run `kairo binary install --force`")
		} else {
			fmt.Println("Up to date")
		}
		return nil
	},
}

func init() {
	binaryCmd.AddCommand(checkCmd)
}
