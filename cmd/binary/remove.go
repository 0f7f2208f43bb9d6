package binary

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the installed tunnel client",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newBinaryService()
		if err != nil {
			return err
		}
		if err := svc.Remove(); err != nil {
			return err
		}
		fmt.Println("Tunnel client removed")
		return nil
	},
}

func init() {
	binaryCmd.AddCommand(removeCmd)
}
