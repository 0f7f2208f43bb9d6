package binary

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the installed tunnel client",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newBinaryService()
		if err != nil {
			return err
		}
		bin, ok := svc.Installed()
		if !ok {
			fmt.Println("No tunnel client installed, run `kairo binary install`")
			return nil
		}
		fmt.Printf("Path:    %s\n", bin.AbsolutePath)
		fmt.Printf("Version: %s\n", bin.Version)
		return nil
	},
}

func init() {
	binaryCmd.AddCommand(showCmd)
}
