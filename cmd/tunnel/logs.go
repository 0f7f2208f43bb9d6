package tunnel

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logsTail int

var logsCmd = &cobra.Command{
	Use:   "logs <tunnel-id>",
	Short: "Show recent output of a tunnel client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTunnelId(args[0])
		if err != nil {
			return err
		}

		client := newClient()
		defer client.Close()

		lines, err := client.Logs(id, logsTail)
		if err != nil {
			return serverError(err)
		}
		for _, l := range lines {
			fmt.Printf("%s %-5s %s\n", l.Time.Format("15:04:05.000"), l.Stream, l.Text)
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().IntVarP(&logsTail, "lines", "n", 0, "Only show the last N lines")
	tunnelCmd.AddCommand(logsCmd)
}
