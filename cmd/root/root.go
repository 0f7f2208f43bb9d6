package root

import (
	"github.com/spf13/cobra"
)

// Build information, set with -ldflags "-X kairo-keeper/cmd/root.SoftwareVer=..."
var (
	SoftwareVer   = "dev"
	BuildTime     = ""
	BuildTag      = ""
	BuildCommitId = ""
)

var RootCmd = &cobra.Command{
	Use:   "kairo",
	Short: "Tunnel client keeper",
	Long:  `kairo installs the tunnel client, starts and stops tunnels and supervises the client processes`,
}
