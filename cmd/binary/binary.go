package binary

import (
	"kairo-keeper/cmd/root"
	"kairo-keeper/internal/config"
	"kairo-keeper/services"

	"github.com/spf13/cobra"
)

var binaryCmd = &cobra.Command{
	Use:   "binary",
	Short: "Tunnel client binary operations (install, show, check, remove)",
}

const binaryExample = `  # download, verify and install the latest tunnel client
  kairo binary install

  # compare the installed client with the latest release
  kairo binary check`

func newBinaryService() (*services.BinaryService, error) {
	return services.NewBinaryServiceFromConfig(config.App())
}

func init() {
	root.RootCmd.AddCommand(binaryCmd)

	binaryCmd.Example = binaryExample
}
