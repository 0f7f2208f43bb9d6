package auth

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"kairo-keeper/cmd/root"
	"kairo-keeper/internal/keyring"

	"github.com/spf13/cobra"
)

var loginToken string

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the tunnel token stored in the OS keyring",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the tunnel token",
	RunE: func(cmd *cobra.Command, args []string) error {
		token := loginToken
		if token == "" {
			fmt.Print("Token: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read token: %w", err)
			}
			token = strings.TrimSpace(line)
		}
		if token == "" {
			return errors.New("token must not be empty")
		}
		if err := keyring.SetToken(token); err != nil {
			return err
		}
		fmt.Println("Token stored")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored tunnel token",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := keyring.DeleteToken()
		if errors.Is(err, keyring.ErrNoToken) {
			fmt.Println("No token stored")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println("Token removed")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a token is stored",
	Run: func(cmd *cobra.Command, args []string) {
		if keyring.HasToken() {
			fmt.Println("A token is stored in the keyring")
		} else {
			fmt.Println("No token stored")
		}
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginToken, "token", "u", "", "Token to store (read from stdin when omitted)")
	authCmd.AddCommand(loginCmd, logoutCmd, statusCmd)
	root.RootCmd.AddCommand(authCmd)
}
