package command

// root.go defines the root command for the sockethub CLI.
// Global flags shared by all subcommands live here.

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string // hub server websocket URL
	token     string // authentication token (jwt), optional
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hub-cli",
	Short: "hub-cli - sockethub command line client",
	Long: `hub-cli talks to a sockethub server over its typed-message protocol.
It can:
- chat interactively on the broadcast channel
- send a single typed message and exit

Use "hub-cli command -h" to see the flags of each command.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "ws://localhost:8084/ws", "hub server websocket URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "JWT bearer token, if the server requires auth")
}
