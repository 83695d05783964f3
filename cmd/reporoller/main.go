package main

import (
	"fmt"
	"os"

	"github.com/reporoller/reporoller/pkg/constants"
	"github.com/spf13/cobra"
)

// version is set by the release build; left as "dev" for local builds.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     constants.CLIExtensionPrefix,
	Short:   "Create and provision repositories on the Hub from a layered organisational policy",
	Version: version,
	Long: `RepoRoller automates the creation and initial configuration of
source-code repositories hosted on a remote code-hosting service.

Common Tasks:
  reporoller create --org acme --name widgets --strategy empty
  reporoller create --org acme --name widgets --strategy from_template --template-repo svc-template
  reporoller create --org acme --name widgets --strategy custom_initialised --readme --license MIT

For detailed help on any command, use:
  reporoller [command] --help`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output showing detailed information")
	rootCmd.SetOut(os.Stderr)
	rootCmd.AddCommand(createCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
