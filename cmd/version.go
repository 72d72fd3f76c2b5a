package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"sqlgate/internal/transport"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sqlgate version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Printf("%s %s\n", transport.ServerName, transport.ServerVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
