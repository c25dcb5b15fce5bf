package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login [code|url]",
	Short: "Authenticate with GOG. You can paste either the full redirect url or just the code value.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		provided := ""
		if len(args) > 0 {
			provided = args[0]
		}
		acquireToken(cmd.Context(), provided)
	},
}
