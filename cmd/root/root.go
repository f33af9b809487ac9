// Package root contains the root command for the application.
package root

import (
	"github.com/spf13/cobra"
)

var (
	// ConfigPath is the settings file path shared by all commands; empty
	// means search the standard locations.
	ConfigPath string

	// Cmd is the root command.
	Cmd = &cobra.Command{
		Use:   "tally",
		Short: "Classify bank-exported CSV transactions with user-authored rules.",
		Long: `tally turns bank-exported CSV rows into classified financial events:
a category, subcategory, merchant and tags, derived from rule files you
author instead of hard-coded logic.`,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
)

// Init initializes the root command's persistent flags.
func Init() {
	Cmd.PersistentFlags().StringVarP(&ConfigPath, "config", "c", "", "Path to settings.yaml")
}
