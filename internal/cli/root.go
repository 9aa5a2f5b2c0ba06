// Package cli holds the krishi-mitra commands: the HTTP session host and
// the terminal chat.
package cli

import (
	"github.com/spf13/cobra"

	"krishi-mitra/internal/config"
)

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "krishi-mitra",
		Short: "Krishi Mitra bilingual agriculture assistant",
		Long: `Krishi Mitra answers farmers' questions in English and Telugu.

"serve" hosts chat sessions over HTTP for the web widget; "chat" runs the
same assistant in the terminal.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadEnv()
		},
	}

	root.AddCommand(newServeCommand(), newChatCommand())
	return root
}

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}
