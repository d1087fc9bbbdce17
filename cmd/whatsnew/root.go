package main

import "github.com/spf13/cobra"

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "whatsnew",
		Short:         "Show release notes to the owner after a client upgrade",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newNotesCommand())
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}
