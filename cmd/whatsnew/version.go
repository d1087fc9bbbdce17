package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"whatsnew/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := version.Current()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s, %s)\n",
				b.AppName, version.Display(b.Current), version.Precise(b.Current), b.Channel())
			return err
		},
	}
}
