package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"whatsnew/internal/changelog"
	"whatsnew/internal/version"
)

func newNotesCommand() *cobra.Command {
	var (
		since   string
		beta    bool
		current string
	)

	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Preview the bundled release notes",
		Long: "Without --since, lists the bundled beta notes. With --since, prints the\n" +
			"notices an upgrade from that version would show when the remote\n" +
			"changelog returns nothing.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := changelog.DefaultCatalog()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if strings.TrimSpace(since) == "" {
				rows := make([][]string, 0, catalog.Len())
				for _, n := range catalog.Notes() {
					rows = append(rows, []string{
						version.Display(n.Threshold),
						strconv.Itoa(int(n.Threshold)),
						strconv.Itoa(strings.Count(strings.TrimSpace(n.Body), "\n") + 1),
					})
				}
				_, err := fmt.Fprintln(out, renderTable([]string{"Version", "Packed", "Items"}, rows))
				return err
			}

			old, err := version.Parse(since)
			if err != nil {
				return fmt.Errorf("--since: %w", err)
			}
			b := version.Current()
			if current != "" {
				if b.Current, err = version.Parse(current); err != nil {
					return fmt.Errorf("--current: %w", err)
				}
			}
			if cmd.Flags().Changed("beta") {
				b.Beta = beta
				b.Alpha = false
			}
			if !changelog.ShouldNotify(old, b.Current) {
				_, err := fmt.Fprintf(out, "no notes: %s is not older than %s\n",
					version.Display(old), version.Display(b.Current))
				return err
			}
			for i, text := range changelog.LocalNotes(b, old, catalog) {
				if i > 0 {
					fmt.Fprintln(out, "\n---")
				}
				fmt.Fprintln(out, text)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "Previous client version (e.g. 2.7.6 or 2007006)")
	cmd.Flags().BoolVar(&beta, "beta", false, "Preview as a beta build")
	cmd.Flags().StringVar(&current, "current", "", "Override the current version")
	return cmd
}
