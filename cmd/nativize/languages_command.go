package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLanguagesCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List supported target languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			languages, err := ctx.apiClient().Languages(cmd.Context())
			if err != nil {
				return err
			}

			if jsonFlag {
				return writeJSON(cmd, languages)
			}
			rows := make([][]string, 0, len(languages))
			for _, l := range languages {
				rows = append(rows, []string{l.Code, l.Display, l.Native, l.Locale})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(languageColumns, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit languages as JSON")
	return cmd
}
