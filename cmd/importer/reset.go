package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/seedimport/internal/admin"
	"github.com/JonMunkholm/seedimport/internal/core"
	"github.com/spf13/cobra"
)

var errResetNotConfirmed = errors.New("reset deletes data; re-run with --yes to confirm")

func newResetCmd(a *app) *cobra.Command {
	var (
		tables []string
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Empty the tables of imported entities",
		Long: "Truncate the destination tables of the selected entities (all by default)\n" +
			"and restart their identities. Without --yes the statement is only printed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := core.Select(core.All(), normalizeKeys(tables))
			if err != nil {
				return err
			}
			names, err := admin.Tables(defs)
			if err != nil {
				return err
			}

			if !yes {
				fmt.Fprintln(cmd.OutOrStdout(), admin.Statement(names))
				return errResetNotConfirmed
			}

			pool, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			r := &admin.Reset{DB: pool}
			reset, err := r.ResetEntities(cmd.Context(), defs)
			if err != nil {
				return err
			}

			a.logger.Warn("tables reset", "tables", reset)
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", strings.Join(reset, ", "))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&tables, "table", nil, "Only reset these entities (comma separated)")
	cmd.Flags().BoolVar(&yes, "yes", false, "Actually truncate the tables")

	return cmd
}
