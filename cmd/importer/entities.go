package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/seedimport/internal/core"
	"github.com/spf13/cobra"
)

func newEntitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List configured entities in import order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs := core.All()
			if err := core.ValidateDefinitions(defs); err != nil {
				return err
			}
			ordered, err := core.Ordered(defs)
			if err != nil {
				return err
			}
			return writeEntities(cmd.OutOrStdout(), ordered)
		},
	}
}

func writeEntities(w io.Writer, defs []core.EntityDefinition) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tENTITY\tFILE\tTABLE\tUNIQUE KEY\tREFERENCES")
	for i, def := range defs {
		refs := make([]string, 0, len(def.ForeignKeys))
		for _, fk := range def.ForeignKeys {
			refs = append(refs, fk.Entity)
		}
		if len(refs) == 0 {
			refs = append(refs, "-")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, def.Key, def.SourceFile, def.Table,
			strings.Join(def.UniqueKey, ","), strings.Join(refs, ","))
	}
	return tw.Flush()
}
