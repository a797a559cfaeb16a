package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var structureForce bool

var structureCmd = &cobra.Command{
	Use:     "structure <dictionary>",
	Short:   "Show the form structure of a dictionary",
	GroupID: "structure",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := client.GetDictionaryStructure(cmd.Context(), args[0], structureForce)
		if err != nil {
			return fmt.Errorf("getting structure of %s: %w", args[0], err)
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, s.Fields())
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tKIND\tRELATED")
		for _, f := range s.Fields() {
			related := ""
			if f.RelatedModel != "" {
				related = f.RelatedApp + "." + f.RelatedModel
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Name, f.Type, f.Kind, related)
		}
		return w.Flush()
	},
}

var fieldCmd = &cobra.Command{
	Use:     "field <dictionary> <field>",
	Short:   "Show one field of a form structure",
	GroupID: "structure",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := client.GetModelStructureField(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("getting field %s of %s: %w", args[1], args[0], err)
		}
		return printJSON(cmd.OutOrStdout(), f)
	},
}

func init() {
	structureCmd.Flags().BoolVarP(&structureForce, "force", "f", false, "refetch the cached structure")
}
