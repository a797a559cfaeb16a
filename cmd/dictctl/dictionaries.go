package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var dictionariesCmd = &cobra.Command{
	Use:     "dictionaries",
	Aliases: []string{"config"},
	Short:   "List registered dictionaries",
	GroupID: "dictionaries",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries := client.Dictionaries()
		out := cmd.OutOrStdout()

		if jsonOutput {
			type entry struct {
				Name       string `json:"name"`
				Path       string `json:"path"`
				TTLSeconds int64  `json:"ttl_seconds"`
			}
			list := make([]entry, 0, len(entries))
			for _, e := range entries {
				list = append(list, entry{Name: e.Name, Path: e.Path, TTLSeconds: int64(e.TTL.Seconds())})
			}
			return printJSON(out, list)
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTTL\tPATH")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, e.TTL, e.Path)
		}
		fmt.Fprintf(w, "\n%d dictionaries\n", len(entries))
		return w.Flush()
	},
}

var (
	getForce  bool
	listDepth int
)

var getCmd = &cobra.Command{
	Use:     "get <dictionary>",
	Short:   "Print a dictionary body",
	GroupID: "dictionaries",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := client.GetDictionary(cmd.Context(), args[0], getForce)
		if perr := printRaw(cmd.OutOrStdout(), data); perr != nil {
			return perr
		}
		if err != nil {
			return fmt.Errorf("getting %s: %w", args[0], err)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list <dictionary>",
	Short:   "Print a dictionary flattened to a nesting depth",
	GroupID: "dictionaries",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := client.GetDictionaryAsList(cmd.Context(), args[0], listDepth)
		if perr := printRaw(cmd.OutOrStdout(), data); perr != nil {
			return perr
		}
		if err != nil {
			return fmt.Errorf("listing %s: %w", args[0], err)
		}
		return nil
	},
}

var itemCmd = &cobra.Command{
	Use:     "item <dictionary> <id>",
	Short:   "Print one dictionary item",
	GroupID: "dictionaries",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := client.GetDictionaryItemByID(cmd.Context(), args[0], args[1])
		if perr := printRaw(cmd.OutOrStdout(), data); perr != nil {
			return perr
		}
		if err != nil {
			return fmt.Errorf("getting %s item %s: %w", args[0], args[1], err)
		}
		return nil
	},
}

func init() {
	getCmd.Flags().BoolVarP(&getForce, "force", "f", false, "refetch even when fresh")
	listCmd.Flags().IntVar(&listDepth, "depth", 0, "nesting depth")
}
