package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listArgs struct {
	limit int
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list jobs submitted from this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd.Context())
	},
}

//nolint:gochecknoinit
func init() {
	listCmd.Flags().IntVarP(&listArgs.limit, "limit", "n", 20, "maximum entries to show")
	rootCmd.AddCommand(listCmd)
}

func runList(ctx context.Context) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	recs, err := store.List(ctx, listArgs.limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tSTATE\tSUBMITTED\tIMAGE")
	for _, rec := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.Name, rec.Kind, rec.State,
			rec.CreatedAt.Format("2006-01-02 15:04"), rec.Image)
	}
	return w.Flush()
}
