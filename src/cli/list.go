package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sisense-sync/src/sisenseapi"
)

type listEntry struct {
	Kind  sisenseapi.Kind `json:"kind"`
	OID   string          `json:"oid"`
	Title string          `json:"title"`
}

func newListCmd(v *viper.Viper, stdout, stderr io.Writer) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list [all|dashboards|models]",
		Short: "List the dashboards and data models on the platform",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := sisenseapi.Kinds
			if len(args) == 1 && strings.ToLower(args[0]) != "all" {
				k, err := sisenseapi.ParseKind(args[0])
				if err != nil {
					return err
				}
				kinds = []sisenseapi.Kind{k}
			}
			if output != "table" && output != "json" {
				return fmt.Errorf("unsupported --output: %s", output)
			}

			ctx, s, log, err := setup(cmd, v, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			client, err := clientFor(ctx, cmd, s, stderr)
			if err != nil {
				return err
			}

			entries := []listEntry{}
			for _, k := range kinds {
				arts, err := sisenseapi.List(ctx, client, k)
				if err != nil {
					return err
				}
				for _, a := range arts {
					entries = append(entries, listEntry{Kind: a.Kind, OID: a.ID, Title: a.Title})
				}
			}

			if output == "json" {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			return renderTable(stdout, entries)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	return cmd
}

func renderTable(w io.Writer, entries []listEntry) error {
	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("KIND", "OID", "TITLE")
	for _, e := range entries {
		table.AddRow(e.Kind, e.OID, e.Title)
	}
	_, err := fmt.Fprintln(w, table)
	return err
}
