package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"sisense-sync/src/backup"
	"sisense-sync/src/target"
)

func newUploadCmd(v *viper.Viper, stdout, stderr io.Writer) *cobra.Command {
	var (
		title      string
		connection string
		asNew      bool
	)
	cmd := &cobra.Command{
		Use:   "upload <file.dash|file.smodel>",
		Short: "Import one dashboard or data model file",
		Long: `Import one artifact file. Dashboards overwrite the dashboard with the same oid and
are republished. Models update the model whose oid is the file name, or are
imported as a new model with --new.

--connection rewrites datasets[].connection.parameters of a model file in place
before the import.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, s, log, err := setup(cmd, v, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			// Refuse bad input before connecting to the platform.
			t, err := target.Parse(args[0])
			if err != nil {
				log.Error("Unsupported artifact file", zap.String("path", args[0]), zap.Error(err))
				return err
			}
			if err := backup.CheckCapability(s.Version, "upload", t.Kind); err != nil {
				log.Error("Upload not supported", zap.Error(err))
				return err
			}

			client, err := clientFor(ctx, cmd, s, stderr)
			if err != nil {
				return err
			}
			a, err := backup.Upload(ctx, client, backup.UploadOptions{
				Path:       t.Path,
				Title:      title,
				Connection: connection,
				New:        asNew,
				Variant:    s.Version,
				DryRun:     getSafetyOptions(cmd).DryRun,
				Logger:     log,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s %s %q\n", a.Kind, a.ID, a.Title)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Title of the imported artifact")
	cmd.Flags().StringVarP(&connection, "connection", "c", "", "Connection parameters for every dataset of a model")
	cmd.Flags().BoolVar(&asNew, "new", false, "Import a model as a new data model instead of updating the existing one")
	return cmd
}
