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

func newRemoveCmd(v *viper.Viper, stdout, stderr io.Writer) *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "remove <file.dash|file.smodel>",
		Short: "Delete the artifact named by a local file from the platform",
		Long: `Delete a dashboard or data model. The oid is the file name without extension and
the extension selects the kind; the file itself is not read and need not exist.

A delete the platform refuses is logged and does not fail the command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, s, log, err := setup(cmd, v, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			t, err := target.Parse(args[0])
			if err != nil {
				log.Error("Unsupported artifact file", zap.String("path", args[0]), zap.Error(err))
				return err
			}
			if err := backup.CheckCapability(s.Version, "removal", t.Kind); err != nil {
				log.Error("Removal not supported", zap.Error(err))
				return err
			}

			client, err := clientFor(ctx, cmd, s, stderr)
			if err != nil {
				return err
			}
			res, err := backup.Remove(ctx, client, backup.RemoveOptions{
				Path:        t.Path,
				Variant:     s.Version,
				Safety:      getSafetyOptions(cmd),
				Interactive: interactive,
				In:          cmd.InOrStdin(),
				Out:         stdout,
				Logger:      log,
			})
			if err != nil {
				return err
			}
			if res.Deleted {
				fmt.Fprintf(stdout, "deleted %s\n", res.Ref)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Ask for confirmation before deleting")
	return cmd
}
