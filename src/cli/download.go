package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sisense-sync/src/backup"
	"sisense-sync/src/gitrepo"
	"sisense-sync/src/sisenseapi"
)

func newDownloadCmd(v *viper.Viper, stdout, stderr io.Writer) *cobra.Command {
	var noCommit bool
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Export every dashboard and model and commit them to the environment branch",
		Long: `Clone the repository into the work directory, check out the environment branch
(creating it when missing), export every dashboard and data model into
dashboards/<env>/ and models/<env>/, then commit and push if anything changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, s, log, err := setup(cmd, v, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if err := s.ValidateRepository(); err != nil {
				return err
			}
			client, err := clientFor(ctx, cmd, s, stderr)
			if err != nil {
				return err
			}
			safe := getSafetyOptions(cmd)
			res, err := backup.Download(ctx, client, backup.DownloadOptions{
				Repo:       s.Repo,
				Env:        s.Env,
				WorkDir:    s.WorkDir,
				Author:     gitrepo.Author{Name: s.Author.Name, Email: s.Author.Email},
				SkipCommit: noCommit || safe.DryRun,
				Logger:     log,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s: %d dashboards, %d models, %s\n", s.Env,
				len(res.Exported[sisenseapi.KindDashboard]), len(res.Exported[sisenseapi.KindModel]), describeCommit(res))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&noCommit, "no-commit", "n", false, "Stage the exported artifacts without committing or pushing")
	return cmd
}

func describeCommit(res backup.DownloadResult) string {
	switch {
	case !res.Commit.Changed():
		return "no changes"
	case res.PushRejected != nil:
		return "push rejected: " + res.PushRejected.Summary
	case !res.Commit.Committed:
		return fmt.Sprintf("%d files staged, not committed", len(res.Commit.Files))
	}
	return fmt.Sprintf("%d files committed", len(res.Commit.Files))
}
