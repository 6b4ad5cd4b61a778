package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"sisense-sync/src/dlogger"
	"sisense-sync/src/settings"
)

// NewRootCmd returns the root cobra command for the sisense-sync CLI.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := settings.NewViper()
	cmd := &cobra.Command{
		Use:   "sisense-sync",
		Short: "Synchronize Sisense dashboards and data models with a git repository",
		Long: `sisense-sync downloads every dashboard and data model of a Sisense server into
an environment branch of a git repository, and uploads or removes single artifacts.

Settings come from sisense-sync.yaml (or --config) and SISENSE_SYNC_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	addGlobalFlags(cmd, v)

	cmd.AddCommand(newDownloadCmd(v, stdout, stderr))
	cmd.AddCommand(newUploadCmd(v, stdout, stderr))
	cmd.AddCommand(newRemoveCmd(v, stdout, stderr))
	cmd.AddCommand(newListCmd(v, stdout, stderr))
	cmd.AddCommand(newVerifyCmd(v, stdout, stderr))
	cmd.AddCommand(newConfigCmd(v, stdout))
	cmd.AddCommand(newVersionCmd(stdout))

	return cmd
}

// Execute runs the CLI with the process stdio. Interrupts cancel the running command.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// loadSettings reads the config file named by --config together with the
// environment and the bound flags.
func loadSettings(cmd *cobra.Command, v *viper.Viper) (settings.Settings, error) {
	configFile, _ := cmd.Root().PersistentFlags().GetString("config")
	return settings.Load(v, configFile)
}

// setup loads settings and builds the logger every command logs through.
func setup(cmd *cobra.Command, v *viper.Viper, stderr io.Writer) (context.Context, settings.Settings, *zap.Logger, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := loadSettings(cmd, v)
	if err != nil {
		return ctx, s, nil, err
	}
	if stderr == nil {
		stderr = io.Discard
	}
	log, err := dlogger.New(stderr, s.LogLevel)
	if err != nil {
		return ctx, s, nil, fmt.Errorf("invalid log level %q: %w", s.LogLevel, err)
	}
	return ctx, s, log, nil
}
