package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"sisense-sync/src/safety"
)

// addGlobalFlags adds persistent flags to the root command. Flags that mirror a
// setting are bound into v so they take precedence over the file and environment.
func addGlobalFlags(cmd *cobra.Command, v *viper.Viper) {
	pf := cmd.PersistentFlags()
	pf.String("config", "", "Config file (default: sisense-sync.yaml in ., $HOME/.sisense-sync or /etc/sisense-sync)")
	pf.String("log-level", "info", "Log level: debug|info|warn|error|none")
	pf.String("env", "", "Environment: git branch and artifact subdirectory")
	pf.String("host", "", "Sisense server URL, e.g. https://bi.example.com")
	pf.Bool("dry-run", false, "Show planned actions without changing the platform or the repository")
	pf.BoolP("yes", "y", false, "Assume 'yes' to prompts and run non-interactively")
	pf.Bool("progress", false, "Report export download progress on stderr")

	bindFlags(v, pf, "log-level", "env", "host")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet, names ...string) {
	for _, name := range names {
		// Only errors on a nil flag.
		_ = v.BindPFlag(name, fs.Lookup(name))
	}
}

// getSafetyOptions reads global flags into a safety.Options struct.
func getSafetyOptions(cmd *cobra.Command) safety.Options {
	dry, _ := cmd.Root().PersistentFlags().GetBool("dry-run")
	yes, _ := cmd.Root().PersistentFlags().GetBool("yes")
	return safety.Options{DryRun: dry, Yes: yes}
}
