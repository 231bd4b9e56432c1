package cli

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "WEDQUIZ"

type rootOptions struct {
	configPath string
	port       string
	verbose    bool
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "wedding-quiz",
		Short:         "Live quiz for wedding receptions: one screen, one operator, every guest's phone",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	fs := cmd.PersistentFlags()
	fs.StringVar(&opts.configPath, "config", "config/config.yaml", "path to YAML config (env: WEDQUIZ_CONFIG)")
	fs.StringVar(&opts.port, "port", "", "port to listen on, overrides server.port (env: WEDQUIZ_PORT)")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log requests and transitions (env: WEDQUIZ_VERBOSE)")
	bindEnv(fs)

	cmd.AddCommand(newStartCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	cmd.AddCommand(newRankingCmd(opts))
	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

// bindEnv lets WEDQUIZ_* environment variables fill flags not given on the command line.
func bindEnv(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func (o *rootOptions) logf(format string, args ...any) {
	if !o.verbose {
		return
	}
	log.Printf(format, args...)
}
