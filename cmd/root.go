package cmd

import (
	"github.com/bnema/convtree/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	app := newApp(v)

	rootCmd := &cobra.Command{
		Use:           "convtree",
		Short:         "Inspect delegation trees of agent conversations",
		Long:          "convtree loads a conversation, its delegated descendants and their messages from a local store, and shows the derived view: participants, latest reply, aggregated todos, delegations and referenced reports.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.wire(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return app.shutdown()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default ~/.convtree/config.toml)")
	flags.String("store", "", "conversation store path")
	flags.String("driver", "", "store driver: toml or sqlite")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	_ = v.BindPFlag(config.KeyStorePath, flags.Lookup("store"))
	_ = v.BindPFlag(config.KeyStoreDriver, flags.Lookup("driver"))
	_ = v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))

	rootCmd.AddCommand(
		newVersionCmd(),
		newShowCmd(app),
		newWatchCmd(app),
		newImportCmd(app),
		newExportCmd(app),
	)

	return rootCmd
}
