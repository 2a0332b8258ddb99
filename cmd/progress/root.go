package main

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tebeka/atexit"
)

var rootViper = viper.New()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "progress",
	Short: "Watch the progress of an instrumented program",
	Long: `progress serves the contexts opened and closed by an instrumented ` +
		`program as a live event stream that a browser can follow.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logrus.SetLevel(logrus.InfoLevel + logrus.Level(rootViper.GetInt("verbose")))
	},
}

// Execute runs the command selected by the command line. Errors terminate the
// process through atexit, so that registered shutdown handlers still run.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		logrus.Error(err)
		atexit.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Count("verbose", "enable extra logging")
	cobra.OnInitialize(initConfig)
}

// initConfig reads the .env file, if any, and binds the environment.
func initConfig() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("cannot read .env file")
	}

	rootViper.SetEnvPrefix("PROGRESS")
	rootViper.AutomaticEnv()

	if err := rootViper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		logrus.WithError(err).Fatal("Failed to set up flags")
	}
}

// bindCommandFlags makes the flags of a command readable from v, with
// PROGRESS_ environment variables as fallback.
func bindCommandFlags(v *viper.Viper, cmd *cobra.Command) {
	v.SetEnvPrefix("PROGRESS")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		logrus.WithError(err).Fatal("Failed to set up flags")
	}
}
