// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dagsync",
	Short: "dagsync replicates DAG histories between repositories",
	Long: `dagsync replicates append-only DAGs of nodes, and the blobs they reference,
between related repositories.

Repositories exchange fragments of their DAGs, guided by generation hints, so a sync
usually completes in three round trips regardless of how far apart the two sides are.

Remotes are either http(s) URLs of a "dagsync serve" process, or paths to a local repository.
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		wrapFatalWithCodef(1, "%v", err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	addRepoFlag(rootCmd)
	addRemoteFlag(rootCmd)
	addLogLevelFlag(rootCmd)
	addMarginFlag(rootCmd)
	addBlobBatchSizeFlag(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetDefault(keyLogLevel, defaultLogLevel)
	viper.SetDefault(keyMargin, defaultMargin)
	viper.SetDefault(keyBlobBatchSize, defaultBlobBatchSize)
	viper.SetDefault(keyListen, defaultListen)

	if os.Getenv("DAGSYNC_CONFIG") != "" {
		viper.SetConfigFile(os.Getenv("DAGSYNC_CONFIG"))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.dagsync")
		viper.AddConfigPath("/etc/dagsync")
		viper.SetConfigName("dagsync")
	}

	viper.SetEnvPrefix("dagsync")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		_, _ = fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
