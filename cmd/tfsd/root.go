// Package main implements tfsd, the TecnicoFS session server daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tecnicofs/tfs/internal/config"
)

var (
	cfgFile string
	bindErr error
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "tfsd",
	Short: "tfsd serves the TecnicoFS session protocol over a named pipe",
	Long: `tfsd is the session-multiplexed front end for TecnicoFS: it reads
framed commands off a well-known rendezvous FIFO, dispatches each to a
bounded pool of session workers, and drives the in-memory filesystem
engine on their behalf.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "path to a YAML config file")
	flags.String("rendezvous-path", "", "path of the rendezvous FIFO")
	flags.String("log-level", "INFO", "TRACE, DEBUG, INFO, WARNING, or ERROR")
	flags.String("log-path", "", "rotating log file path (default: stderr)")
	flags.String("metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
	flags.Bool("simulate-storage-latency", false, "simulate storage access latency for benchmarking")

	bindErr = v.BindPFlags(flags)
}

func initConfig() {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			bindErr = fmt.Errorf("read config: %w", err)
		}
	}

	v.BindEnv("rendezvous-path")
	v.BindEnv("log.severity", "LOG_LEVEL")
	v.BindEnv("log.path", "LOG_PATH")
	v.BindEnv("metrics-addr")

	// Flags set explicitly win over a config file; cobra/pflag give us
	// the distinction via Changed, viper gives us the override.
	if rootCmd.PersistentFlags().Changed("log-level") {
		v.Set("log.severity", mustGetString("log-level"))
	}
	if rootCmd.PersistentFlags().Changed("log-path") {
		v.Set("log.path", mustGetString("log-path"))
	}
}

func mustGetString(flag string) string {
	s, _ := rootCmd.PersistentFlags().GetString(flag)
	return s
}

func loadConfig() (config.Config, error) {
	if bindErr != nil {
		return config.Config{}, bindErr
	}
	return config.Load(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}
