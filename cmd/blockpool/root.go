package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/yanishalloum/memoryAllocation/internal/blockpool"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "blockpool",
	Short: "Drive a fixed-capacity block pool through scripted operations",
	Long: `blockpool runs scenarios against a pool of equally sized blocks whose
free list is stored inside the free blocks themselves, and prints the pool
state as it changes.

Flags may also be set through BLOCKPOOL_* environment variables or a YAML
config file passed with --config.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (YAML)")
	flags.Int("capacity", blockpool.DefaultCapacity, "Number of blocks for scenarios that do not set one")
	flags.Int("block-size", blockpool.DefaultBlockSize, "Block size in bytes for scenarios that do not set one")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.Bool("json", false, "Output results in JSON format")
	flags.BoolP("quiet", "q", false, "Suppress pool printouts")
	bindFlags(flags)
}

func bindFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		if err := viper.BindPFlag(f.Name, f); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", f.Name, err))
		}
	})
}

func initConfig() {
	viper.SetEnvPrefix("BLOCKPOOL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading config %s: %v\n", cfgFile, err)
		os.Exit(1)
	}
}

func newLogger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level: %w", err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// printInfo prints a message unless --quiet or --json is set
func printInfo(w io.Writer, format string, args ...interface{}) {
	if !viper.GetBool("quiet") && !viper.GetBool("json") {
		fmt.Fprintf(w, format, args...)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
