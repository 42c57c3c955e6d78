package cmd

import (
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// envDefaults are environment overrides for flag defaults, so a shell
// profile can pin a machine file or snapshot budget once.
type envDefaults struct {
	Log     string `env:"RETRACE_LOG" envDefault:"error"`
	Slots   int    `env:"RETRACE_SLOTS" envDefault:"20"`
	Machine string `env:"RETRACE_MACHINE"`
}

var (
	logLevel    string // Log verbosity level
	slotCount   int    // Total snapshot slots, base slot included
	machinePath string // Machine definition file; empty selects the demo machine
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "retrace",
	Short: "Deterministic replay timeline for step-based simulations",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up persistent flags, seeded from the environment.
func init() {
	defaults := envDefaults{}
	if err := env.Parse(&defaults); err != nil {
		logrus.Fatalf("parse environment: %v", err)
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log", defaults.Log, "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().IntVar(&slotCount, "slots", defaults.Slots, "Total snapshot slots, base slot included")
	rootCmd.PersistentFlags().StringVar(&machinePath, "machine", defaults.Machine, "Machine definition YAML (empty runs the built-in demo)")
}
