// ABOUTME: Root command and CLI setup for the Tasker workflow engine
// ABOUTME: Configures global flags, subcommands, and application initialization

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taskerd/tasker/internal/config"
	"github.com/taskerd/tasker/pkg/types"
	"github.com/taskerd/tasker/pkg/utils"
)

var (
	cfgFile     string
	verboseMode bool
	quietMode   bool
	format      string
	logger      types.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tasker",
	Short: "A declarative workflow orchestrator for shell tasks",
	Long: `Tasker executes a linear, id-routed graph of shell commands — locally
or on remote hosts through pluggable execution transports — while
enforcing success/failure conditions, retries, timeouts, variable
substitution, and conditional routing between tasks.

Examples:
  tasker run workflow.tkr              Execute a task file
  tasker dry-run workflow.tkr          Show the parsed, validated task list
  tasker validate workflow.tkr         Validate task-file syntax and structure`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
//
// The context passed to every command's RunE is canceled on SIGINT/SIGTERM,
// so a running Driver sees ctx.Done() and unwinds to ExitValidation (§5)
// instead of the process being killed out from under a live subprocess.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tasker.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "enable quiet mode (only errors)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "text", "output format (text, json)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	v := viper.GetViper()
	if cfgFile != "" {
		// Use config file from the flag.
		v.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".tasker" (without extension).
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".tasker")
	}

	// Read in environment variables that match the TASKER_ prefix.
	config.BindEnv(v)

	// If a config file is found, read it in and watch it for changes.
	if err := v.ReadInConfig(); err == nil {
		if verboseMode {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", v.ConfigFileUsed())
		}
		config.WatchIfConfigured(v)
	}
}

// initLogger initializes the global logger based on flags
func initLogger() {
	level := utils.InfoLevel

	// Determine log level from flags
	if viper.GetBool("verbose") {
		level = utils.DebugLevel
	} else if viper.GetBool("quiet") {
		level = utils.ErrorLevel
	}

	// Create logger based on output format
	if viper.GetString("format") == "json" {
		logger = utils.NewJSONLogger(level, os.Stderr)
	} else {
		logger = utils.NewLogger(level, os.Stderr)
	}
}

// GetLogger returns the global logger instance
func GetLogger() types.Logger {
	if logger == nil {
		initLogger()
	}
	return logger
}
