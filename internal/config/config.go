// ABOUTME: Environment bootstrap: reads the TASKER_* variables and process-wide defaults
// ABOUTME: Adapted from the workflow engine's viper-backed root command configuration

package config

import (
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// envPrefix mirrors the teacher's RITUAL_ convention (§1.1).
const envPrefix = "TASKER"

// Config holds the process-wide settings sourced from flags, a config
// file, and the environment (§6's "Environment variables consumed").
type Config struct {
	// NestedLevel is an advisory nesting depth a parent invocation may
	// set so a child run can log how deeply it is nested; the engine
	// does not change behavior based on it.
	NestedLevel int

	// ParallelInstances is the peer-instance count internal/parallel
	// divides its pool size by (read independently there via
	// os.Getenv, since the pool sizing math must not depend on cobra
	// having run first); no caller reads this field.
	ParallelInstances int

	// SpillThreshold holds TASKER_SPILL_THRESHOLD in bytes (0 when
	// unset). It is not passed to internal/stream, which applies its own
	// default threshold.
	SpillThreshold int64

	// DefaultTimeout holds the default-timeout setting (30 when unset).
	// The task-file parser applies its own 30-second leaf default and
	// does not read this field.
	DefaultTimeout int

	Verbose bool
	Format  string
}

// Load reads viper's bound flags/config-file/environment state (after
// cobra has run its OnInitialize hooks) into a Config.
func Load(v *viper.Viper) *Config {
	if v == nil {
		v = viper.GetViper()
	}
	cfg := &Config{
		NestedLevel:       envInt("TASKER_NESTED_LEVEL", 0),
		ParallelInstances: envInt("TASKER_PARALLEL_INSTANCES", 1),
		SpillThreshold:    int64(envInt("TASKER_SPILL_THRESHOLD", 0)),
		DefaultTimeout:    v.GetInt("default-timeout"),
		Verbose:           v.GetBool("verbose"),
		Format:            v.GetString("format"),
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 30
	}
	return cfg
}

// BindEnv wires viper's automatic environment lookup under the TASKER_
// prefix, mirroring the teacher's RITUAL_ setup.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
}

// WatchIfConfigured enables viper's WatchConfig so v re-reads its config
// file when that file changes; a Config already returned by Load is not
// updated. WatchConfig panics on a viper with no resolved config file,
// so this is a no-op until one has actually been loaded.
func WatchIfConfigured(v *viper.Viper) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.WatchConfig()
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
