// ABOUTME: Run command for executing a task file
// ABOUTME: Implements the primary workflow execution functionality

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskerd/tasker/internal/variables"
)

var (
	runVariables []string
	runEnvFile   string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [workflow.tkr]",
	Short: "Execute a task file",
	Long: `Execute a task file. The file is parsed, validated, then driven to a
terminal state through the Workflow Driver (§4.7).

Examples:
  tasker run workflow.tkr
  tasker run workflow.tkr --var key=value --var env=prod
  tasker run workflow.tkr --env-file .env.prod`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	path := args[0]
	logger := GetLogger()

	rawGlobals, err := collectGlobals(runEnvFile, runVariables)
	if err != nil {
		return fmt.Errorf("failed to collect global variables: %w", err)
	}

	e, err := loadAndValidate(cmd.Context(), path, rawGlobals)
	if err != nil {
		logger.Error().Err(err).Msg("failed to prepare workflow for execution")
		return err
	}

	code := e.driver.Run(e.doc.StartID)
	logger.Info().Int("exit_code", code).Msg("workflow finished")

	// os.Exit below bypasses deferred cleanup, so close explicitly on
	// every path rather than deferring it.
	if cerr := e.Close(); cerr != nil {
		logger.Warn().Err(cerr).Msg("cleaning up spill files")
	}

	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// collectGlobals loads global-variable definitions from an env file (if
// given), via the shared variables.FileLoader, then merges command-line
// --var overrides over them.
func collectGlobals(envFile string, vars []string) (map[string]string, error) {
	globals := make(map[string]string)

	if envFile != "" {
		loaded, err := variables.New("").LoadVariableFile(envFile)
		if err != nil {
			return nil, err
		}
		for k, v := range loaded {
			globals[k] = v
		}
	}

	for _, kv := range vars {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		globals[strings.TrimSpace(k)] = v
	}

	return globals, nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&runVariables, "var", []string{}, "set a global variable (key=value)")
	runCmd.Flags().StringVar(&runEnvFile, "env-file", "", "load global variables from a key=value file")
}
