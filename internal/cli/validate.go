// ABOUTME: Validate command for checking task file syntax and structure
// ABOUTME: Provides validation without execution

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskerd/tasker/internal/driver"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate [workflow.tkr]",
	Short: "Validate task-file syntax and structure",
	Long: `Validate a task file for grammar errors and structural problems
without executing any task.

The validate command checks:
• Task-file grammar and key=value record structure
• Routing field references (on_success, on_failure, next)
• Parallel group membership and cross-reference rules
• Conditional/loop branch references
• success_expr/failure_expr/condition syntax

Examples:
  tasker validate workflow.tkr
  tasker validate examples/complex.tkr`,
	Args: cobra.ExactArgs(1),
	RunE: validateWorkflow,
}

func validateWorkflow(cmd *cobra.Command, args []string) error {
	workflowPath := args[0]
	logger := GetLogger()

	logger.Info().Str("workflow", workflowPath).Msg("validating task file")

	e, err := loadAndValidate(cmd.Context(), workflowPath, nil)
	if err != nil {
		fmt.Printf("❌ %s\n", err)
		logger.Error().Err(err).Msg("task file validation failed")
		os.Exit(driver.ExitValidation)
	}
	if cerr := e.Close(); cerr != nil {
		logger.Warn().Err(cerr).Msg("cleaning up spill files")
	}

	fmt.Printf("✅ task file validation passed\n")
	return nil
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
