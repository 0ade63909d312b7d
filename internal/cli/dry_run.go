// ABOUTME: Dry-run command for showing the parsed, validated task list
// ABOUTME: Allows users to preview a task file's structure without executing it

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/taskerd/tasker/pkg/types"
)

var dryRunFormat string

// dryRunCmd represents the dry-run command
var dryRunCmd = &cobra.Command{
	Use:   "dry-run [workflow.tkr]",
	Short: "Show the parsed, validated task list without executing it",
	Long: `Parse and validate a task file, then print its task list and routing
without executing any command.

Output formats:
• text: Human-readable task list (default)
• json: Machine-readable JSON format

Examples:
  tasker dry-run workflow.tkr
  tasker dry-run workflow.tkr --format json`,
	Args: cobra.ExactArgs(1),
	RunE: dryRunWorkflow,
}

func dryRunWorkflow(cmd *cobra.Command, args []string) error {
	workflowPath := args[0]

	e, err := loadAndValidate(cmd.Context(), workflowPath, nil)
	if err != nil {
		return fmt.Errorf("failed to prepare dry run: %w", err)
	}
	defer func() {
		if cerr := e.Close(); cerr != nil {
			GetLogger().Warn().Err(cerr).Msg("cleaning up spill files")
		}
	}()

	switch dryRunFormat {
	case "json":
		return displayDryRunJSON(e.doc.Tasks, e.doc.StartID)
	case "text":
		return displayDryRunText(e.doc.Tasks, e.doc.StartID)
	default:
		return fmt.Errorf("unknown format: %s", dryRunFormat)
	}
}

func displayDryRunJSON(tasks map[int]*types.Task, startID int) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(struct {
		StartID int                  `json:"start_id"`
		Tasks   map[int]*types.Task  `json:"tasks"`
	}{StartID: startID, Tasks: tasks})
}

func displayDryRunText(tasks map[int]*types.Task, startID int) error {
	fmt.Printf("🔍 DRY RUN - no commands will be executed\n\n")
	fmt.Printf("Start task: %d\n", startID)
	fmt.Printf("Tasks: %d\n\n", len(tasks))

	ids := make([]int, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		t := tasks[id]
		fmt.Printf("  • task %d (%s)\n", id, t.Kind)
		switch t.Kind {
		case types.KindLeaf:
			if t.Command != "" {
				fmt.Printf("    command: %s\n", t.Command)
			}
			if t.Hostname != "" {
				fmt.Printf("    hostname: %s\n", t.Hostname)
			}
			printRoute(t)
		case types.KindParallel:
			fmt.Printf("    members: %v\n", t.Members)
			fmt.Printf("    rule: %s\n", t.Rule)
			printRoute(t)
		case types.KindConditional:
			fmt.Printf("    condition: %s\n", t.Condition)
			fmt.Printf("    if_true: %v\n", t.IfTrueTasks)
			fmt.Printf("    if_false: %v\n", t.IfFalseTasks)
		case types.KindLoop:
			fmt.Printf("    loop_tasks: %v\n", t.LoopTasks)
			fmt.Printf("    loop_count: %d\n", t.LoopCount)
			printRoute(t)
		}
	}

	return nil
}

func printRoute(t *types.Task) {
	if t.OnSuccess != nil {
		fmt.Printf("    on_success: %d\n", *t.OnSuccess)
	}
	if t.OnFailure != nil {
		fmt.Printf("    on_failure: %d\n", *t.OnFailure)
	}
	if t.Next != nil {
		fmt.Printf("    next: %d\n", *t.Next)
	}
	if t.Return != nil {
		fmt.Printf("    return: %d\n", *t.Return)
	}
}

func init() {
	rootCmd.AddCommand(dryRunCmd)

	dryRunCmd.Flags().StringVar(&dryRunFormat, "format", "text", "output format (text, json)")
}
