// ABOUTME: Variable substitution engine implementing @k_stdout@/@k_stderr@/@k_success@/@name@ lookup
// ABOUTME: Patterns are precompiled once; task-result references resolve before global references

package condition

import (
	"regexp"
	"strconv"

	"github.com/taskerd/tasker/pkg/types"
)

// taskRefPattern matches @<id>_stdout@, @<id>_stderr@, @<id>_success@.
var taskRefPattern = regexp.MustCompile(`@(\d+)_(stdout|stderr|success)@`)

// globalRefPattern matches @<name>@ where name is a bare identifier.
var globalRefPattern = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)@`)

// Substituter implements types.Substituter over a Result Store and a
// frozen GlobalVars environment.
type Substituter struct {
	store   types.ResultStore
	globals types.GlobalVars
}

// New creates a Substituter bound to the given store and globals.
func New(store types.ResultStore, globals types.GlobalVars) *Substituter {
	return &Substituter{store: store, globals: globals}
}

// Substitute resolves task-result references first (single pass), then
// global references (single pass). The global pass runs over the task
// pass's output, so an @name@ inside a substituted task result is
// resolved too; neither pass re-scans its own output.
func (s *Substituter) Substitute(in string) (string, error) {
	var firstErr error

	afterTaskRefs := taskRefPattern.ReplaceAllStringFunc(in, func(match string) string {
		if firstErr != nil {
			return match
		}
		groups := taskRefPattern.FindStringSubmatch(match)
		taskID, _ := strconv.Atoi(groups[1])
		field := groups[2]

		result, ok := s.store.Get(taskID)
		if !ok {
			firstErr = types.NewUnresolvedReferenceError(taskID, match)
			return match
		}
		switch field {
		case "stdout":
			return result.Stdout
		case "stderr":
			return result.Stderr
		case "success":
			if result.Success {
				return "true"
			}
			return "false"
		}
		return match
	})
	if firstErr != nil {
		return "", firstErr
	}

	afterGlobals := globalRefPattern.ReplaceAllStringFunc(afterTaskRefs, func(match string) string {
		if firstErr != nil {
			return match
		}
		name := globalRefPattern.FindStringSubmatch(match)[1]
		v, ok := s.globals[name]
		if !ok {
			firstErr = types.NewUnresolvedReferenceError(-1, match)
			return match
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}

	return afterGlobals, nil
}
