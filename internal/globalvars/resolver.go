// ABOUTME: Resolves the raw global-variable map into the frozen GlobalVars environment
// ABOUTME: Detects reference cycles among globals at validation time, before the workflow starts

package globalvars

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/taskerd/tasker/pkg/types"
)

// globalRefPattern matches @name@ where name is a bare identifier (not
// a task-result reference, which always starts with digits).
var globalRefPattern = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)@`)

// CycleError is a validation-time error: two or more globals reference
// each other and can never be fully resolved.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle among global variables: %s", strings.Join(e.Chain, " -> "))
}

// Resolve takes the raw, possibly self-referential global definitions
// and returns a fully expanded, frozen types.GlobalVars. Every @name@
// occurring in a value is replaced by the fully-resolved value of that
// other global, so that substitution at task-execution time is a single
// map lookup, never a recursive expansion.
func Resolve(raw map[string]string) (types.GlobalVars, error) {
	resolved := make(map[string]string, len(raw))
	state := make(map[string]int) // 0=unvisited, 1=visiting, 2=done

	var resolve func(name string, chain []string) (string, error)
	resolve = func(name string, chain []string) (string, error) {
		if v, ok := resolved[name]; ok {
			return v, nil
		}
		switch state[name] {
		case 1:
			return "", &CycleError{Chain: append(append([]string{}, chain...), name)}
		case 2:
			return resolved[name], nil
		}

		value, ok := raw[name]
		if !ok {
			return "", fmt.Errorf("global variable %q is not defined", name)
		}

		state[name] = 1
		chain = append(chain, name)

		var resolveErr error
		expanded := globalRefPattern.ReplaceAllStringFunc(value, func(match string) string {
			if resolveErr != nil {
				return match
			}
			ref := globalRefPattern.FindStringSubmatch(match)[1]
			v, err := resolve(ref, chain)
			if err != nil {
				resolveErr = err
				return match
			}
			return v
		})
		if resolveErr != nil {
			return "", resolveErr
		}

		state[name] = 2
		resolved[name] = expanded
		return expanded, nil
	}

	for name := range raw {
		if _, err := resolve(name, nil); err != nil {
			return nil, err
		}
	}

	return types.GlobalVars(resolved), nil
}
