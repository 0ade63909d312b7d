// ABOUTME: Parallel group success-rule evaluation: all/any/majority/count:n

package parallel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/taskerd/tasker/pkg/types"
)

// groupSucceeded applies rule to a group of `total` members of which
// `succeeded` completed successfully (§4.3).
func groupSucceeded(rule string, total, succeeded int) (bool, error) {
	switch types.GroupRule(rule) {
	case types.RuleAll:
		return succeeded == total, nil
	case types.RuleAny:
		return succeeded >= 1, nil
	case types.RuleMajority:
		return succeeded*2 > total, nil
	}

	if n, ok := strings.CutPrefix(rule, "count:"); ok {
		threshold, err := strconv.Atoi(n)
		if err != nil {
			return false, fmt.Errorf("invalid count rule %q: %w", rule, err)
		}
		return succeeded >= threshold, nil
	}

	return false, fmt.Errorf("unknown group rule %q", rule)
}
