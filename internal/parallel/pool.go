// ABOUTME: Bounded worker pool sizing for the Parallel Executor
// ABOUTME: min(max_parallel, cpu*4, fd_limit/2), divided by peer-instance count

package parallel

import (
	"os"
	"runtime"
	"strconv"
	"syscall"

	"github.com/taskerd/tasker/pkg/types"
)

// peerInstancesEnv names the environment variable advertising the number
// of sibling engine instances sharing this host's resources (§5).
const peerInstancesEnv = "TASKER_PARALLEL_INSTANCES"

// effectivePoolSize computes the bounded pool size (§4.3, §5) for a
// parallel group that requested maxParallel workers. logger, if non-nil,
// receives an INFO line when the requested value exceeded the cap.
func effectivePoolSize(maxParallel int, logger types.Logger) int {
	requested := maxParallel
	if requested < types.MinMaxParallel {
		requested = types.MinMaxParallel
	}

	ceiling := runtime.NumCPU() * 4
	if fdCap := fdLimitCap(); fdCap > 0 && fdCap < ceiling {
		ceiling = fdCap
	}

	size := requested
	if size > ceiling {
		size = ceiling
		if logger != nil {
			logger.Info().Int("requested", requested).Int("cap", ceiling).Msg("parallel pool size capped")
		}
	}

	if n := peerInstances(); n > 1 {
		size = size / n
	}
	if size < 1 {
		size = 1
	}
	return size
}

// fdLimitCap returns half the process's open-file soft limit, or 0 if it
// cannot be determined.
func fdLimitCap() int {
	var rlim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rlim); err != nil {
		return 0
	}
	return int(rlim.Cur / 2)
}

// peerInstances reads TASKER_PARALLEL_INSTANCES, defaulting to 1.
func peerInstances() int {
	v := os.Getenv(peerInstancesEnv)
	if v == "" {
		return 1
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
