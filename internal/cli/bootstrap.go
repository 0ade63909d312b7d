// ABOUTME: Shared engine wiring for the run/validate/dry-run commands
// ABOUTME: Assembles the parser → validator → driver chain from a task-file path

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/taskerd/tasker/internal/condition"
	"github.com/taskerd/tasker/internal/driver"
	"github.com/taskerd/tasker/internal/executor"
	"github.com/taskerd/tasker/internal/globalvars"
	"github.com/taskerd/tasker/internal/notify"
	"github.com/taskerd/tasker/internal/parser"
	"github.com/taskerd/tasker/internal/resultstore"
	"github.com/taskerd/tasker/internal/stream"
	"github.com/taskerd/tasker/internal/transport"
	"github.com/taskerd/tasker/internal/validator"
	"github.com/taskerd/tasker/pkg/types"
)

// engine bundles the components an invocation needs after a task file
// has been parsed and validated; run/dry-run share this to avoid
// duplicating the wiring.
type engine struct {
	doc    *parser.Document
	driver *driver.Driver
	stream *stream.Handler
	logger types.Logger
}

// Close releases every resource loadAndValidate acquired, removing any
// spill file the run created regardless of how the workflow terminated
// (§5's cleanup-on-every-exit-path guarantee). Callers must defer this
// immediately after a successful loadAndValidate.
func (e *engine) Close() error {
	return e.stream.CleanupAll()
}

// loadAndValidate parses path, resolves globals, validates the task
// list, and assembles a Driver ready to Run. rawGlobals (from --var /
// --env-file) is the whole global environment: the task file defines no
// globals of its own. ctx is threaded into
// the Driver so an external cancellation (e.g. SIGINT) reaches the
// execution loop.
func loadAndValidate(ctx context.Context, path string, rawGlobals map[string]string) (*engine, error) {
	logger := GetLogger()
	fs := afero.NewOsFs()

	doc, err := parser.New(fs).ParseFile(path)
	if err != nil {
		return nil, err
	}

	globals, err := globalvars.Resolve(rawGlobals)
	if err != nil {
		return nil, fmt.Errorf("resolving global variables: %w", err)
	}

	store := resultstore.New()
	sub := condition.New(store, globals)
	eval := condition.NewEvaluator(sub)

	if err := validator.Validate(doc.Tasks, doc.StartID, eval); err != nil {
		return nil, err
	}

	registry := transport.NewRegistry()
	registry.Register("local", transport.NewLocalDriver())

	streamHandler := stream.New(fs, os.TempDir(), 0)
	streamHandler.SetCompressSpills(os.Getenv("TASKER_COMPRESS_SPILLS") == "1")
	if doc.SpillArchive != "" {
		archiver, err := stream.NewArchiver(doc.SpillArchive, stream.ArchiveConfig{})
		if err != nil {
			return nil, fmt.Errorf("configuring spill_archive: %w", err)
		}
		streamHandler.SetArchiver(archiver)
	}

	leaf := executor.New(registry, sub, eval, streamHandler, logger)
	d := driver.New(ctx, doc.Tasks, store, leaf, logger)

	if n := buildNotifier(doc, logger); n != nil {
		d.SetNotifier(n)
	}

	return &engine{doc: doc, driver: d, stream: streamHandler, logger: logger}, nil
}

// buildNotifier wires notify_success/notify_failure sinks (§4.8). A
// workflow with neither key set gets no notifier.
func buildNotifier(doc *parser.Document, logger types.Logger) *notify.Dispatcher {
	if doc.NotifySuccess == nil && doc.NotifyFailure == nil {
		return nil
	}
	d := &notify.Dispatcher{Logger: logger}
	if doc.NotifySuccess != nil {
		d.OnSuccess = sinkFor(*doc.NotifySuccess)
	}
	if doc.NotifyFailure != nil {
		d.OnFailure = sinkFor(*doc.NotifyFailure)
	}
	return d
}

func sinkFor(spec notify.Spec) notify.Sink {
	switch spec.Kind {
	case "slack":
		return notify.NewSlackSink(spec.Target)
	case "email":
		return notify.NewEmailSink("localhost", 0, "tasker@localhost", spec.Target)
	case "ses":
		return notify.NewSESSink(os.Getenv("AWS_REGION"), "tasker@localhost", spec.Target)
	default:
		return nil
	}
}
