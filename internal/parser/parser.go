// ABOUTME: Task-file parser: translates the key=value grammar (§3.1) into the in-memory task list
// ABOUTME: Adapted from the workflow engine's YAML parser, narrowed to the flat leaf/parallel/conditional/loop grammar

package parser

import (
	"fmt"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/spf13/afero"

	"github.com/taskerd/tasker/internal/notify"
	"github.com/taskerd/tasker/pkg/types"
)

// Document is the parsed contents of a task file: the task list plus the
// workflow-level keys that live outside any task record (§4.8, §4.9).
type Document struct {
	Tasks         map[int]*types.Task
	StartID       int
	NotifySuccess *notify.Spec
	NotifyFailure *notify.Spec
	SpillArchive  string
}

// Parser reads a task file off fs and produces a Document.
type Parser struct {
	fs afero.Fs
}

// New creates a Parser rooted at fs. A nil fs defaults to the OS
// filesystem.
func New(fs afero.Fs) *Parser {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Parser{fs: fs}
}

// leafDefaults mirrors spec.md §3's stated defaults for fields a record
// may omit.
var leafDefaults = types.Task{
	Kind:    types.KindLeaf,
	Timeout: 30,
}

// ParseFile reads filename off the parser's filesystem and parses it.
func (p *Parser) ParseFile(filename string) (*Document, error) {
	data, err := afero.ReadFile(p.fs, filename)
	if err != nil {
		return nil, types.NewParseError(filename, 0, "failed to read file", err)
	}
	doc, err := p.Parse(data)
	if err != nil {
		if pe, ok := err.(*types.ParseError); ok {
			pe.File = filename
			return nil, pe
		}
		return nil, types.NewParseError(filename, 0, "failed to parse task file", err)
	}
	return doc, nil
}

// Parse parses the key=value task-file grammar (§3.1) from data.
func (p *Parser) Parse(data []byte) (*Document, error) {
	doc := &Document{Tasks: make(map[int]*types.Task)}

	lines := strings.Split(string(data), "\n")
	var record map[string]string
	var recordLine int
	first := true

	flush := func() error {
		if record == nil {
			return nil
		}
		if _, ok := record["task"]; ok {
			task, err := buildTask(record, recordLine)
			if err != nil {
				return err
			}
			if _, dup := doc.Tasks[task.ID]; dup {
				return types.NewParseError("", recordLine, fmt.Sprintf("duplicate task id %d", task.ID), nil)
			}
			doc.Tasks[task.ID] = task
			if first {
				doc.StartID = task.ID
				first = false
			}
		}
		record = nil
		return nil
	}

	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)

		if line == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}

		key, value, err := splitKV(line, lineNo)
		if err != nil {
			return nil, err
		}

		switch key {
		case "notify_success", "notify_failure", "spill_archive":
			if err := setWorkflowKey(doc, key, value); err != nil {
				return nil, types.NewParseError("", lineNo, err.Error(), nil)
			}
			continue
		}

		if key == "task" && record != nil {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		if record == nil {
			record = make(map[string]string)
			recordLine = lineNo
		}
		record[key] = value
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if len(doc.Tasks) == 0 {
		return nil, types.NewParseError("", 0, "task file declares no tasks", nil)
	}
	return doc, nil
}

func splitKV(line string, lineNo int) (string, string, error) {
	idx := strings.IndexByte(line, '=')
	if idx < 0 {
		return "", "", types.NewParseError("", lineNo, fmt.Sprintf("expected key=value, got %q", line), nil)
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), nil
}

func setWorkflowKey(doc *Document, key, value string) error {
	switch key {
	case "notify_success":
		spec, err := notify.ParseSpec(value)
		if err != nil {
			return err
		}
		doc.NotifySuccess = &spec
	case "notify_failure":
		spec, err := notify.ParseSpec(value)
		if err != nil {
			return err
		}
		doc.NotifyFailure = &spec
	case "spill_archive":
		doc.SpillArchive = value
	}
	return nil
}

// buildTask converts one key=value record into a Task, applying
// kind-specific defaults via mergo before the validator ever sees it.
func buildTask(record map[string]string, lineNo int) (*types.Task, error) {
	id, err := strconv.Atoi(record["task"])
	if err != nil {
		return nil, types.NewParseError("", lineNo, fmt.Sprintf("task id %q is not an integer", record["task"]), err)
	}

	kind := types.TaskKind(record["kind"])
	if kind == "" {
		kind = types.KindLeaf
	}

	task := &types.Task{ID: id, Kind: kind}

	var perr error
	str := func(key string) string { return record[key] }
	intv := func(key string) int {
		if v, ok := record[key]; ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil && perr == nil {
				perr = types.NewParseError("", lineNo, fmt.Sprintf("field %q must be an integer, got %q", key, v), err)
			}
			return n
		}
		return 0
	}
	boolv := func(key string) bool {
		v, ok := record[key]
		return ok && (v == "true" || v == "1" || v == "yes")
	}
	intList := func(key string) []int {
		v, ok := record[key]
		if !ok || v == "" {
			return nil
		}
		var out []int
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil && perr == nil {
				perr = types.NewParseError("", lineNo, fmt.Sprintf("field %q contains non-integer id %q", key, part), err)
				continue
			}
			out = append(out, n)
		}
		return out
	}
	intPtr := func(key string) *int {
		if v, ok := record[key]; ok && v != "" {
			n := intv(key)
			return &n
		}
		return nil
	}

	task.ExecType = str("exec_type")
	task.Hostname = str("hostname")
	task.Command = str("command")
	task.Arguments = str("arguments")
	task.Timeout = intv("timeout")
	task.Sleep = intv("sleep")
	task.RetryCount = intv("retry_count")
	task.RetryDelay = intv("retry_delay")
	task.SuccessExpr = str("success_expr")
	task.FailureExpr = str("failure_expr")

	task.OnSuccess = intPtr("on_success")
	task.OnFailure = intPtr("on_failure")
	task.Next = intPtr("next")
	task.Return = intPtr("return")

	task.Members = intList("members")
	task.MaxParallel = intv("max_parallel")
	task.Rule = str("rule")
	task.RetryFailed = boolv("retry_failed")

	task.Condition = str("condition")
	task.IfTrueTasks = intList("if_true_tasks")
	task.IfFalseTasks = intList("if_false_tasks")

	task.LoopTasks = intList("loop_tasks")
	task.LoopCount = intv("loop_count")
	task.BreakOnSuccess = boolv("break_on_success")
	task.BreakOnFailure = boolv("break_on_failure")

	if perr != nil {
		return nil, perr
	}

	if task.Kind == types.KindLeaf {
		defaults := leafDefaults
		if err := mergo.Merge(task, defaults); err != nil {
			return nil, types.NewParseError("", lineNo, "applying leaf task defaults", err)
		}
	}

	return task, nil
}
