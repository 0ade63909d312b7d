// ABOUTME: Parsed AST for the success/failure condition grammar (§4.1)
// ABOUTME: Parsing happens once per expression; evaluation walks the tree, never a string

package condition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/taskerd/tasker/pkg/types"
)

// CompareOp is the comparison operator in an @ref@<op>literal atom.
type CompareOp string

const (
	OpEqual    CompareOp = "="
	OpNotEqual CompareOp = "!="
	OpMatch    CompareOp = "~"
)

// Combinator joins atoms; | and & may not mix in one expression.
type Combinator int

const (
	CombinatorNone Combinator = iota
	CombinatorOr
	CombinatorAnd
)

// Atom is one term of a condition expression.
type Atom struct {
	IsExit   bool
	ExitCode int

	IsBool  bool
	BoolVal bool

	// comparison atom
	Ref     string // raw reference text, e.g. "1_stdout" or "myvar"
	Op      CompareOp
	Literal string
	Regex   *regexp.Regexp // precompiled when Op == OpMatch
}

// AST is a fully parsed condition expression.
type AST struct {
	Combinator Combinator
	Atoms      []Atom
	Source     string
}

var exitPattern = regexp.MustCompile(`^exit_(-?\d+)$`)
var refCmpPattern = regexp.MustCompile(`^@([A-Za-z0-9_]+)@(!=|=|~)(.*)$`)

// Parse compiles a condition expression into an AST. Called once per
// distinct expression; callers (the Evaluator, or a validator running
// ahead of execution) are responsible for caching the result.
func Parse(expr string) (*AST, error) {
	hasOr := strings.Contains(expr, "|")
	hasAnd := strings.Contains(expr, "&")
	if hasOr && hasAnd {
		return nil, fmt.Errorf("condition %q mixes | and & which is not supported", expr)
	}

	var parts []string
	combinator := CombinatorNone
	switch {
	case hasOr:
		parts = strings.Split(expr, "|")
		combinator = CombinatorOr
	case hasAnd:
		parts = strings.Split(expr, "&")
		combinator = CombinatorAnd
	default:
		parts = []string{expr}
	}

	atoms := make([]Atom, 0, len(parts))
	for _, raw := range parts {
		atom, err := parseAtom(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", expr, err)
		}
		atoms = append(atoms, atom)
	}

	return &AST{Combinator: combinator, Atoms: atoms, Source: expr}, nil
}

func parseAtom(s string) (Atom, error) {
	switch s {
	case "true":
		return Atom{IsBool: true, BoolVal: true}, nil
	case "false":
		return Atom{IsBool: true, BoolVal: false}, nil
	}

	if m := exitPattern.FindStringSubmatch(s); m != nil {
		code, err := strconv.Atoi(m[1])
		if err != nil {
			return Atom{}, fmt.Errorf("invalid exit code in %q", s)
		}
		return Atom{IsExit: true, ExitCode: code}, nil
	}

	if m := refCmpPattern.FindStringSubmatch(s); m != nil {
		ref, op, literal := m[1], CompareOp(m[2]), m[3]
		atom := Atom{Ref: ref, Op: op, Literal: literal}
		if op == OpMatch {
			re, err := regexp.Compile(literal)
			if err != nil {
				return Atom{}, fmt.Errorf("invalid regex %q: %w", literal, err)
			}
			atom.Regex = re
		}
		return atom, nil
	}

	return Atom{}, fmt.Errorf("unrecognized atom %q", s)
}

// Eval evaluates the AST's atoms left-to-right with short-circuiting,
// substituting references through sub and comparing against exitCode
// for exit_<n> atoms.
func (a *AST) Eval(exitCode int, sub types.Substituter) (bool, error) {
	switch a.Combinator {
	case CombinatorOr:
		for _, atom := range a.Atoms {
			v, err := evalAtom(atom, exitCode, sub)
			if err != nil {
				return false, err
			}
			if v {
				return true, nil
			}
		}
		return false, nil
	case CombinatorAnd:
		for _, atom := range a.Atoms {
			v, err := evalAtom(atom, exitCode, sub)
			if err != nil {
				return false, err
			}
			if !v {
				return false, nil
			}
		}
		return true, nil
	default:
		return evalAtom(a.Atoms[0], exitCode, sub)
	}
}

func evalAtom(atom Atom, exitCode int, sub types.Substituter) (bool, error) {
	switch {
	case atom.IsBool:
		return atom.BoolVal, nil
	case atom.IsExit:
		return exitCode == atom.ExitCode, nil
	default:
		value, err := sub.Substitute("@" + atom.Ref + "@")
		if err != nil {
			return false, err
		}
		switch atom.Op {
		case OpEqual:
			return value == atom.Literal, nil
		case OpNotEqual:
			return value != atom.Literal, nil
		case OpMatch:
			return atom.Regex.MatchString(value), nil
		}
		return false, fmt.Errorf("unknown comparison operator %q", atom.Op)
	}
}
