package pseudoshell

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja"
)

var (
	forHeader   = regexp.MustCompile(`^for\s+(.+?)\s+in\s+(.+?)\s*:$`)
	whileHeader = regexp.MustCompile(`^while\s+(.+?)\s*:$`)
	ifHeader    = regexp.MustCompile(`^if\s+(.+?)\s*:$`)
	elifHeader  = regexp.MustCompile(`^elif\s+(.+?)\s*:$`)
	elseHeader  = regexp.MustCompile(`^else\s*:$`)
)

// parseHeader builds the block kind opened by line.
func parseHeader(word, line string) (blockKind, error) {
	switch word {
	case "for":
		m := forHeader.FindStringSubmatch(line)
		if m == nil {
			return nil, &SyntaxError{Line: line, Msg: "expected 'for <target> in <expression>:'"}
		}
		return &forBlock{variter: m[1], iterator: m[2]}, nil
	case "while":
		m := whileHeader.FindStringSubmatch(line)
		if m == nil {
			return nil, &SyntaxError{Line: line, Msg: "expected 'while <condition>:'"}
		}
		return &whileBlock{condition: m[1]}, nil
	case "if":
		m := ifHeader.FindStringSubmatch(line)
		if m == nil {
			return nil, &SyntaxError{Line: line, Msg: "expected 'if <condition>:'"}
		}
		return &ifBlock{branches: []ifBranch{{condition: m[1], start: 0}}}, nil
	}
	return nil, &SyntaxError{Line: line, Msg: fmt.Sprintf("unknown block %q", word)}
}

// addElse registers the single else clause allowed in for and while blocks.
func addElse(l *Loop, clause, line string) error {
	if clause != "else" {
		return &SyntaxError{Line: line, Msg: fmt.Sprintf("%q is not allowed in a %s block", clause, l.kind.name())}
	}
	if !elseHeader.MatchString(line) {
		return &SyntaxError{Line: line, Msg: "expected 'else:'"}
	}
	if l.elseIndex >= 0 {
		return &SyntaxError{Line: line, Msg: "duplicate else clause"}
	}
	l.elseIndex = len(l.buffer)
	return nil
}

type forBlock struct {
	variter  string
	iterator string
}

func (b *forBlock) name() string { return "for" }

func (b *forBlock) addClause(l *Loop, clause, line string) error {
	return addElse(l, clause, line)
}

// target is the assignment target of each iteration. Several names are
// bound by destructuring.
func (b *forBlock) target() string {
	t := strings.TrimSpace(b.variter)
	if !strings.Contains(t, ",") {
		return t
	}
	t = strings.TrimSuffix(strings.TrimPrefix(t, "("), ")")
	return "[" + t + "]"
}

func (b *forBlock) exec(ctx context.Context, l *Loop) (Result, error) {
	results, err := b.iterate(ctx, l)
	if err != nil {
		return Result{}, err
	}
	return results.Join("\n"), nil
}

// iterate runs the body once per item and the else body once after the
// iterable is exhausted, returning one result per pass.
func (b *forBlock) iterate(ctx context.Context, l *Loop) (*ResultsList, error) {
	env := l.shell.env
	source, err := l.provisional(ctx, b.iterator)
	if err != nil {
		return nil, err
	}
	items, err := env.iterate(ctx, source)
	if err != nil {
		var exit *ExitError
		if errors.As(err, &exit) {
			return nil, exit
		}
		return nil, newExecutionError(b.iterator, err)
	}

	assign := NewLine(env, b.target()+" = "+env.names.Item)
	results := NewResultsList()
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := env.Set(env.names.Item, item); err != nil {
			return nil, newExecutionError(assign.Text(), err)
		}
		if _, err := assign.Exec(ctx); err != nil {
			return nil, err
		}
		res, err := l.ExecBuffer(ctx, 0, l.elseIndex)
		if err != nil {
			return nil, err
		}
		results.Append(res)
	}

	if l.elseIndex >= 0 {
		res, err := l.ExecBuffer(ctx, l.elseIndex, -1)
		if err != nil {
			return nil, err
		}
		results.Append(res)
	}
	return results, nil
}

type whileBlock struct {
	condition string
}

func (b *whileBlock) name() string { return "while" }

func (b *whileBlock) addClause(l *Loop, clause, line string) error {
	return addElse(l, clause, line)
}

func (b *whileBlock) exec(ctx context.Context, l *Loop) (Result, error) {
	results := NewResultsList()
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		cond, err := l.provisional(ctx, b.condition)
		if err != nil {
			return Result{}, err
		}
		if !truthy(cond) {
			break
		}
		res, err := l.ExecBuffer(ctx, 0, l.elseIndex)
		if err != nil {
			return Result{}, err
		}
		results.Append(res)
	}

	if l.elseIndex >= 0 {
		res, err := l.ExecBuffer(ctx, l.elseIndex, -1)
		if err != nil {
			return Result{}, err
		}
		results.Append(res)
	}
	return results.Join("\n"), nil
}

type ifBranch struct {
	condition string
	start     int
}

type ifBlock struct {
	branches []ifBranch
}

func (b *ifBlock) name() string { return "if" }

func (b *ifBlock) addClause(l *Loop, clause, line string) error {
	if clause == "else" {
		return addElse(l, clause, line)
	}
	m := elifHeader.FindStringSubmatch(line)
	if m == nil {
		return &SyntaxError{Line: line, Msg: "expected 'elif <condition>:'"}
	}
	if l.elseIndex >= 0 {
		return &SyntaxError{Line: line, Msg: "elif after else"}
	}
	b.branches = append(b.branches, ifBranch{condition: m[1], start: len(l.buffer)})
	return nil
}

// exec runs the body range of the first branch whose condition holds, or
// the else body. Nothing runs when no branch matches and there is no else.
func (b *ifBlock) exec(ctx context.Context, l *Loop) (Result, error) {
	for i, br := range b.branches {
		cond, err := l.provisional(ctx, br.condition)
		if err != nil {
			return Result{}, err
		}
		if !truthy(cond) {
			continue
		}
		end := l.elseIndex
		if i+1 < len(b.branches) {
			end = b.branches[i+1].start
		}
		return l.ExecBuffer(ctx, br.start, end)
	}
	if l.elseIndex >= 0 {
		return l.ExecBuffer(ctx, l.elseIndex, -1)
	}
	return NewResult(""), nil
}

func truthy(v goja.Value) bool {
	return v != nil && v.ToBoolean()
}
