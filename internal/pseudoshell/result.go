package pseudoshell

import (
	"fmt"
	"strings"
)

// Result is the textual outcome of one executed unit.
type Result struct {
	Text    string
	Success bool
}

// NewResult returns a successful result holding text.
func NewResult(text string) Result {
	return Result{Text: text, Success: true}
}

// Failure returns a failed result holding text.
func Failure(text string) Result {
	return Result{Text: text, Success: false}
}

// ResultOf builds a Result from a dynamically typed value. Only strings are
// accepted.
func ResultOf(v any) (Result, error) {
	s, ok := v.(string)
	if !ok {
		return Result{}, &TypeError{Op: "Result", Got: v}
	}
	return NewResult(s), nil
}

// Truthy reports whether the result carries any text.
func (r Result) Truthy() bool {
	return r.Text != ""
}

func (r Result) String() string {
	return r.Text
}

// ResultsList is an ordered sequence of results. Its aggregate success always
// mirrors the most recently added element.
type ResultsList struct {
	items   []Result
	success bool
	set     bool
}

// NewResultsList returns a list holding the given results.
func NewResultsList(items ...Result) *ResultsList {
	l := &ResultsList{}
	for _, r := range items {
		l.Append(r)
	}
	return l
}

// Append adds r and adopts its success.
func (l *ResultsList) Append(r Result) {
	l.items = append(l.items, r)
	l.success = r.Success
	l.set = true
}

// Extend appends every result of v. v may be a ResultsList, a []Result or a
// single Result; anything else is a TypeError.
func (l *ResultsList) Extend(v any) error {
	other, err := coerceResults(v)
	if err != nil {
		return err
	}
	l.items = append(l.items, other.items...)
	l.success = other.Success()
	l.set = true
	return nil
}

// SetSuccess overrides the aggregate success until the next mutation.
func (l *ResultsList) SetSuccess(ok bool) {
	l.success = ok
	l.set = true
}

// Success is the success of the last added element, or true for an empty list.
func (l *ResultsList) Success() bool {
	if !l.set {
		return true
	}
	return l.success
}

// Len returns the number of results.
func (l *ResultsList) Len() int {
	return len(l.items)
}

// Items returns a copy of the results in order.
func (l *ResultsList) Items() []Result {
	out := make([]Result, len(l.items))
	copy(out, l.items)
	return out
}

// Join concatenates every text with sep into one Result carrying the
// aggregate success.
func (l *ResultsList) Join(sep string) Result {
	texts := make([]string, len(l.items))
	for i, r := range l.items {
		texts[i] = r.Text
	}
	return Result{Text: strings.Join(texts, sep), Success: l.Success()}
}

func coerceResults(v any) (*ResultsList, error) {
	switch t := v.(type) {
	case *ResultsList:
		if t == nil {
			return nil, &TypeError{Op: "ResultsList", Got: v}
		}
		return t, nil
	case ResultsList:
		return &t, nil
	case []Result:
		return NewResultsList(t...), nil
	case Result:
		return NewResultsList(t), nil
	default:
		return nil, &TypeError{Op: "ResultsList", Got: v}
	}
}

// TypeError reports a value of the wrong type handed to a result container.
type TypeError struct {
	Op  string
	Got any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: unsupported type %T", e.Op, e.Got)
}
