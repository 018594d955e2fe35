package pseudoshell

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

// maxListItems bounds how many array elements are rendered.
const maxListItems = 20

// repr returns the printable representation of v, or "" when v is
// undefined or null.
func repr(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	if obj, ok := v.(*goja.Object); ok {
		if _, isFunc := goja.AssertFunction(obj); isFunc {
			return "[Function]"
		}
	}
	return formatExported(v.Export(), true)
}

// display is like repr but leaves strings unquoted, the way print shows them.
func display(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	if s, ok := v.Export().(string); ok {
		return s
	}
	return repr(v)
}

func formatExported(v any, quote bool) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		if quote {
			return strconv.Quote(t)
		}
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case []string:
		items := make([]any, len(t))
		for i, item := range t {
			items[i] = item
		}
		return formatExported(items, quote)
	case []any:
		if len(t) == 0 {
			return "[]"
		}
		n := len(t)
		if n > maxListItems {
			n = maxListItems
		}
		items := make([]string, 0, n+1)
		for _, item := range t[:n] {
			items = append(items, formatExported(item, true))
		}
		if len(t) > maxListItems {
			items = append(items, fmt.Sprintf("... (%d more items)", len(t)-maxListItems))
		}
		return "[" + strings.Join(items, ", ") + "]"
	case map[string]any:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	case *goja.Promise:
		return "[Promise " + promiseStateName(t.State()) + "]"
	default:
		return fmt.Sprintf("%v", t)
	}
}

func promiseStateName(s goja.PromiseState) string {
	switch s {
	case goja.PromiseStateFulfilled:
		return "fulfilled"
	case goja.PromiseStateRejected:
		return "rejected"
	default:
		return "pending"
	}
}
