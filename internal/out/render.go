// Package out renders action results for the CLI in either machine (json)
// or human (plain) form.
package out

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ggonzalez94/walletd/internal/model"
)

func Render(w io.Writer, result model.ActionResult, mode string) error {
	if mode == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return renderPlain(w, result)
}

// renderPlain prints the message line, then one sorted key=value line for
// the structured payload when present.
func renderPlain(w io.Writer, result model.ActionResult) error {
	if _, err := fmt.Fprintln(w, result.Message); err != nil {
		return err
	}
	if len(result.Data) == 0 {
		return nil
	}
	line, err := toLine(normalizeValue(result.Data))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, line)
	return err
}

func normalizeValue(v any) any {
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return v
	}
	return out
}

func toLine(v any) (string, error) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, t[k]))
		}
		return strings.Join(parts, " "), nil
	default:
		buf, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(buf), nil
	}
}
