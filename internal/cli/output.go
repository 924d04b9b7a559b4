package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Write prints v as indented JSON, or as key: value lines for text output.
// Lists in text mode print one object per block.
func Write(w io.Writer, format Format, v any) error {
	if format != FormatText {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	switch val := generic.(type) {
	case []any:
		for i, item := range val {
			if i > 0 {
				fmt.Fprintln(w)
			}
			writeText(w, item)
		}
	default:
		writeText(w, val)
	}
	return nil
}

func writeText(w io.Writer, v any) {
	m, ok := v.(map[string]any)
	if !ok {
		fmt.Fprintln(w, v)
		return
	}
	keys := make([]string, 0, len(m))
	width := 0
	for k := range m {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		val := m[k]
		if val == nil {
			continue
		}
		switch val.(type) {
		case map[string]any, []any:
			b, _ := json.Marshal(val)
			val = string(b)
		}
		fmt.Fprintf(w, "%s%s  %v\n", k, strings.Repeat(" ", width-len(k)), val)
	}
}
