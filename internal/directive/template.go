package directive

import (
	"fmt"
	"strings"
)

// Vars holds the values a directive template is rendered with. Every
// {{name}} placeholder must have an entry; conditional blocks collapse
// when their variable is empty or absent.
type Vars map[string]string

const (
	tagOpen  = "{{"
	tagClose = "}}"
	tagIf    = "#if"
	tagEndIf = "/if"
)

// Render expands a directive template: {{name}} placeholders are replaced
// from vars, and {{#if name}}...{{/if}} blocks (which nest) render only
// when the named variable is non-empty. A placeholder with no entry in
// vars is an error, except inside a collapsed block.
func Render(tmpl string, vars Vars) (string, error) {
	var out strings.Builder
	if _, err := renderBlock(&out, tmpl, vars, false, true); err != nil {
		return "", err
	}
	return out.String(), nil
}

// renderBlock consumes input until the end of the template or the
// {{/if}} that closes the enclosing block, returning the unconsumed
// tail. When emit is false the block is collapsed: structure is still
// parsed so nesting stays balanced, but nothing is written or required.
func renderBlock(out *strings.Builder, s string, vars Vars, nested, emit bool) (string, error) {
	for {
		open := strings.Index(s, tagOpen)
		if open < 0 {
			if nested {
				return "", fmt.Errorf("unclosed %s%s ...%s block in directive template", tagOpen, tagIf, tagClose)
			}
			if emit {
				out.WriteString(s)
			}
			return "", nil
		}
		if emit {
			out.WriteString(s[:open])
		}
		s = s[open+len(tagOpen):]

		end := strings.Index(s, tagClose)
		if end < 0 {
			return "", fmt.Errorf("unterminated %s tag in directive template", tagOpen)
		}
		tag := strings.TrimSpace(s[:end])
		s = s[end+len(tagClose):]

		switch {
		case tag == tagEndIf:
			if !nested {
				return "", fmt.Errorf("dangling %s%s%s in directive template", tagOpen, tagEndIf, tagClose)
			}
			return s, nil

		case strings.HasPrefix(tag, tagIf+" "):
			name := strings.TrimSpace(strings.TrimPrefix(tag, tagIf+" "))
			rest, err := renderBlock(out, s, vars, true, emit && vars[name] != "")
			if err != nil {
				return "", err
			}
			s = rest

		default:
			if !emit {
				continue
			}
			val, ok := vars[tag]
			if !ok {
				return "", fmt.Errorf("missing template variables: %s", tag)
			}
			out.WriteString(val)
		}
	}
}
