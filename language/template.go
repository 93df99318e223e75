package language

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// Template placeholders
const (
	PlaceholderSource = "{src}"
	PlaceholderBinary = "{bin}"
	PlaceholderDir    = "{dir}"
	PlaceholderClass  = "{class}"
)

// commandTemplate is a pre-split command line with placeholders
type commandTemplate []string

func parseTemplate(tpl string) (commandTemplate, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, nil
	}
	fields, err := shlex.Split(tpl)
	if err != nil {
		return nil, fmt.Errorf("parse command template %q: %w", tpl, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("command template %q is empty", tpl)
	}
	return fields, nil
}

// expand substitutes placeholders field by field; each field stays one argument
func (t commandTemplate) expand(vars map[string]string) []string {
	if len(t) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, key, value)
	}
	replacer := strings.NewReplacer(pairs...)

	args := make([]string, len(t))
	for i, field := range t {
		args[i] = replacer.Replace(field)
	}
	return args
}

// program returns the executable named by the template, or "" when it is a
// placeholder resolved at run time (such as a compiled binary).
func (t commandTemplate) program() string {
	if len(t) == 0 || strings.Contains(t[0], "{") {
		return ""
	}
	return t[0]
}
