package cli

import (
	"fmt"
	"strings"

	"github.com/roach88/vaultrev/internal/ir"
)

// parseAssignments turns Field=value flags into a value map. Field names
// are case-sensitive item columns.
func parseAssignments(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid assignment %q: expected Field=value", pair))
		}
		if !ir.IsKnownField(name) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown field %q: must be one of %v", name, ir.KnownFields()))
		}
		if _, dup := values[name]; dup {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("field %s assigned twice", name))
		}
		values[name] = unescapeValue(value)
	}
	return values, nil
}

// unescapeValue expands \n so multi-line values fit in one flag.
func unescapeValue(s string) string {
	return strings.NewReplacer(`\\`, `\`, `\n`, "\n").Replace(s)
}

// oneLine renders a field value on a single line for text output.
func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", `\n`)
}
