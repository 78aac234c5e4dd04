package flow

import (
	"os"
	"sort"
	"strings"

	"github.com/roach88/conformer/internal/failure"
)

// expand substitutes ${name} references from the run variables. Unknown
// names are an error so a typo never types an empty password.
func (r *runner) expand(s string) (string, error) {
	return Expand(s, r.vars)
}

// Expand substitutes ${name} and $name references in s from vars.
func Expand(s string, vars map[string]string) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}
	var missing []string
	out := os.Expand(s, func(name string) string {
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", failure.New(failure.KindFlowError, "undefined variable(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}
