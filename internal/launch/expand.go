package launch

import (
	"os"
	"strings"
)

// expandShell expands $VAR and ${VAR} references in s against the process
// environment, mirroring the shell-expansion syntax spec.md §4.11 step 11
// allows in a Unit's cd. A reference to an undefined variable is an
// error (spec §7's Expand kind) rather than expanding to empty string,
// unlike os.Expand's default behavior.
func expandShell(s string) (string, error) {
	var undefined string
	expanded := os.Expand(s, func(name string) string {
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if undefined == "" {
			undefined = name
		}
		return ""
	})
	if undefined != "" {
		return "", &Error{Kind: ErrExpand, Cause: undefinedVarError(undefined)}
	}
	if strings.HasPrefix(expanded, "~") {
		if home, ok := os.LookupEnv("HOME"); ok {
			expanded = home + strings.TrimPrefix(expanded, "~")
		}
	}
	return expanded, nil
}

type undefinedVarError string

func (e undefinedVarError) Error() string { return "undefined variable: " + string(e) }
