package shell

import (
	"os"
	"regexp"
	"strings"
)

var envRe = regexp.MustCompile(`\${([^}{]+)}`)

// ReplaceEnvVars substitutes ${NAME} and ${NAME:default}, unknown names
// without default are left as is
func ReplaceEnvVars(text string) string {
	return envRe.ReplaceAllStringFunc(text, func(match string) string {
		key := match[2 : len(match)-1]

		var def string
		var dok bool

		if i := strings.IndexByte(key, ':'); i > 0 {
			key, def = key[:i], key[i+1:]
			dok = true
		}

		if value, ok := os.LookupEnv(key); ok {
			return value
		}

		if dok {
			return def
		}

		return match
	})
}
