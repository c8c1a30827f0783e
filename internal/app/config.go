package app

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/camgrab/camgrab/pkg/shell"
	"github.com/camgrab/camgrab/pkg/yaml"
)

// DefaultConfig is used when no -config flag is given, missing file is fine
const DefaultConfig = "camgrab.yaml"

var configs [][]byte

// LoadConfig applies all configs to v in command line order
func LoadConfig(v any) error {
	return yaml.Merge(v, configs...)
}

// configFlag collects every -config value
type configFlag []string

func (c *configFlag) String() string {
	return strings.Join(*c, " ")
}

func (c *configFlag) Set(value string) error {
	*c = append(*c, value)
	return nil
}

func initConfig(values configFlag) {
	configs, ConfigPath = readConfigs(values)
}

// readConfigs turns -config values into YAML documents. A value is inline
// YAML `{...}`, a dotted assignment `a.b=c` or a file path. Only the first
// file path is returned, missing files are skipped.
func readConfigs(values []string) (docs [][]byte, path string) {
	if len(values) == 0 {
		values = []string{DefaultConfig}
	}

	for _, value := range values {
		if value == "" {
			continue
		}

		if value[0] == '{' {
			docs = append(docs, []byte(value))
			continue
		}

		if doc := assignment(value); doc != nil {
			docs = append(docs, doc)
			continue
		}

		if path == "" {
			path = value
			if abs, err := filepath.Abs(value); err == nil {
				path = abs
			}
		}

		if data, err := os.ReadFile(value); err == nil {
			docs = append(docs, []byte(shell.ReplaceEnvVars(string(data))))
		}
	}

	return
}

// assignment converts `capture.device=/dev/video2` to a block YAML document:
//
//	capture:
//	  device: /dev/video2
//
// It returns nil for values without a dotted key.
func assignment(s string) []byte {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return nil
	}

	keys := strings.Split(key, ".")
	if len(keys) < 2 {
		return nil
	}

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat("  ", i))
		b.WriteString(k)
		b.WriteByte(':')
	}
	b.WriteString(" " + value + "\n")

	return []byte(b.String())
}
