package yaml

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

func Unmarshal(in []byte, out interface{}) (err error) {
	return yaml.Unmarshal(in, out)
}

func Encode(v any, indent int) ([]byte, error) {
	b := bytes.NewBuffer(nil)
	e := yaml.NewEncoder(b)
	e.SetIndent(indent)

	if err := e.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Merge unmarshals every source into out one by one, so later sources
// override keys of earlier ones. Empty sources are skipped.
func Merge(out any, sources ...[]byte) error {
	for _, src := range sources {
		if len(src) == 0 {
			continue
		}
		if err := yaml.Unmarshal(src, out); err != nil {
			return err
		}
	}
	return nil
}
