package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/camgrab/camgrab/pkg/yaml"
	"github.com/stretchr/testify/require"
)

func resetConfig(t *testing.T) {
	prevPath, prevConfigs := ConfigPath, configs
	t.Cleanup(func() {
		ConfigPath, configs = prevPath, prevConfigs
	})
	ConfigPath, configs = "", nil
}

func TestAssignment(t *testing.T) {
	require.Equal(t, "capture:\n  device: /dev/video2\n", string(assignment("capture.device=/dev/video2")))
	require.Equal(t, "log:\n  level: trace\n", string(assignment("log.level=trace")))
	require.Equal(t, "a:\n  b:\n    c: 1=2\n", string(assignment("a.b.c=1=2")))
	require.Nil(t, assignment("level=trace"))
	require.Nil(t, assignment("camgrab.yaml"))

	var cfg map[string]map[string]string
	require.Nil(t, yaml.Unmarshal(assignment("capture.device=/dev/video2"), &cfg))
	require.Equal(t, "/dev/video2", cfg["capture"]["device"])
}

func TestInitConfig(t *testing.T) {
	resetConfig(t)
	t.Setenv("CAMGRAB_PREFIX", "frame")

	path := filepath.Join(t.TempDir(), "camgrab.yaml")
	data := `capture:
  device: /dev/video1
  prefix: ${CAMGRAB_PREFIX}
  timeout: 3s
`
	require.Nil(t, os.WriteFile(path, []byte(data), 0o644))

	initConfig(configFlag{path, "capture.device=/dev/video2", "{capture: {output: frames}}", ""})
	require.Equal(t, path, ConfigPath)
	require.Len(t, configs, 3)

	var cfg struct {
		Capture struct {
			Device  string        `yaml:"device"`
			Output  string        `yaml:"output"`
			Prefix  string        `yaml:"prefix"`
			Timeout time.Duration `yaml:"timeout"`
		} `yaml:"capture"`
	}
	cfg.Capture.Output = "output"

	require.Nil(t, LoadConfig(&cfg))
	require.Equal(t, "/dev/video2", cfg.Capture.Device)
	require.Equal(t, "frames", cfg.Capture.Output)
	require.Equal(t, "frame", cfg.Capture.Prefix)
	require.Equal(t, 3*time.Second, cfg.Capture.Timeout)
}

func TestInitConfigMissingFile(t *testing.T) {
	resetConfig(t)

	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.Nil(t, err)
	require.Nil(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	initConfig(nil)
	require.Equal(t, filepath.Join(dir, DefaultConfig), ConfigPath)
	require.Empty(t, configs)

	var cfg map[string]any
	require.Nil(t, LoadConfig(&cfg))
	require.Nil(t, cfg)
}

func TestLoadConfigError(t *testing.T) {
	resetConfig(t)

	initConfig(configFlag{"{capture: ["})

	var cfg map[string]any
	require.NotNil(t, LoadConfig(&cfg))
}

func TestReadConfigs(t *testing.T) {
	docs, path := readConfigs([]string{"{log: {level: debug}}", "missing.yaml", "other.yaml"})
	require.Len(t, docs, 1)
	require.True(t, filepath.IsAbs(path))
	require.Equal(t, "missing.yaml", filepath.Base(path))
}
