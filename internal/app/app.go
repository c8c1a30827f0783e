package app

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"
)

var Version = "0.3.0"

var ConfigPath string

// Args are positional arguments left after flags
var Args []string

// Usage is printed after flag defaults, set by the command before Init
var Usage string

func Init() {
	var confs configFlag
	var version bool

	flags := flag.CommandLine
	flags.Var(&confs, "config", "camgrab config (path to file or raw text), support multiple")
	flags.BoolVar(&version, "version", false, "Print the version of the application and exit")
	flags.Usage = printUsage
	_ = flags.Parse(os.Args[1:]) // ExitOnError

	if version {
		fmt.Println(versionString())
		os.Exit(0)
	}

	Args = flags.Args()

	initConfig(confs)
	initLogger()

	platform := fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	Logger.Info().Str("version", Version).Str("platform", platform).Msg("camgrab")
	Logger.Debug().Str("version", runtime.Version()).Msg("build")

	if ConfigPath != "" {
		Logger.Info().Str("path", ConfigPath).Msg("config")
	}
}

func printUsage() {
	out := flag.CommandLine.Output()
	if Usage != "" {
		_, _ = fmt.Fprintln(out, Usage)
	}
	flag.PrintDefaults()
}

func versionString() string {
	var vcsRevision string
	vcsTime := time.Now().Local()

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				vcsRevision = setting.Value
				if len(vcsRevision) > 7 {
					vcsRevision = vcsRevision[:7]
				}
				vcsRevision = "(" + vcsRevision + ")"
			case "vcs.time":
				vcsTime, _ = time.Parse(time.RFC3339, setting.Value)
			}
		}
	}

	return fmt.Sprintf("camgrab version %s%s: %s %s/%s", Version, vcsRevision, vcsTime.Local().String(), runtime.GOOS, runtime.GOARCH)
}
