package main

import (
	"os"

	"github.com/camgrab/camgrab/internal/app"
	"github.com/camgrab/camgrab/internal/capture"
)

func main() {
	app.Usage = capture.Usage
	app.Init() // init config and logs

	os.Exit(capture.Run(app.Args))
}
