package main

import (
	"github.com/autopeer-io/remotepilot/cmd/rpilot-edge-agent/app"
)

func main() {
	app.NewApp().Run()
}
