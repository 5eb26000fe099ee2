package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/remotepilot/cmd/rpilot-inference/app"
)

func main() {
	app.NewApp().Run()
}
