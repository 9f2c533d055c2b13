/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"os"

	"github.com/spaghettifunk/curen/engine"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/testbed"
)

const defaultConfigPath = "curen.toml"

func main() {
	path := os.Getenv("CUREN_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}
	config, err := core.LoadConfig(path)
	if err != nil {
		core.LogFatal("failed to load configuration: %s", err)
	}

	e, err := engine.New(testbed.NewTestGame(config))
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("failed to initialize engine: %s", err)
	}

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogFatal("engine stopped: %s", runErr)
	}
}
