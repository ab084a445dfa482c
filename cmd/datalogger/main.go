package main

import (
	"github.com/robotalks/datalogger/pkg/cli/sh"
	"github.com/robotalks/datalogger/pkg/env"

	_ "github.com/robotalks/datalogger/pkg/sim/firmware"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
