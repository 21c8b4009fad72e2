package main

import (
	"fmt"
	"os"

	"kclock/emu/log"
)

var version = "devel"

func main() {
	cli := parseArgs(os.Args[1:])

	if cli.Log != 0 {
		log.EnableDebugModules(log.ModuleMask(cli.Log))
	}

	switch cli.mode {
	case versionMode:
		fmt.Println("kclock", version)
	case runMode:
		checkf(runMachine(cli.Run), "machine run failed")
	}
}

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s: %s\n", fmt.Sprintf(format, args...), err)
	os.Exit(1)
}
