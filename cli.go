package main

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"

	"kclock/emu/log"
)

type mode byte

const (
	runMode     mode = iota // run the emulated machine
	versionMode             // show kclock version
)

type (
	CLI struct {
		Run     Run     `cmd:"" help:"Run the emulated machine. (default command)" default:"true"`
		Version Version `cmd:"" help:"Show kclock version."`

		Log logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`

		mode mode
	}

	Run struct {
		Config string `name:"config" help:"TOML configuration file." type:"path"`
		Stats  string `name:"stats" help:"Write final counters as JSON to FILE ('-' for stdout)." placeholder:"FILE"`
	}

	Version struct{}
)

var vars = kong.Vars{
	"log_help": "Enable logging for specified modules.",
}

type logModMask log.ModuleMask

func (m *logModMask) UnmarshalText(text []byte) error {
	for _, modname := range strings.Split(string(text), ",") {
		switch {
		case modname == "no":
			*m = 0
		case modname == "all":
			*m |= logModMask(log.ModuleMaskAll)
		default:
			mod, found := log.ModuleByName(modname)
			if !found {
				return fmt.Errorf("invalid log module %q", modname)
			}
			*m |= logModMask(mod.Mask())
		}
	}
	return nil
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("kclock"),
		kong.Description("Emulated i8254 interval timer with a virtual clock."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	switch ctx.Command() {
	case "version":
		cfg.mode = versionMode
	default:
		cfg.mode = runMode
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}

	loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
	var strs []string
	for _, m := range log.ModuleNames() {
		strs = append(strs, "    - "+m)
	}
	fmt.Printf(loggingHelp, strings.Join(strs, "\n"))
	return nil
}
