package cli

import (
	"context"
	"encoding/json"
	"fmt"

	flag "github.com/spf13/pflag"
)

func (a *app) printConfigCmd() *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return a.execPrintConfig(o)
		},
	}
}

func (a *app) execPrintConfig(o *IO) error {
	data, err := json.MarshalIndent(a.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("format config: %w", err)
	}

	o.Println(string(data))

	if path := a.cfg.HistoryPath(); path != "" {
		o.Println("# history:", path)
	}

	o.Println("")
	o.Println("# sources")

	if a.cfg.Sources.Global == "" && a.cfg.Sources.Explicit == "" {
		o.Println("(defaults only)")

		return nil
	}

	if a.cfg.Sources.Global != "" {
		o.Println("global_config=" + a.cfg.Sources.Global)
	}

	if a.cfg.Sources.Explicit != "" {
		o.Println("explicit_config=" + a.cfg.Sources.Explicit)
	}

	return nil
}
