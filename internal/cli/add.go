package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

// ErrUnknownMethod is returned for an add method that does not exist.
var ErrUnknownMethod = errors.New("not an available method for add (doi, isbn, bibtex, json, template)")

const defaultTemplateType = "book"

func (a *app) addCmd() *Command {
	return &Command{
		Flags: flag.NewFlagSet("add", flag.ContinueOnError),
		Usage: "add METHOD [ID|FILE|TYPE]",
		Short: "Add entries to the bibliography",
		Long: `Add entries to the bibliography. Methods:

  doi ID         fetch the reference of a DOI (fetchref)
  isbn ID        fetch the reference of an ISBN (fetchref, isbn_services)
  bibtex FILE    convert a BibTeX file to CSL-JSON (pandoc) and add it
  json FILE      add a CSL-JSON file (csl2psql)
  template TYPE  edit a CSL-JSON template of TYPE (default book) and add it`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("%w: METHOD", ErrArgumentRequired)
			}

			method, arg := args[0], ""
			if len(args) > 1 {
				arg = args[1]
			}

			if method != "template" && arg == "" {
				return fmt.Errorf("%w: add %s needs an argument", ErrArgumentRequired, method)
			}

			if method == "bibtex" || method == "json" {
				err := a.requireFile(arg)
				if err != nil {
					return err
				}
			}

			dir, err := a.fs.MkdirTemp("", "retrolire.add.*")
			if err != nil {
				return fmt.Errorf("create temporary directory: %w", err)
			}

			defer func() { _ = a.fs.RemoveAll(dir) }()

			switch method {
			case "doi":
				return a.addFetched(ctx, o, dir, "doi", arg)
			case "isbn":
				return a.addFetched(ctx, o, dir, "isbn", arg, "--services", a.cfg.ISBNServices)
			case "bibtex":
				return a.addBibtex(ctx, o, dir, arg)
			case "json":
				return a.addJSON(ctx, o, arg)
			case "template":
				return a.addTemplate(ctx, o, dir, arg)
			default:
				return fmt.Errorf("%w: %s", ErrUnknownMethod, method)
			}
		},
	}
}

func (a *app) addFetched(ctx context.Context, o *IO, dir, kind, id string, extra ...string) error {
	bib := filepath.Join(dir, "fetched.bib")

	argv := append([]string{"fetchref", kind, id}, extra...)

	err := a.runTool(ctx, o, append(argv, "-o", bib)...)
	if err != nil {
		return err
	}

	return a.addBibtex(ctx, o, dir, bib)
}

func (a *app) addBibtex(ctx context.Context, o *IO, dir, bib string) error {
	out := filepath.Join(dir, "converted.json")

	err := a.runTool(ctx, o, "pandoc", "-i", bib, "-o", out, "-f", "bibtex", "-t", "csljson")
	if err != nil {
		return err
	}

	return a.addJSON(ctx, o, out)
}

func (a *app) addJSON(ctx context.Context, o *IO, path string) error {
	return a.runTool(ctx, o, "csl2psql", path, a.cfg.Connection, "-t", "entry", "-T", "_entry")
}

func (a *app) addTemplate(ctx context.Context, o *IO, dir, kind string) error {
	if kind == "" {
		kind = defaultTemplateType
	}

	data, err := json.MarshalIndent(cslTemplate(kind), "", "  ")
	if err != nil {
		return fmt.Errorf("template: %w", err)
	}

	path := filepath.Join(dir, "template.json")

	err = a.fs.WriteFile(path, append(data, '\n'), 0o600)
	if err != nil {
		return fmt.Errorf("write template: %w", err)
	}

	err = a.runEditor(ctx, o, path)
	if err != nil {
		return err
	}

	return a.addJSON(ctx, o, path)
}

// cslTemplate is a one-item CSL-JSON array with the usual fields left blank.
func cslTemplate(kind string) []map[string]any {
	return []map[string]any{{
		"id":              "",
		"type":            kind,
		"title":           "",
		"author":          []map[string]string{{"family": "", "given": ""}},
		"issued":          map[string]any{"date-parts": [][]int{{}}},
		"publisher":       "",
		"publisher-place": "",
	}}
}

// requireFile fails with ErrFileNotFound unless path exists.
func (a *app) requireFile(path string) error {
	ok, err := a.fs.Exists(path)
	if err != nil {
		return fmt.Errorf("check %s: %w", path, err)
	}

	if !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	return nil
}

// runTool runs an external program with the command's output streams.
func (a *app) runTool(ctx context.Context, o *IO, argv ...string) error {
	a.log.Debug("run", zap.Strings("argv", argv))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = o.Out()
	cmd.Stderr = o.ErrOut()

	err := cmd.Run()
	if err != nil {
		return fmt.Errorf("%s: %w", argv[0], err)
	}

	return nil
}
