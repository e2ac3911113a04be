// mdltool is a CLI utility for inspecting and converting Source engine models.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/srcmodel/internal/assets"
	"github.com/Faultbox/srcmodel/internal/config"
	"github.com/Faultbox/srcmodel/internal/export"
	"github.com/Faultbox/srcmodel/internal/inspect"
	"github.com/Faultbox/srcmodel/internal/logger"
	"github.com/Faultbox/srcmodel/internal/server"
	"github.com/Faultbox/srcmodel/pkg/sourcemodel"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "dump":
		cmdDump(args)
	case "list", "ls":
		cmdList(args)
	case "check":
		cmdCheck(args)
	case "export", "x":
		cmdExport(args)
	case "serve":
		cmdServe(args)
	case "config":
		cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`mdltool - Source engine model utility

Usage:
  mdltool <command> [options]

Commands:
  info <model>              Show structure counts of a model
  dump <model>              Dump the file headers of a model
  list                      List models under the search paths
  check [model...]          Load and validate models (all when none given)
  export <model> [output]   Convert a model to glTF (.glb or .gltf)
  serve                     Start the HTTP inspection server
  config                    Print the effective config, or save it

Models are named by their path without extension, relative to the search
paths, e.g. player/ctm_sas_variantA.

Common options:
  -config <file>     Config file (default ./config.yaml)
  -models <a,b>      Model search paths, later paths win
  -charset <name>    Charset of model names (default utf-8)
  -parallel          Decode the three model files concurrently
  -debug             Enable debug logging

Examples:
  mdltool info player/ctm_sas_variantA
  mdltool check -models /games/csgo/models
  mdltool export -lod 1 player/ctm_sas_variantA out/ctm_sas.glb
  mdltool serve -addr :8080
  mdltool config -models /games/csgo/models -save`)
}

// env holds what every command needs after flag parsing.
type env struct {
	cfg    *config.Config
	assets *assets.Manager
	loader *sourcemodel.Loader
}

// setup parses args with the shared flags plus any defined by the caller,
// then loads config, logging and the model search paths.
func setup(fs *flag.FlagSet, args []string) *env {
	cfg := loadConfig(fs, args)

	m := assets.NewManager()
	m.SetCaching(cfg.Models.Cache)
	m.SetCacheLimit(int64(cfg.Models.CacheMB) << 20)
	for _, dir := range cfg.Models.SearchPaths {
		if err := m.AddDir(dir); err != nil {
			logger.Warn("skipping search path", zap.String("path", dir), zap.Error(err))
			continue
		}
		logger.Debug("added search path", zap.String("path", dir))
	}

	loader := sourcemodel.NewLoader(m, sourcemodel.Options{
		Parallel: cfg.Models.Parallel,
		Charset:  cfg.Models.Charset,
		Logger:   logger.Log,
	})
	return &env{cfg: cfg, assets: m, loader: loader}
}

// loadConfig parses args and returns the merged config with logging initialized.
func loadConfig(fs *flag.FlagSet, args []string) *config.Config {
	flags := config.RegisterFlags(fs)
	fs.Parse(args)

	cfg, err := config.Load(flags)
	if err != nil {
		fatalf("Error: %v", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fatalf("Error: initializing logger: %v", err)
	}
	return cfg
}

func fatalf(format string, args ...interface{}) {
	logger.Sync()
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func (e *env) load(name string) *sourcemodel.SourceModel {
	model, err := e.loader.Load(modelName(name))
	if err != nil {
		fatalf("Error: %v", err)
	}
	return model
}

// modelName accepts names with or without the .mdl extension.
func modelName(name string) string {
	name = strings.TrimPrefix(path.Clean(strings.ReplaceAll(name, "\\", "/")), "/")
	if strings.EqualFold(path.Ext(name), sourcemodel.ExtMDL) {
		name = name[:len(name)-len(sourcemodel.ExtMDL)]
	}
	return name
}

func cmdInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print the summary as JSON")
	e := setup(fs, args)
	defer logger.Sync()

	if fs.NArg() < 1 {
		fatalf("Usage: mdltool info [-json] <model>")
	}

	summary := inspect.Summarize(e.load(fs.Arg(0)))
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fatalf("Error: %v", err)
		}
		return
	}
	if err := summary.WriteText(os.Stdout); err != nil {
		fatalf("Error: %v", err)
	}
}

func cmdDump(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	full := fs.Bool("full", false, "Dump the whole decoded tree, including vertex arrays")
	e := setup(fs, args)
	defer logger.Sync()

	if fs.NArg() < 1 {
		fatalf("Usage: mdltool dump [-full] <model>")
	}

	model := e.load(fs.Arg(0))
	if *full {
		inspect.Dump(os.Stdout, model.Studio, model.Topology, model.VertexData)
		return
	}
	inspect.DumpHeaders(os.Stdout, model)
}

func (e *env) modelNames() []string {
	files, err := e.assets.List(sourcemodel.ExtMDL)
	if err != nil {
		fatalf("Error: %v", err)
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = modelName(f)
	}
	return names
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("n", 0, "Limit output to N models (0 = all)")
	e := setup(fs, args)
	defer logger.Sync()

	names := e.modelNames()
	for i, name := range names {
		if *limit > 0 && i >= *limit {
			fmt.Printf("... and %d more\n", len(names)-i)
			break
		}
		fmt.Println(name)
	}
}

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	quiet := fs.Bool("q", false, "Only print failures")
	e := setup(fs, args)
	defer logger.Sync()

	names := fs.Args()
	if len(names) == 0 {
		names = e.modelNames()
	}
	// check reads each file once.
	e.assets.SetCaching(false)

	failed := 0
	for _, name := range names {
		name = modelName(name)
		model, err := e.loader.Load(name)
		if err != nil {
			failed++
			kind := "error"
			var loadErr *sourcemodel.LoadError
			if errors.As(err, &loadErr) {
				kind = loadErr.Kind.String()
			}
			fmt.Printf("FAIL  %-40s %s: %v\n", name, kind, err)
			logger.Error("model failed validation", zap.String("model", name), zap.String("kind", kind), zap.Error(err))
			continue
		}
		if !*quiet {
			fmt.Printf("OK    %-40s %d vertices, checksum %#08x\n", name, len(model.Positions), uint32(model.Checksum()))
		}
	}

	fmt.Printf("\n%d checked, %d failed\n", len(names), failed)
	logger.Sugar.Infof("checked %d models, %d failed", len(names), failed)
	if failed > 0 {
		logger.Sync()
		os.Exit(1)
	}
}

func cmdExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	e := setup(fs, args)
	defer logger.Sync()

	if fs.NArg() < 1 {
		fatalf("Usage: mdltool export [-lod N] <model> [output]")
	}

	model := e.load(fs.Arg(0))

	output := fs.Arg(1)
	if output == "" {
		ext := ".glb"
		if !e.cfg.Export.Binary {
			ext = ".gltf"
		}
		output = path.Base(model.Name) + ext
	}

	if err := export.ExportFile(model, e.cfg.Export.LOD, output); err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Printf("Exported %s (lod %d) to %s\n", model.Name, e.cfg.Export.LOD, output)
	logger.Info("exported model",
		zap.String("model", model.Name),
		zap.Int("lod", e.cfg.Export.LOD),
		zap.String("output", output))
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	e := setup(fs, args)
	defer logger.Sync()

	srv := server.New(e.loader, e.assets, server.Config{
		Addr:         e.cfg.Server.Addr,
		ReadTimeout:  e.cfg.Server.ReadTimeout,
		WriteTimeout: e.cfg.Server.WriteTimeout,
		DefaultLOD:   e.cfg.Export.LOD,
	}, logger.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil {
		fatalf("Error: %v", err)
	}
}

func cmdConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	output := fs.String("o", "", "Write the config to this file")
	save := fs.Bool("save", false, "Write the config to the user config directory")
	cfg := loadConfig(fs, args)
	defer logger.Sync()

	switch {
	case *output != "":
		if err := cfg.SaveTo(*output); err != nil {
			fatalf("Error: %v", err)
		}
		logger.Info("saved config", zap.String("path", *output))
		fmt.Printf("Saved config to %s\n", *output)
	case *save:
		path, err := cfg.Save()
		if err != nil {
			fatalf("Error: %v", err)
		}
		logger.Info("saved config", zap.String("path", path))
		fmt.Printf("Saved config to %s\n", path)
	default:
		if err := cfg.Encode(os.Stdout); err != nil {
			fatalf("Error: %v", err)
		}
	}
}
