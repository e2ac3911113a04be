package config

import (
	"flag"
	"strings"
)

// Flags holds command-line overrides bound to a FlagSet.
type Flags struct {
	config   *string
	debug    *bool
	models   *string
	charset  *string
	parallel *bool
	addr     *string
	lod      *int
}

// RegisterFlags defines the shared flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		config:   fs.String("config", "", "Path to config file"),
		debug:    fs.Bool("debug", false, "Enable debug logging"),
		models:   fs.String("models", "", "Comma-separated model search paths"),
		charset:  fs.String("charset", "", "Charset of model names"),
		parallel: fs.Bool("parallel", false, "Decode model files concurrently"),
		addr:     fs.String("addr", "", "Server listen address"),
		lod:      fs.Int("lod", -1, "LOD to export"),
	}
}

// ConfigPath returns the explicit config path if provided via -config.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return *f.config
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if *f.debug {
		cfg.Logging.Level = "debug"
	}
	if *f.models != "" {
		var paths []string
		for _, p := range strings.Split(*f.models, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		cfg.Models.SearchPaths = paths
	}
	if *f.charset != "" {
		cfg.Models.Charset = *f.charset
	}
	if *f.parallel {
		cfg.Models.Parallel = true
	}
	if *f.addr != "" {
		cfg.Server.Addr = *f.addr
	}
	if *f.lod >= 0 {
		cfg.Export.LOD = *f.lod
	}
}
