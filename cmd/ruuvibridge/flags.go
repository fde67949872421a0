package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/config"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// options holds the parsed command line.
type options struct {
	configPath string

	// mappings are the --map entries, in command line order.
	mappings []config.MappingConfig

	// dryRunCycles > 0 prints payloads instead of sending them and stops
	// after that many poll cycles.
	dryRunCycles int

	verbosity   int
	syslog      bool
	persist     bool
	showVersion bool
}

// parseFlags parses the command line (without the program name).
//
// Parameters:
//   - args: Arguments after the program name
//   - output: Destination for usage text
//
// Returns:
//   - *options: Parsed options
//   - error: pflag.ErrHelp for -h/--help, otherwise a description of the bad flag
func parseFlags(args []string, output io.Writer) (*options, error) {
	opts := &options{}
	var maps []string

	fs := pflag.NewFlagSet("ruuvibridge", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVarP(&opts.configPath, "config", "c", getConfigPath(), "path to the YAML configuration file (env RUUVIBRIDGE_CONFIG)")
	fs.StringArrayVar(&maps, "map", nil, "add a name mapping as ADDRESS,NAME (repeatable)")
	fs.IntVar(&opts.dryRunCycles, "dryrun", 0, "print sink payloads instead of sending them and stop after N poll cycles")
	fs.CountVarP(&opts.verbosity, "verbose", "v", "more verbose logging (repeatable)")
	fs.BoolVar(&opts.syslog, "syslog", false, "log to the local syslog daemon")
	fs.BoolVar(&opts.persist, "persist", false, "store --map entries in the database")
	fs.BoolVar(&opts.showVersion, "version", false, "print the version and exit")
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: ruuvibridge [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if opts.dryRunCycles < 0 {
		return nil, fmt.Errorf("--dryrun must not be negative")
	}

	for _, m := range maps {
		mapping, err := parseMapping(m)
		if err != nil {
			return nil, err
		}
		opts.mappings = append(opts.mappings, mapping)
	}
	if opts.persist && len(opts.mappings) == 0 {
		return nil, fmt.Errorf("--persist needs at least one --map")
	}

	return opts, nil
}

// parseMapping splits an ADDRESS,NAME flag value. The name may contain
// further commas. The address itself is checked by the name table.
func parseMapping(value string) (config.MappingConfig, error) {
	addr, name, ok := strings.Cut(value, ",")
	addr = strings.TrimSpace(addr)
	name = strings.TrimSpace(name)
	if !ok || addr == "" || name == "" {
		return config.MappingConfig{}, fmt.Errorf("--map %q: want ADDRESS,NAME", value)
	}
	return config.MappingConfig{Address: addr, Name: name}, nil
}

// getConfigPath returns the configuration file path.
// Uses RUUVIBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("RUUVIBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
