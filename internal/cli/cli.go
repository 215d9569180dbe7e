// Package cli handles command line interface logic
package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/yinxiangshi/modrewrite/internal/options"
	"github.com/yinxiangshi/modrewrite/internal/platform"
)

// ParseFlags parses command line flags and returns program options
func ParseFlags() (options.Program, error) {
	return parseArgs(os.Args[0], os.Args[1:])
}

func parseArgs(name string, arguments []string) (options.Program, error) {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	var opts options.Program
	var references string
	readOptionFlags(flags, &opts, &references)

	err := flags.Parse(arguments)
	args := flags.Args()
	if err != nil || (len(args) == 0 && opts.Batch == "") {
		return opts, &UsageError{flags: flags}
	}

	if err := validateArgs(args); err != nil {
		return opts, err
	}

	opts.References = splitList(references)
	if err := normalizeOptions(&opts); err != nil {
		return opts, err
	}

	if opts.Batch == "" {
		opts.Input = args[0]
	}
	return opts, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: modrewrite [options] <mod file>\n\n")
	if e.flags != nil {
		e.flags.PrintDefaults()
	}
	fmt.Println()
}

// validateArgs checks if arguments are in correct order
func validateArgs(args []string) error {
	for i, arg := range args {
		if i > 0 && arg != "" && arg[0] == '-' {
			return &UsageError{
				msg: fmt.Sprintf("Potential argument %s found after mod file, please pass the mod file as last argument", arg),
			}
		}
	}
	return nil
}

// normalizeOptions normalizes and validates option values
func normalizeOptions(opts *options.Program) error {
	for _, value := range []*string{&opts.Platform, &opts.CompiledOn} {
		if *value == "" {
			continue
		}
		p, err := platform.Parse(*value)
		if err != nil {
			return fmt.Errorf("%w. Valid options: windows, linux, mac", err)
		}
		*value = p.String()
	}
	return nil
}

// splitList splits a comma separated flag value.
func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program, references *string) {
	flags.StringVar(&opts.Input, "i", "", "name of the input mod file")
	flags.StringVar(&opts.Output, "o", "", "name of the output file, <name>.rewritten.mrmd if no name given")
	flags.StringVar(references, "ref", "", "comma separated directories containing the game and framework assemblies")
	flags.StringVar(&opts.Rules, "rules", "", "YAML rule set file with additional rewrite rules")
	flags.StringVar(&opts.Cache, "cache", "", "SQLite cache file that stores rewritten mods")
	flags.StringVar(&opts.Batch, "batch", "", "process a batch of given path and file mask and automatically name the output files, for example mods/*.mrmd")
	flags.StringVar(&opts.Platform, "platform", "", "platform to rewrite for (windows, linux, mac) - if not the current operating system")
	flags.StringVar(&opts.CompiledOn, "compiled-on", "", "platform the mod was built on - if not detected from its assembly references")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
	flags.BoolVar(&opts.Verify, "verify", false, "verify the output by rewriting it again and checking that nothing changes")
}
