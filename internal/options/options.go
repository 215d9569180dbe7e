// Package options contains the program options.
package options

// Parameters contains file path options.
type Parameters struct {
	Input      string   `flag:"i" usage:"input mod file"`
	Output     string   `flag:"o" usage:"output file (default: <name>.rewritten.mrmd)"`
	References []string `flag:"ref" usage:"directories containing the game and framework assemblies"`
	Rules      string   `flag:"rules" usage:"YAML rule set file with additional rules"`
	Cache      string   `flag:"cache" usage:"SQLite cache file for rewritten mods"`
	Batch      string   `flag:"batch" usage:"batch process files matching pattern (e.g. mods/*.mrmd)"`
}

// Flags contains behavior options.
type Flags struct {
	Platform   string `flag:"platform" usage:"target platform: windows, linux, mac (default: auto-detect)"`
	CompiledOn string `flag:"compiled-on" usage:"platform the mod was built on (default: detect from references)"`
	Verify     bool   `flag:"verify" usage:"verify that rewriting the output again changes nothing"`
	Debug      bool   `flag:"debug" usage:"enable debug logging"`
	Quiet      bool   `flag:"q" usage:"quiet mode"`
}

// Telemetry contains trace export options, they are only set from the environment.
type Telemetry struct {
	Enabled  bool
	Endpoint string
}

// Program options of the rewriter.
type Program struct {
	Parameters
	Flags
	Telemetry
}
