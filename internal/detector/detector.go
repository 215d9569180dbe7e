// Package detector handles target platform detection.
package detector

import (
	"fmt"
	"runtime"

	"github.com/retroenv/retrogolib/log"
	"github.com/yinxiangshi/modrewrite/internal/options"
	"github.com/yinxiangshi/modrewrite/internal/platform"
)

// Detector handles platform detection from options and the operating system.
type Detector struct {
	logger *log.Logger
	goos   string
}

// New creates a new platform detector.
func New(logger *log.Logger) *Detector {
	return &Detector{
		logger: logger,
		goos:   runtime.GOOS,
	}
}

// Detect determines the platform that mods are rewritten for.
// It first checks if a platform is explicitly specified in options, otherwise
// the platform of the running operating system is used.
func (d *Detector) Detect(opts options.Program) (platform.Platform, error) {
	if opts.Platform != "" {
		p, err := platform.Parse(opts.Platform)
		if err != nil {
			return "", fmt.Errorf("parsing platform option: %w", err)
		}
		return p, nil
	}

	p := d.detectFromOS()
	d.logger.Debug("Auto-detected platform",
		log.Stringer("platform", p),
		log.String("os", d.goos))
	return p, nil
}

// CompiledOn returns the platform the mod was built on if it was given in
// the options. An empty platform means it is detected from the mod.
func (d *Detector) CompiledOn(opts options.Program) (platform.Platform, error) {
	if opts.CompiledOn == "" {
		return "", nil
	}
	p, err := platform.Parse(opts.CompiledOn)
	if err != nil {
		return "", fmt.Errorf("parsing compiled-on option: %w", err)
	}
	return p, nil
}

// detectFromOS maps the operating system to a platform.
func (d *Detector) detectFromOS() platform.Platform {
	p, err := platform.Parse(d.goos)
	if err != nil {
		// other unix systems run the Linux build
		d.logger.Warn("Unknown operating system, using the Linux game build", log.String("os", d.goos))
		return platform.Linux
	}
	return p
}
