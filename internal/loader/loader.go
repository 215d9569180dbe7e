// Package loader handles mod and reference assembly file loading operations.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/retroenv/retrogolib/log"
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/resolve"
)

// FileExtension is the file extension of encoded modules.
const FileExtension = ".mrmd"

// Loader handles loading module files from disk.
type Loader struct {
	logger *log.Logger
}

// New creates a new module loader.
func New(logger *log.Logger) *Loader {
	return &Loader{
		logger: logger,
	}
}

// LoadMod reads the raw mod binary. Decoding is left to the compatibility
// loader so that a corrupt mod is reported like any other load failure.
func (l *Loader) LoadMod(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mod file %s: %w", path, err)
	}
	return data, nil
}

// LoadReferences decodes every module file in the given directories and
// returns them as the environment of loaded assemblies. Directories are read
// in order, a later assembly replaces an earlier one with the same name.
func (l *Loader) LoadReferences(dirs []string) (*resolve.Environment, error) {
	env := resolve.NewEnvironment()
	for _, dir := range dirs {
		paths, err := filepath.Glob(filepath.Join(dir, "*"+FileExtension))
		if err != nil {
			return nil, fmt.Errorf("listing reference directory %s: %w", dir, err)
		}
		if len(paths) == 0 {
			if _, err := os.Stat(dir); err != nil {
				return nil, fmt.Errorf("opening reference directory %s: %w", dir, err)
			}
			l.logger.Warn("Reference directory contains no assemblies", log.String("directory", dir))
			continue
		}
		sort.Strings(paths)

		for _, path := range paths {
			assembly, err := LoadModule(path)
			if err != nil {
				return nil, err
			}
			env.Add(assembly)
			l.logger.Debug("Loaded reference assembly",
				log.String("assembly", assembly.Assembly.Name),
				log.Stringer("version", assembly.Assembly.Version),
				log.String("file", path))
		}
	}
	return env, nil
}

// LoadModule reads and decodes a module file.
func LoadModule(path string) (*module.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading module file %s: %w", path, err)
	}
	mod, err := module.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding module file %s: %w", path, err)
	}
	return mod, nil
}
