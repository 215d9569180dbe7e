// Package verification verifies that a rewritten module is stable: rewriting
// it again changes nothing.
package verification

import (
	"errors"
	"fmt"
	"os"

	"github.com/retroenv/retrogolib/log"
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/platform"
	"github.com/yinxiangshi/modrewrite/internal/resolve"
	"github.com/yinxiangshi/modrewrite/internal/rewrite"
)

// Input contains the collaborators of the original rewrite.
type Input struct {
	Engine      *rewrite.Engine
	Environment *resolve.Environment
	Platforms   *platform.Map
}

// VerifyOutput verifies that the output file decodes, that a second rewrite
// pass over it finds nothing left to change and that encoding it again
// recreates the exact file.
func VerifyOutput(logger *log.Logger, outputFile string, input Input) error {
	if outputFile == "" {
		return errors.New("can not verify without an output file")
	}

	source, err := os.ReadFile(outputFile)
	if err != nil {
		return fmt.Errorf("reading output file for verification: %w", err)
	}

	mod, err := module.Decode(source)
	if err != nil {
		return fmt.Errorf("decoding output file: %w", err)
	}

	outcome, err := input.Engine.Rewrite(rewrite.Input{
		Module:          mod,
		Environment:     input.Environment,
		Platforms:       input.Platforms,
		PlatformChanged: input.Platforms.ReferencesForeign(mod),
	})
	if err != nil {
		return fmt.Errorf("rewriting output again: %w", err)
	}
	if outcome.Changed {
		return fmt.Errorf("second rewrite pass changed the module: %s", outcome.Summary())
	}
	if outcome.Failed() {
		return fmt.Errorf("output still has %d unresolved references", len(outcome.Unresolved))
	}

	destination, err := mod.Bytes()
	if err != nil {
		return fmt.Errorf("encoding module for comparison: %w", err)
	}
	if err := checkBufferEqual(logger, source, destination); err != nil {
		return fmt.Errorf("module encoding mismatch: %w", err)
	}
	return nil
}

func checkBufferEqual(logger *log.Logger, input, output []byte) error {
	if len(input) != len(output) {
		return fmt.Errorf("mismatched lengths, %d != %d", len(input), len(output))
	}

	var diffs uint64
	for i := range input {
		if input[i] == output[i] {
			continue
		}

		diffs++
		if diffs < 10 {
			logger.Error("Offset mismatch",
				log.Hex("offset", i),
				log.Hex("expected", input[i]),
				log.Hex("got", output[i]))
		}
	}
	if diffs == 0 {
		return nil
	}
	return fmt.Errorf("%d offset mismatches", diffs)
}
