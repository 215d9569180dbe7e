package rules

import (
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/rewrite"
)

var _ rewrite.ModuleRule = (*ArchitectureFlagNormalization)(nil)

// ArchitectureFlagNormalization clears the 32-bit only requirement of a module
// so that it can be loaded by a 64-bit process.
type ArchitectureFlagNormalization struct{}

// NewArchitectureFlagNormalization returns a new architecture flag rule.
func NewArchitectureFlagNormalization() *ArchitectureFlagNormalization {
	return &ArchitectureFlagNormalization{}
}

// Phrase implements rewrite.Rule.
func (r *ArchitectureFlagNormalization) Phrase() string {
	return "32-bit architecture"
}

// Criteria implements rewrite.Rule.
func (r *ArchitectureFlagNormalization) Criteria() string {
	return ""
}

// HandleModule implements rewrite.ModuleRule.
func (r *ArchitectureFlagNormalization) HandleModule(ctx *rewrite.Context) bool {
	if !ctx.Module.Attributes.Has(module.Required32Bit) {
		return false
	}
	ctx.Module.Attributes.Clear(module.Required32Bit)
	return true
}
