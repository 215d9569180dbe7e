package rules

import (
	"github.com/yinxiangshi/modrewrite/internal/platform"
	"github.com/yinxiangshi/modrewrite/internal/rewrite"
)

// harmonyAssembly is the assembly name of the runtime patching library.
const harmonyAssembly = "0Harmony"

// Default returns the rule set that every mod is rewritten with. Additional
// rules are appended after the defaults and have a lower priority.
func Default(additional ...rewrite.Rule) []rewrite.Rule {
	rules := []rewrite.Rule{
		NewArchitectureFlagNormalization(),

		// type level
		NewPlatformScopeRemap(),
		NewVersionedAssemblySubstitution(harmonyAssembly, 1, harmonyAssembly, map[string]string{
			"Harmony": "HarmonyLib",
		}),
		NewTypeFinder("patches game code", rewrite.FlagWarning,
			"HarmonyLib.Harmony", "HarmonyLib.HarmonyMethod"),
		NewTypeFinder("uses the console directly", rewrite.FlagWarning, "System.Console"),

		// instruction level
		NewFieldToPropertyPromotion(platform.GameAssemblies()...),
		NewOptionalParameterBackfill(),
		NewMemberFinder("accesses the file system directly", rewrite.FlagWarning, "System.IO.File"),
		NewMemberFinder("accesses the file system directly", rewrite.FlagWarning, "System.IO.Directory"),
		NewMemberFinder("starts external processes", rewrite.FlagWarning, "System.Diagnostics.Process", "Start"),
	}
	return append(rules, additional...)
}
