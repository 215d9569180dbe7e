package rewrite_test

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/yinxiangshi/modrewrite/internal/instruction"
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/module/moduletest"
	"github.com/yinxiangshi/modrewrite/internal/platform"
	"github.com/yinxiangshi/modrewrite/internal/resolve"
	"github.com/yinxiangshi/modrewrite/internal/rewrite"
	"github.com/yinxiangshi/modrewrite/internal/rewrite/rules"
)

// phraseOnly implements no rule kind.
type phraseOnly struct{}

func (phraseOnly) Phrase() string   { return "nothing" }
func (phraseOnly) Criteria() string { return "" }

func helperGame() *resolve.Environment {
	game := moduletest.Assembly(moduletest.Game)
	helper := moduletest.AddType(game, "NewNamespace", "Helper")
	helper.AddMethod(moduletest.StaticMethod("DoThing", moduletest.Void(),
		moduletest.Param("value", moduletest.SystemType("Int32"))))
	moduletest.AddType(game, "StardewValley", "Farmer")
	return resolve.NewEnvironment(game)
}

func doThing(namespace string) *module.Instruction {
	return moduletest.Ins(instruction.Call, moduletest.MethodRef(moduletest.GameType(namespace, "Helper"),
		"DoThing", moduletest.Void(), moduletest.SystemType("Int32")))
}

func TestNew(t *testing.T) {
	_, err := rewrite.New(log.NewTestLogger(t), phraseOnly{})
	assert.True(t, errors.Is(err, rewrite.ErrConfiguration))

	engine, err := rewrite.New(log.NewTestLogger(t))
	assert.NoError(t, err)
	assert.NotNil(t, engine)
}

func TestEngine_RemapAndIdempotence(t *testing.T) {
	env := helperGame()
	remap, err := rules.NewDeclaringTypeRemap("OldNamespace.Helper", moduletest.GameType("NewNamespace", "Helper"), false)
	assert.NoError(t, err)
	engine, err := rewrite.New(log.NewTestLogger(t), rules.Default(remap)...)
	assert.NoError(t, err)

	call := doThing("OldNamespace")
	mod, entry := moduletest.Mod(
		moduletest.Ins(instruction.LdcI4, int32(1)),
		call,
		moduletest.Ins(instruction.Ret, nil),
	)

	outcome, err := engine.Rewrite(rewrite.Input{Module: mod, Environment: env})
	assert.NoError(t, err)
	assert.True(t, outcome.Changed)
	assert.False(t, outcome.Failed())
	assert.Contains(t, outcome.Summary(), "OldNamespace.Helper")

	ref, ok := call.MethodOperand()
	assert.True(t, ok)
	assert.Equal(t, "System.Void NewNamespace.Helper::DoThing(System.Int32)", ref.FullName())
	assert.Equal(t, "ldc.i4 call ret", moduletest.Opcodes(entry.Body.Instructions))

	// every reference resolves after the pass
	resolver := resolve.NewResolver(env, mod)
	_, status := resolver.Method(ref)
	assert.Equal(t, resolve.Resolved, status)

	before, err := mod.Bytes()
	assert.NoError(t, err)
	outcome, err = engine.Rewrite(rewrite.Input{Module: mod, Environment: env})
	assert.NoError(t, err)
	assert.False(t, outcome.Changed)
	assert.Empty(t, outcome.Phrases)
	after, err := mod.Bytes()
	assert.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestEngine_TypeSubstitutionRepointsCalls(t *testing.T) {
	env := helperGame()
	substitution, err := rules.NewTypeSubstitution("OldNamespace.Helper", moduletest.GameType("NewNamespace", "Helper"))
	assert.NoError(t, err)
	engine, err := rewrite.New(log.NewTestLogger(t), rules.Default(substitution)...)
	assert.NoError(t, err)

	call := doThing("OldNamespace")
	mod, entry := moduletest.Mod(
		moduletest.Ins(instruction.LdcI4, int32(5)),
		call,
		moduletest.Ins(instruction.Ret, nil),
	)

	outcome, err := engine.Rewrite(rewrite.Input{Module: mod, Environment: env})
	assert.NoError(t, err)
	assert.True(t, outcome.Changed)
	assert.False(t, outcome.Failed())
	assert.Equal(t, "OldNamespace.Helper type", outcome.Summary())

	ref, ok := call.MethodOperand()
	assert.True(t, ok)
	assert.Equal(t, "NewNamespace.Helper", ref.DeclaringType.FullName())
	assert.Equal(t, "System.Void NewNamespace.Helper::DoThing(System.Int32)", ref.FullName())
	assert.Equal(t, "ldc.i4 call ret", moduletest.Opcodes(entry.Body.Instructions))

	resolver := resolve.NewResolver(env, mod)
	_, status := resolver.Method(ref)
	assert.Equal(t, resolve.Resolved, status)
}

func TestEngine_UnresolvedReferences(t *testing.T) {
	env := helperGame()
	engine, err := rewrite.New(log.NewTestLogger(t), rules.Default()...)
	assert.NoError(t, err)

	missing := func() *module.FieldReference {
		return moduletest.FieldRef(moduletest.GameType("Missing", "Type"), "Field", moduletest.SystemType("Int32"))
	}
	mod, _ := moduletest.Mod(
		moduletest.Ins(instruction.Ldsfld, missing()),
		moduletest.Ins(instruction.Pop, nil),
		moduletest.Ins(instruction.Ldsfld, missing()),
		moduletest.Ins(instruction.Pop, nil),
		moduletest.Ins(instruction.Ret, nil),
	)

	outcome, err := engine.Rewrite(rewrite.Input{Module: mod, Environment: env})
	assert.NoError(t, err)
	assert.True(t, outcome.Failed())
	assert.False(t, outcome.Changed)
	assert.Len(t, outcome.Unresolved, 1)

	unresolved := outcome.Unresolved[0]
	assert.Equal(t, rewrite.FieldReference, unresolved.Kind)
	assert.Equal(t, "Missing.Type::Field", unresolved.Reference)
	assert.Equal(t, "TestMod.ModEntry::Entry", unresolved.Location)
	assert.NotEmpty(t, unresolved.Attempted)
}

func TestEngine_ReportsTypesOutsideCode(t *testing.T) {
	env := helperGame()
	engine, err := rewrite.New(log.NewTestLogger(t))
	assert.NoError(t, err)

	mod, entry := moduletest.Mod(moduletest.Ins(instruction.Ret, nil))
	typ := mod.Type("TestMod.ModEntry")
	typ.BaseType = moduletest.GameType("StardewValley", "RemovedBase")
	typ.AddField(&module.FieldDefinition{Name: "farmer", FieldType: moduletest.GameType("StardewValley", "Farmer")})
	entry.Body.Variables = []*module.TypeReference{
		module.NewArray(moduletest.GameType("StardewValley", "RemovedItem")),
	}

	outcome, err := engine.Rewrite(rewrite.Input{Module: mod, Environment: env})
	assert.NoError(t, err)
	assert.Len(t, outcome.Unresolved, 2)
	assert.Equal(t, "StardewValley.RemovedBase", outcome.Unresolved[0].Reference)
	assert.Equal(t, "TestMod.ModEntry", outcome.Unresolved[0].Location)
	assert.Equal(t, "StardewValley.RemovedItem", outcome.Unresolved[1].Reference)
}

func TestEngine_ExternalReferences(t *testing.T) {
	engine, err := rewrite.New(log.NewTestLogger(t), rules.Default()...)
	assert.NoError(t, err)

	other := module.AssemblyName{Name: "SpaceCore", Version: module.Version{Major: 1}}
	mod, _ := moduletest.Mod(
		moduletest.Ins(instruction.Call, moduletest.MethodRef(moduletest.TypeIn(other, "SpaceCore", "Api"),
			"Register", moduletest.Void())),
		moduletest.Ins(instruction.Ret, nil),
	)

	outcome, err := engine.Rewrite(rewrite.Input{Module: mod, Environment: helperGame()})
	assert.NoError(t, err)
	assert.False(t, outcome.Changed)
	assert.False(t, outcome.Failed())
}

func TestEngine_PlatformChanged(t *testing.T) {
	env := helperGame()
	platforms := platform.New(platform.Linux, env)
	engine, err := rewrite.New(log.NewTestLogger(t), rules.Default()...)
	assert.NoError(t, err)

	windows := module.AssemblyName{Name: "Stardew Valley", Version: module.Version{Major: 1, Minor: 6}}
	cast := moduletest.Ins(instruction.Castclass, moduletest.TypeIn(windows, "StardewValley", "Farmer"))
	mod, _ := moduletest.Mod(cast, moduletest.Ins(instruction.Ret, nil))
	mod.AddAssemblyReference(windows)
	assert.True(t, platforms.ReferencesForeign(mod))

	outcome, err := engine.Rewrite(rewrite.Input{
		Module:          mod,
		Environment:     env,
		Platforms:       platforms,
		PlatformChanged: true,
	})
	assert.NoError(t, err)
	assert.True(t, outcome.Changed)
	assert.False(t, outcome.Failed())

	assert.True(t, platforms.SwapReferences(mod))
	assert.False(t, platforms.ReferencesForeign(mod))
	ref, _ := cast.TypeOperand()
	assert.Equal(t, "StardewValley", ref.ScopeName())
}

func TestEngine_InvariantViolation(t *testing.T) {
	env := helperGame()
	removal, err := rules.NewVirtualEntryCallRemoval("NewNamespace.Helper", "Entry")
	assert.NoError(t, err)
	engine, err := rewrite.New(log.NewTestLogger(t), removal)
	assert.NoError(t, err)

	mod, _ := moduletest.Mod(
		moduletest.Ins(instruction.Call, moduletest.MethodRef(moduletest.GameType("NewNamespace", "Helper"),
			"Entry", moduletest.Void(), moduletest.SystemType("Object"))),
		moduletest.Ins(instruction.Ret, nil),
	)

	outcome, err := engine.Rewrite(rewrite.Input{Module: mod, Environment: env})
	assert.True(t, outcome == nil)
	assert.True(t, errors.Is(err, rewrite.ErrInvariant))
	assert.False(t, errors.Is(err, rewrite.ErrUnresolved))

	var rewriteErr *rewrite.Error
	assert.True(t, errors.As(err, &rewriteErr))
	assert.Equal(t, "System.Void NewNamespace.Helper::Entry(System.Object)", rewriteErr.Reference)
}
