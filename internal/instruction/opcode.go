package instruction

// Opcodes used by the module model. The codes match the ECMA-335 encoding.
var (
	Nop       = &Opcode{Name: "nop", Code: 0x00, Operand: InlineNone}
	Ldarg0    = &Opcode{Name: "ldarg.0", Code: 0x02, Operand: InlineNone}
	Ldarg1    = &Opcode{Name: "ldarg.1", Code: 0x03, Operand: InlineNone}
	Ldarg2    = &Opcode{Name: "ldarg.2", Code: 0x04, Operand: InlineNone}
	Ldarg3    = &Opcode{Name: "ldarg.3", Code: 0x05, Operand: InlineNone}
	Ldloc0    = &Opcode{Name: "ldloc.0", Code: 0x06, Operand: InlineNone}
	Ldloc1    = &Opcode{Name: "ldloc.1", Code: 0x07, Operand: InlineNone}
	Stloc0    = &Opcode{Name: "stloc.0", Code: 0x0A, Operand: InlineNone}
	Stloc1    = &Opcode{Name: "stloc.1", Code: 0x0B, Operand: InlineNone}
	LdargS    = &Opcode{Name: "ldarg.s", Code: 0x0E, Operand: ShortInlineVar}
	LdlocS    = &Opcode{Name: "ldloc.s", Code: 0x11, Operand: ShortInlineVar}
	StlocS    = &Opcode{Name: "stloc.s", Code: 0x13, Operand: ShortInlineVar}
	Ldnull    = &Opcode{Name: "ldnull", Code: 0x14, Operand: InlineNone}
	LdcI4M1   = &Opcode{Name: "ldc.i4.m1", Code: 0x15, Operand: InlineNone}
	LdcI40    = &Opcode{Name: "ldc.i4.0", Code: 0x16, Operand: InlineNone}
	LdcI41    = &Opcode{Name: "ldc.i4.1", Code: 0x17, Operand: InlineNone}
	LdcI4S    = &Opcode{Name: "ldc.i4.s", Code: 0x1F, Operand: ShortInlineI}
	LdcI4     = &Opcode{Name: "ldc.i4", Code: 0x20, Operand: InlineI}
	LdcI8     = &Opcode{Name: "ldc.i8", Code: 0x21, Operand: InlineI8}
	LdcR4     = &Opcode{Name: "ldc.r4", Code: 0x22, Operand: ShortInlineR}
	LdcR8     = &Opcode{Name: "ldc.r8", Code: 0x23, Operand: InlineR}
	Dup       = &Opcode{Name: "dup", Code: 0x25, Operand: InlineNone}
	Pop       = &Opcode{Name: "pop", Code: 0x26, Operand: InlineNone}
	Call      = &Opcode{Name: "call", Code: 0x28, Operand: InlineMethod}
	Ret       = &Opcode{Name: "ret", Code: 0x2A, Operand: InlineNone}
	BrS       = &Opcode{Name: "br.s", Code: 0x2B, Operand: ShortInlineBrTarget}
	BrfalseS  = &Opcode{Name: "brfalse.s", Code: 0x2C, Operand: ShortInlineBrTarget}
	BrtrueS   = &Opcode{Name: "brtrue.s", Code: 0x2D, Operand: ShortInlineBrTarget}
	Br        = &Opcode{Name: "br", Code: 0x38, Operand: InlineBrTarget}
	Brfalse   = &Opcode{Name: "brfalse", Code: 0x39, Operand: InlineBrTarget}
	Brtrue    = &Opcode{Name: "brtrue", Code: 0x3A, Operand: InlineBrTarget}
	Switch    = &Opcode{Name: "switch", Code: 0x45, Operand: InlineSwitch}
	Callvirt  = &Opcode{Name: "callvirt", Code: 0x6F, Operand: InlineMethod}
	Ldstr     = &Opcode{Name: "ldstr", Code: 0x72, Operand: InlineString}
	Newobj    = &Opcode{Name: "newobj", Code: 0x73, Operand: InlineMethod}
	Castclass = &Opcode{Name: "castclass", Code: 0x74, Operand: InlineType}
	Isinst    = &Opcode{Name: "isinst", Code: 0x75, Operand: InlineType}
	Throw     = &Opcode{Name: "throw", Code: 0x7A, Operand: InlineNone}
	Ldfld     = &Opcode{Name: "ldfld", Code: 0x7B, Operand: InlineField}
	Ldflda    = &Opcode{Name: "ldflda", Code: 0x7C, Operand: InlineField}
	Stfld     = &Opcode{Name: "stfld", Code: 0x7D, Operand: InlineField}
	Ldsfld    = &Opcode{Name: "ldsfld", Code: 0x7E, Operand: InlineField}
	Ldsflda   = &Opcode{Name: "ldsflda", Code: 0x7F, Operand: InlineField}
	Stsfld    = &Opcode{Name: "stsfld", Code: 0x80, Operand: InlineField}
	Box       = &Opcode{Name: "box", Code: 0x8C, Operand: InlineType}
	Newarr    = &Opcode{Name: "newarr", Code: 0x8D, Operand: InlineType}
	UnboxAny  = &Opcode{Name: "unbox.any", Code: 0xA5, Operand: InlineType}
	Ldtoken   = &Opcode{Name: "ldtoken", Code: 0xD0, Operand: InlineTok}
	Ldftn     = &Opcode{Name: "ldftn", Code: 0xFE06, Operand: InlineMethod}
	Ldvirtftn = &Opcode{Name: "ldvirtftn", Code: 0xFE07, Operand: InlineMethod}
	Initobj   = &Opcode{Name: "initobj", Code: 0xFE15, Operand: InlineType}
)

// Opcodes maps all supported opcode codes to their opcode.
var Opcodes = map[uint16]*Opcode{}

func init() {
	for _, op := range []*Opcode{
		Nop, Ldarg0, Ldarg1, Ldarg2, Ldarg3, Ldloc0, Ldloc1, Stloc0, Stloc1,
		LdargS, LdlocS, StlocS, Ldnull, LdcI4M1, LdcI40, LdcI41, LdcI4S, LdcI4,
		LdcI8, LdcR4, LdcR8, Dup, Pop, Call, Ret, BrS, BrfalseS, BrtrueS, Br,
		Brfalse, Brtrue, Switch, Callvirt, Ldstr, Newobj, Castclass, Isinst,
		Throw, Ldfld, Ldflda, Stfld, Ldsfld, Ldsflda, Stsfld, Box, Newarr,
		UnboxAny, Ldtoken, Ldftn, Ldvirtftn, Initobj,
	} {
		Opcodes[op.Code] = op
	}
}
