package instruction

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestOpcode_IsCall(t *testing.T) {
	tests := []struct {
		opcode   *Opcode
		expected bool
	}{
		{Call, true},
		{Callvirt, true},
		{Newobj, false},
		{Ldfld, false},
		{Ret, false},
	}

	for _, tt := range tests {
		t.Run(tt.opcode.Name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.opcode.IsCall())
		})
	}
}

func TestOpcode_FieldAccess(t *testing.T) {
	tests := []struct {
		opcode *Opcode
		loads  bool
		stores bool
		static bool
	}{
		{Ldfld, true, false, false},
		{Ldflda, true, false, false},
		{Ldsfld, true, false, true},
		{Ldsflda, true, false, true},
		{Stfld, false, true, false},
		{Stsfld, false, true, true},
		{Call, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.opcode.Name, func(t *testing.T) {
			assert.Equal(t, tt.loads, tt.opcode.LoadsField())
			assert.Equal(t, tt.stores, tt.opcode.StoresField())
			assert.Equal(t, tt.static, tt.opcode.IsStaticField())
		})
	}
}

func TestOpcode_String(t *testing.T) {
	var op *Opcode
	assert.Equal(t, "", op.String())
	assert.Equal(t, "nop", Nop.String())
}

func TestOpcodes(t *testing.T) {
	op, ok := Opcodes[0xFE06]
	assert.True(t, ok)
	assert.Equal(t, Ldftn, op)

	op, ok = Opcodes[Stsfld.Code]
	assert.True(t, ok)
	assert.Equal(t, "stsfld", op.String())

	_, ok = Opcodes[0xFF]
	assert.False(t, ok)
}
