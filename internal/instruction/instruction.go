// Package instruction contains fundamental types for managed code opcodes.
package instruction

// OperandType defines what kind of operand follows an opcode.
type OperandType uint8

// operand types.
const (
	InlineNone          OperandType = iota // no operand
	ShortInlineI                           // int8 constant
	InlineI                                // int32 constant
	InlineI8                               // int64 constant
	ShortInlineR                           // float32 constant
	InlineR                                // float64 constant
	InlineString                           // string literal
	InlineType                             // type reference
	InlineField                            // field reference
	InlineMethod                           // method or constructor reference
	InlineTok                              // type, field or method token
	ShortInlineBrTarget                    // short branch target
	InlineBrTarget                         // branch target
	ShortInlineVar                         // argument or local index (uint8)
	InlineVar                              // argument or local index (uint16)
	InlineSwitch                           // jump table
)

// Opcode represents a managed code opcode.
type Opcode struct {
	Name    string
	Code    uint16 // two byte opcodes carry the 0xFE prefix in the high byte
	Operand OperandType
}

// IsCall returns true if the opcode invokes a method.
func (o *Opcode) IsCall() bool {
	return o == Call || o == Callvirt
}

// LoadsField returns true if the opcode reads a field value or address.
func (o *Opcode) LoadsField() bool {
	return o == Ldfld || o == Ldsfld || o == Ldflda || o == Ldsflda
}

// StoresField returns true if the opcode writes a field value.
func (o *Opcode) StoresField() bool {
	return o == Stfld || o == Stsfld
}

// IsStaticField returns true if the opcode accesses a static field.
func (o *Opcode) IsStaticField() bool {
	return o == Ldsfld || o == Ldsflda || o == Stsfld
}

// String implements fmt.Stringer.
func (o *Opcode) String() string {
	if o == nil {
		return ""
	}
	return o.Name
}
