package module

import "fmt"

// ConstantKind defines the type of a constant default value.
type ConstantKind uint8

// constant kinds.
const (
	ConstantNull ConstantKind = iota
	ConstantBool
	ConstantInt32
	ConstantInt64
	ConstantFloat32
	ConstantFloat64
	ConstantString
	ConstantOther // any value that can not be pushed by a single load instruction
)

// Constant is a compile time constant, used for optional parameter defaults.
type Constant struct {
	Kind  ConstantKind
	Value any
}

// String implements fmt.Stringer.
func (c Constant) String() string {
	switch c.Kind {
	case ConstantNull:
		return "null"
	case ConstantString:
		return fmt.Sprintf("%q", c.Value)
	default:
		return fmt.Sprint(c.Value)
	}
}

// NullConstant returns a null constant.
func NullConstant() *Constant { return &Constant{Kind: ConstantNull} }

// BoolConstant returns a boolean constant.
func BoolConstant(v bool) *Constant { return &Constant{Kind: ConstantBool, Value: v} }

// Int32Constant returns an int32 constant.
func Int32Constant(v int32) *Constant { return &Constant{Kind: ConstantInt32, Value: v} }

// Int64Constant returns an int64 constant.
func Int64Constant(v int64) *Constant { return &Constant{Kind: ConstantInt64, Value: v} }

// Float32Constant returns a float32 constant.
func Float32Constant(v float32) *Constant { return &Constant{Kind: ConstantFloat32, Value: v} }

// Float64Constant returns a float64 constant.
func Float64Constant(v float64) *Constant { return &Constant{Kind: ConstantFloat64, Value: v} }

// StringConstant returns a string constant.
func StringConstant(v string) *Constant { return &Constant{Kind: ConstantString, Value: v} }

// OtherConstant returns a constant of a type that has no single instruction load form,
// for example a struct default.
func OtherConstant(description string) *Constant {
	return &Constant{Kind: ConstantOther, Value: description}
}
