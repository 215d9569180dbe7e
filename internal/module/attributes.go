package module

// Attributes defines the module level flags of a compiled module.
type Attributes uint8

// module attributes.
const (
	ILOnly Attributes = 1 << iota
	Required32Bit
	StrongNameSigned
	Preferred32Bit
)

// Has returns whether the given flag is set.
func (a Attributes) Has(flag Attributes) bool {
	return a&flag != 0
}

// Set sets the flag.
func (a *Attributes) Set(flag Attributes) {
	*a |= flag
}

// Clear unsets the flag.
func (a *Attributes) Clear(flag Attributes) {
	mask := ^(flag)
	*a &= mask
}
