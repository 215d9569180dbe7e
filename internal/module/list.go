package module

import (
	"fmt"

	"github.com/yinxiangshi/modrewrite/internal/instruction"
)

// Instruction is an opcode with its operand. The operand is one of
// *TypeReference, *FieldReference, *MethodReference, int32, int64, float32,
// float64, string, uint16 (argument or local index), *Instruction (branch
// target), []*Instruction (switch table) or nil.
type Instruction struct {
	Opcode  *instruction.Opcode
	Operand any

	list       *InstructionList
	prev, next *Instruction
}

// NewInstruction returns a detached instruction.
func NewInstruction(op *instruction.Opcode, operand any) *Instruction {
	return &Instruction{
		Opcode:  op,
		Operand: operand,
	}
}

// Next returns the following instruction or nil.
func (i *Instruction) Next() *Instruction {
	if i.list == nil {
		return nil
	}
	return i.next
}

// Previous returns the preceding instruction or nil.
func (i *Instruction) Previous() *Instruction {
	if i.list == nil {
		return nil
	}
	return i.prev
}

// List returns the list that owns the instruction, nil if detached.
func (i *Instruction) List() *InstructionList {
	return i.list
}

// TypeOperand returns the operand as type reference.
func (i *Instruction) TypeOperand() (*TypeReference, bool) {
	ref, ok := i.Operand.(*TypeReference)
	return ref, ok
}

// FieldOperand returns the operand as field reference.
func (i *Instruction) FieldOperand() (*FieldReference, bool) {
	ref, ok := i.Operand.(*FieldReference)
	return ref, ok
}

// MethodOperand returns the operand as method reference.
func (i *Instruction) MethodOperand() (*MethodReference, bool) {
	ref, ok := i.Operand.(*MethodReference)
	return ref, ok
}

// String returns the instruction in assembler notation.
func (i *Instruction) String() string {
	switch operand := i.Operand.(type) {
	case nil:
		return i.Opcode.Name
	case string:
		return fmt.Sprintf("%s %q", i.Opcode.Name, operand)
	case *Instruction:
		return fmt.Sprintf("%s -> %s", i.Opcode.Name, operand.Opcode.Name)
	case []*Instruction:
		return fmt.Sprintf("%s (%d targets)", i.Opcode.Name, len(operand))
	default:
		return fmt.Sprintf("%s %v", i.Opcode.Name, operand)
	}
}

// InstructionList is an intrusive doubly linked list of instructions. Inserting
// or removing instructions does not invalidate references to other instructions,
// so a caller can keep walking the list while it is being spliced.
type InstructionList struct {
	front, back *Instruction
	len         int
}

// NewInstructionList returns a list containing the given instructions in order.
func NewInstructionList(instructions ...*Instruction) *InstructionList {
	l := &InstructionList{}
	for _, ins := range instructions {
		l.PushBack(ins)
	}
	return l
}

// Front returns the first instruction or nil.
func (l *InstructionList) Front() *Instruction {
	return l.front
}

// Back returns the last instruction or nil.
func (l *InstructionList) Back() *Instruction {
	return l.back
}

// Len returns the number of instructions.
func (l *InstructionList) Len() int {
	return l.len
}

// PushBack appends the instruction.
func (l *InstructionList) PushBack(ins *Instruction) *Instruction {
	l.detach(ins)
	return l.link(ins, l.back, nil)
}

// InsertBefore inserts ins immediately before mark.
func (l *InstructionList) InsertBefore(ins, mark *Instruction) *Instruction {
	if mark.list != l {
		panic("module: insert mark is not part of this list")
	}
	l.detach(ins)
	return l.link(ins, mark.prev, mark)
}

// InsertAfter inserts ins immediately after mark.
func (l *InstructionList) InsertAfter(ins, mark *Instruction) *Instruction {
	if mark.list != l {
		panic("module: insert mark is not part of this list")
	}
	l.detach(ins)
	return l.link(ins, mark, mark.next)
}

// Remove unlinks the instruction. Branches targeting it are moved to its
// successor so that the remaining code stays well formed.
func (l *InstructionList) Remove(ins *Instruction) {
	if ins.list != l {
		return
	}
	next := ins.next
	l.unlink(ins)
	if next != nil {
		l.Retarget(ins, next)
	}
}

// Replace swaps old for ins at the same position and retargets branches.
func (l *InstructionList) Replace(old, ins *Instruction) {
	if old.list != l {
		panic("module: replaced instruction is not part of this list")
	}
	l.detach(ins)
	l.link(ins, old, old.next)
	l.unlink(old)
	l.Retarget(old, ins)
}

// Index returns the position of the instruction or -1 if it is not in the list.
func (l *InstructionList) Index(ins *Instruction) int {
	i := 0
	for cur := l.front; cur != nil; cur = cur.next {
		if cur == ins {
			return i
		}
		i++
	}
	return -1
}

// At returns the instruction at the given position or nil.
func (l *InstructionList) At(index int) *Instruction {
	if index < 0 || index >= l.len {
		return nil
	}
	cur := l.front
	for ; index > 0; index-- {
		cur = cur.next
	}
	return cur
}

// Slice returns a snapshot of all instructions in order.
func (l *InstructionList) Slice() []*Instruction {
	instructions := make([]*Instruction, 0, l.len)
	for cur := l.front; cur != nil; cur = cur.next {
		instructions = append(instructions, cur)
	}
	return instructions
}

func (l *InstructionList) detach(ins *Instruction) {
	if ins.list != nil {
		ins.list.unlink(ins)
	}
}

func (l *InstructionList) link(ins, prev, next *Instruction) *Instruction {
	ins.list = l
	ins.prev = prev
	ins.next = next
	if prev == nil {
		l.front = ins
	} else {
		prev.next = ins
	}
	if next == nil {
		l.back = ins
	} else {
		next.prev = ins
	}
	l.len++
	return ins
}

func (l *InstructionList) unlink(ins *Instruction) {
	if ins.prev == nil {
		l.front = ins.next
	} else {
		ins.prev.next = ins.next
	}
	if ins.next == nil {
		l.back = ins.prev
	} else {
		ins.next.prev = ins.prev
	}
	ins.list = nil
	ins.prev = nil
	ins.next = nil
	l.len--
}

// Retarget points every branch and switch target at from to to instead.
func (l *InstructionList) Retarget(from, to *Instruction) {
	for cur := l.front; cur != nil; cur = cur.next {
		switch operand := cur.Operand.(type) {
		case *Instruction:
			if operand == from {
				cur.Operand = to
			}
		case []*Instruction:
			for i, target := range operand {
				if target == from {
					operand[i] = to
				}
			}
		}
	}
}
