package module

import (
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/yinxiangshi/modrewrite/internal/instruction"
)

func names(list *InstructionList) []string {
	var result []string
	for _, ins := range list.Slice() {
		result = append(result, ins.Opcode.Name)
	}
	return result
}

func TestInstructionList_Insert(t *testing.T) {
	nop := NewInstruction(instruction.Nop, nil)
	ret := NewInstruction(instruction.Ret, nil)
	list := NewInstructionList(nop, ret)

	ldnull := list.InsertBefore(NewInstruction(instruction.Ldnull, nil), ret)
	list.InsertAfter(NewInstruction(instruction.Pop, nil), ldnull)
	list.InsertBefore(NewInstruction(instruction.Dup, nil), nop)

	assert.Equal(t, 5, list.Len())
	assert.Equal(t, "dup nop ldnull pop ret", strings.Join(names(list), " "))
	assert.Equal(t, instruction.Dup, list.Front().Opcode)
	assert.Equal(t, ret, list.Back())
	assert.Equal(t, 2, list.Index(ldnull))
	assert.Equal(t, ldnull, list.At(2))
	assert.True(t, list.At(5) == nil)
	assert.Equal(t, list, ldnull.List())
}

func TestInstructionList_RemoveRetargetsBranches(t *testing.T) {
	nop := NewInstruction(instruction.Nop, nil)
	pop := NewInstruction(instruction.Pop, nil)
	ret := NewInstruction(instruction.Ret, nil)
	branch := NewInstruction(instruction.BrS, nop)
	table := NewInstruction(instruction.Switch, []*Instruction{nop, ret})
	list := NewInstructionList(branch, table, nop, pop, ret)

	list.Remove(nop)

	assert.Equal(t, 4, list.Len())
	target, ok := branch.Operand.(*Instruction)
	assert.True(t, ok)
	assert.Equal(t, pop, target)
	targets, ok := table.Operand.([]*Instruction)
	assert.True(t, ok)
	assert.Equal(t, pop, targets[0])
	assert.Equal(t, ret, targets[1])
	assert.True(t, nop.List() == nil)
	assert.True(t, nop.Next() == nil)
}

func TestInstructionList_Replace(t *testing.T) {
	ldfld := NewInstruction(instruction.Ldfld, nil)
	ret := NewInstruction(instruction.Ret, nil)
	branch := NewInstruction(instruction.Br, ldfld)
	list := NewInstructionList(branch, ldfld, ret)

	call := NewInstruction(instruction.Callvirt, nil)
	list.Replace(ldfld, call)

	assert.Equal(t, 3, list.Len())
	assert.Equal(t, "br callvirt ret", strings.Join(names(list), " "))
	target, ok := branch.Operand.(*Instruction)
	assert.True(t, ok)
	assert.Equal(t, call, target)
	assert.Equal(t, ret, call.Next())
	assert.Equal(t, branch, call.Previous())
}

func TestInstructionList_WalkWhileSplicing(t *testing.T) {
	list := NewInstructionList(
		NewInstruction(instruction.Ldarg0, nil),
		NewInstruction(instruction.Ldfld, nil),
		NewInstruction(instruction.Ret, nil),
	)

	visited := 0
	for ins := list.Front(); ins != nil; {
		next := ins.Next()
		if ins.Opcode == instruction.Ldfld {
			list.InsertAfter(NewInstruction(instruction.Pop, nil), ins)
			list.Replace(ins, NewInstruction(instruction.Call, nil))
		}
		visited++
		ins = next
	}

	assert.Equal(t, 3, visited)
	assert.Equal(t, "ldarg.0 call pop ret", strings.Join(names(list), " "))
}
