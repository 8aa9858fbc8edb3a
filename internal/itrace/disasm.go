package itrace

import (
	"golang.org/x/arch/x86/x86asm"
)

// maxInstLen is the longest x86 instruction encoding.
const maxInstLen = 15

// MemoryReader reads the traced program's memory.
type MemoryReader interface {
	ReadMemory(addr uint64, buf []byte) (int, error)
}

// Disassemble decodes the 64-bit instruction at the start of code, which was
// loaded from address pc, and returns it in Intel syntax.
func Disassemble(code []byte, pc uint64) (string, error) {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return "", err
	}
	return x86asm.IntelSyntax(inst, pc, nil), nil
}

// disassembleAt reads and decodes the instruction at ip. Unreadable or
// undecodable instructions are rendered as "(bad)".
func disassembleAt(mem MemoryReader, ip uint64) string {
	buf := make([]byte, maxInstLen)
	n, err := mem.ReadMemory(ip, buf)
	if n == 0 && err != nil {
		return "(bad)"
	}
	text, err := Disassemble(buf[:n], ip)
	if err != nil {
		return "(bad)"
	}
	return text
}
