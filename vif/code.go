package vif

import (
	"fmt"
)

// VIF command opcodes, with the interrupt bit cleared.
const (
	CmdNOP    = 0x00
	CmdSTCYCL = 0x01
	CmdOFFSET = 0x02
	CmdBASE   = 0x03
	CmdITOP   = 0x04
	CmdSTMOD  = 0x05
	CmdMSKPTH = 0x06
	CmdMARK   = 0x07
	CmdFLUSHE = 0x10
	CmdFLUSH  = 0x11
	CmdFLUSHA = 0x13
	CmdMSCAL  = 0x14
	CmdMSCNT  = 0x17
	CmdSTMASK = 0x20
	CmdSTROW  = 0x30
	CmdSTCOL  = 0x31
	CmdMPG    = 0x4A
	CmdDIRECT = 0x50
	CmdDIRHL  = 0x51
	CmdUNPACK = 0x60
)

// Code is a 32-bit VIF command word.
type Code uint32

// Cmd returns the opcode, without the interrupt bit.
func (c Code) Cmd() uint8 { return uint8(c>>24) & 0x7F }

// IRQ returns whether the interrupt bit is set.
func (c Code) IRQ() bool { return c&0x80000000 != 0 }

// Num returns the NUM field.
func (c Code) Num() int { return int(c>>16) & 0xFF }

// Imm returns the IMMEDIATE field.
func (c Code) Imm() int { return int(c) & 0xFFFF }

// IsUnpack returns whether the command is an UNPACK.
func (c Code) IsUnpack() bool { return c.Cmd()&CmdUNPACK == CmdUNPACK }

// Unpack fields. They are meaningful only when IsUnpack is true.

// VN returns the number of components per element, minus one.
func (c Code) VN() int { return int(c.Cmd()>>2) & 3 }

// VL returns the element width selector: 0 for 32 bits, 1 for 16, 2 for 8
// and 3 for 5-bit packed colour.
func (c Code) VL() int { return int(c.Cmd()) & 3 }

// Masked returns whether the unpack applies the write mask.
func (c Code) Masked() bool { return c.Cmd()&0x10 != 0 }

// Addr returns the destination address in VU memory.
func (c Code) Addr() int { return c.Imm() & 0x1FF }

// Unsigned returns whether the unpacked elements are zero-extended.
func (c Code) Unsigned() bool { return c.Imm()&0x4000 != 0 }

// TOPS returns whether the destination is relative to the VIF TOPS register.
func (c Code) TOPS() bool { return c.Imm()&0x8000 != 0 }

var unpackNames = [4][4]string{
	{"S-32", "S-16", "S-8", ""},
	{"V2-32", "V2-16", "V2-8", ""},
	{"V3-32", "V3-16", "V3-8", ""},
	{"V4-32", "V4-16", "V4-8", "V4-5"},
}

func (c Code) String() string {
	if c.IsUnpack() {
		s := fmt.Sprintf("UNPACK %s num=%d addr=0x%03x", unpackNames[c.VN()][c.VL()], c.Num(), c.Addr())
		if c.Unsigned() {
			s += " usn"
		}
		if c.TOPS() {
			s += " flg"
		}
		if c.Masked() {
			s += " mask"
		}
		return s
	}
	switch c.Cmd() {
	case CmdNOP:
		return "NOP"
	case CmdSTCYCL:
		return fmt.Sprintf("STCYCL wl=%d cl=%d", c.Imm()>>8, c.Imm()&0xFF)
	case CmdITOP:
		return fmt.Sprintf("ITOP %d", c.Imm()&0x3FF)
	case CmdSTMOD:
		return fmt.Sprintf("STMOD %d", c.Imm()&3)
	case CmdFLUSH:
		return "FLUSH"
	case CmdMSCAL:
		return fmt.Sprintf("MSCAL %d", c.Imm())
	case CmdSTMASK:
		return "STMASK"
	case CmdDIRECT:
		return fmt.Sprintf("DIRECT %d", c.Imm())
	}
	return fmt.Sprintf("CMD 0x%02x num=%d imm=0x%04x", c.Cmd(), c.Num(), c.Imm())
}
