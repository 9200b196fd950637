// Package opcode names the instruction set and classifies each opcode.
//
// Opcode identity is resolved from the operand-count class of the encoding
// and the opcode number. The tables here are constant data: they are built
// once at package initialisation and never modified.
package opcode

import "fmt"

// Class is the operand-count class an encoding form selects.
type Class uint8

const (
	ZeroOp Class = iota // short form, no operands
	OneOp               // short form, one operand
	TwoOp               // long form, or variable form with bit 5 clear
	VarOp               // variable form with bit 5 set
)

// String returns the conventional class name.
func (c Class) String() string {
	switch c {
	case ZeroOp:
		return "0OP"
	case OneOp:
		return "1OP"
	case TwoOp:
		return "2OP"
	case VarOp:
		return "VAR"
	default:
		return fmt.Sprintf("Class(%d)", c)
	}
}

// Op identifies an instruction.
type Op uint8

const (
	// Unknown marks a (class, number) pair with no defined instruction.
	Unknown Op = iota

	// 0OP
	Rtrue
	Rfalse
	Print
	PrintRet
	Nop
	Save
	Restore
	Restart
	RetPopped
	Pop
	Quit
	NewLine
	ShowStatus
	Verify
	Extended
	Piracy

	// 1OP
	Jz
	GetSibling
	GetChild
	GetParent
	GetPropLen
	Inc
	Dec
	PrintAddr
	Call1s
	RemoveObj
	PrintObj
	Ret
	Jump
	PrintPaddr
	Load
	Not

	// 2OP
	Je
	Jl
	Jg
	DecChk
	IncChk
	Jin
	Test
	Or
	And
	TestAttr
	SetAttr
	ClearAttr
	Store
	InsertObj
	Loadw
	Loadb
	GetProp
	GetPropAddr
	GetNextProp
	Add
	Sub
	Mul
	Div
	Mod
	Call2s
	Call2n
	SetColour

	// VAR
	Call
	Storew
	Storeb
	PutProp
	Sread
	PrintChar
	PrintNum
	Random
	Push
	Pull
	SplitWindow
	SetWindow
	CallVs2
	EraseWindow
	EraseLine
	SetCursor
	GetCursor
	SetTextStyle
	BufferMode
	OutputStream
	InputStream
	SoundEffect
	ReadChar
	ScanTable
	NotV4
	CallVn
	CallVn2
	Tokenise
	EncodeText
	CopyTable
	PrintTable
	CheckArgCount

	numOps
)

// table maps (class, number) to an opcode. Unlisted entries are Unknown.
var table = [4][32]Op{
	ZeroOp: {
		Rtrue, Rfalse, Print, PrintRet, Nop, Save, Restore, Restart,
		RetPopped, Pop, Quit, NewLine, ShowStatus, Verify, Extended, Piracy,
	},
	OneOp: {
		Jz, GetSibling, GetChild, GetParent, GetPropLen, Inc, Dec, PrintAddr,
		Call1s, RemoveObj, PrintObj, Ret, Jump, PrintPaddr, Load, Not,
	},
	TwoOp: {
		Unknown, Je, Jl, Jg, DecChk, IncChk, Jin, Test,
		Or, And, TestAttr, SetAttr, ClearAttr, Store, InsertObj, Loadw,
		Loadb, GetProp, GetPropAddr, GetNextProp, Add, Sub, Mul, Div,
		Mod, Call2s, Call2n, SetColour,
	},
	VarOp: {
		Call, Storew, Storeb, PutProp, Sread, PrintChar, PrintNum, Random,
		Push, Pull, SplitWindow, SetWindow, CallVs2, EraseWindow, EraseLine, SetCursor,
		GetCursor, SetTextStyle, BufferMode, OutputStream, InputStream, SoundEffect, ReadChar, ScanTable,
		NotV4, CallVn, CallVn2, Tokenise, EncodeText, CopyTable, PrintTable, CheckArgCount,
	},
}

// Lookup resolves an opcode number within a class.
func Lookup(c Class, number uint8) Op {
	if int(c) >= len(table) || int(number) >= len(table[c]) {
		return Unknown
	}
	return table[c][number]
}

var names = [numOps]string{
	Unknown: "unknown",

	Rtrue: "rtrue", Rfalse: "rfalse", Print: "print", PrintRet: "print_ret",
	Nop: "nop", Save: "save", Restore: "restore", Restart: "restart",
	RetPopped: "ret_popped", Pop: "pop", Quit: "quit", NewLine: "new_line",
	ShowStatus: "show_status", Verify: "verify", Extended: "extended", Piracy: "piracy",

	Jz: "jz", GetSibling: "get_sibling", GetChild: "get_child", GetParent: "get_parent",
	GetPropLen: "get_prop_len", Inc: "inc", Dec: "dec", PrintAddr: "print_addr",
	Call1s: "call_1s", RemoveObj: "remove_obj", PrintObj: "print_obj", Ret: "ret",
	Jump: "jump", PrintPaddr: "print_paddr", Load: "load", Not: "not",

	Je: "je", Jl: "jl", Jg: "jg", DecChk: "dec_chk", IncChk: "inc_chk", Jin: "jin",
	Test: "test", Or: "or", And: "and", TestAttr: "test_attr", SetAttr: "set_attr",
	ClearAttr: "clear_attr", Store: "store", InsertObj: "insert_obj", Loadw: "loadw",
	Loadb: "loadb", GetProp: "get_prop", GetPropAddr: "get_prop_addr",
	GetNextProp: "get_next_prop", Add: "add", Sub: "sub", Mul: "mul", Div: "div",
	Mod: "mod", Call2s: "call_2s", Call2n: "call_2n", SetColour: "set_colour",

	Call: "call", Storew: "storew", Storeb: "storeb", PutProp: "put_prop", Sread: "sread",
	PrintChar: "print_char", PrintNum: "print_num", Random: "random", Push: "push",
	Pull: "pull", SplitWindow: "split_window", SetWindow: "set_window", CallVs2: "call_vs2",
	EraseWindow: "erase_window", EraseLine: "erase_line", SetCursor: "set_cursor",
	GetCursor: "get_cursor", SetTextStyle: "set_text_style", BufferMode: "buffer_mode",
	OutputStream: "output_stream", InputStream: "input_stream", SoundEffect: "sound_effect",
	ReadChar: "read_char", ScanTable: "scan_table", NotV4: "not_v4", CallVn: "call_vn",
	CallVn2: "call_vn2", Tokenise: "tokenise", EncodeText: "encode_text",
	CopyTable: "copy_table", PrintTable: "print_table", CheckArgCount: "check_arg_count",
}

// String returns the assembler name of the opcode.
func (op Op) String() string {
	if op < numOps {
		return names[op]
	}
	return fmt.Sprintf("Op(%d)", op)
}

// Stores reports whether the instruction is followed by a result byte.
func Stores(c Class, number uint8) bool {
	switch c {
	case TwoOp:
		return (number >= 0x08 && number <= 0x09) || (number >= 0x0f && number <= 0x19)
	case OneOp:
		return (number >= 0x01 && number <= 0x04) || number == 0x08 || (number >= 0x0e && number <= 0x0f)
	case VarOp:
		return number == 0x00 || number == 0x07
	}
	return false
}

// Branches reports whether the instruction is followed by a branch field.
func Branches(c Class, number uint8) bool {
	switch c {
	case TwoOp:
		return (number >= 0x01 && number <= 0x07) || number == 0x0a
	case OneOp:
		return number <= 0x02
	case ZeroOp:
		return number == 0x05 || number == 0x06 || number == 0x0d || number == 0x0f
	}
	return false
}

// HasText reports whether literal text follows the instruction.
func HasText(c Class, number uint8) bool {
	return c == ZeroOp && (number == 0x02 || number == 0x03)
}

// TakesVarRef reports whether the first operand names a variable rather
// than supplying a value. Such operands are read and written in place.
func (op Op) TakesVarRef() bool {
	switch op {
	case Inc, Dec, Load, Store, IncChk, DecChk, Pull:
		return true
	}
	return false
}

var encodings = func() [numOps]encoding {
	var enc [numOps]encoding
	for c := range table {
		for n, op := range table[c] {
			if op != Unknown {
				enc[op] = encoding{class: Class(c), number: uint8(n), ok: true}
			}
		}
	}
	return enc
}()

type encoding struct {
	class  Class
	number uint8
	ok     bool
}

// Encoding returns the class and number that encode op.
func Encoding(op Op) (Class, uint8, bool) {
	if op >= numOps {
		return 0, 0, false
	}
	e := encodings[op]
	return e.class, e.number, e.ok
}
