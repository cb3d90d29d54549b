package backend

import (
	"fmt"

	"noobikc/src/ir"
	"noobikc/src/util"
)

// ---------------------
// ----- Functions -----
// ---------------------

// evalExpr lowers an expression subtree to a sequence of instructions and returns the register holding its
// result. Callers own the returned register and must Free it once done, except for short-lived uses that are
// immediately consumed (e.g. as an operand of the next instruction) before any further allocation.
func (fg *funcGen) evalExpr(n *ir.Node) (Register, error) {
	switch n.Typ {
	case ir.INTEGER_DATA:
		return fg.loadImmediate(n.Data.(int))
	case ir.BOOL_DATA:
		v := 0
		if n.Data.(bool) {
			v = 1
		}
		return fg.loadImmediate(v)
	case ir.CHAR_DATA:
		return fg.loadImmediate(int(n.Data.(rune)))

	case ir.IDENTIFIER_DATA:
		return fg.loadIdentifier(n)

	case ir.INDEX_EXPR:
		addr, err := fg.arrayElementAddress(n)
		if err != nil {
			return "", err
		}
		rd, err := fg.rf.Alloc()
		if err != nil {
			return "", err
		}
		fg.wr.Ins2(opLd, string(rd), string(addr))
		return rd, nil

	case ir.ADDR_OF:
		return fg.evalAddrOf(n.Children[0])

	case ir.DEREF:
		rs, err := fg.evalExpr(n.Children[0])
		if err != nil {
			return "", err
		}
		fg.wr.Ins2(opLd, string(rs), string(rs))
		return rs, nil

	case ir.CALL_EXPR:
		return fg.evalCall(n)

	case ir.UNARY_EXPR:
		return fg.evalUnary(n)

	case ir.BINARY_EXPR:
		return fg.evalBinary(n)

	case ir.ASSIGNMENT:
		if err := fg.genAssignment(n); err != nil {
			return "", err
		}
		return fg.loadIdentifier(n.Children[0])

	default:
		return "", fmt.Errorf("line %d:%d: %s is not a valid expression", n.Line, n.Pos, n.Type())
	}
}

// loadImmediate materialises a non-negative integer constant into a fresh register, splitting it across two
// MOVI+SHL+OR instructions when it does not fit a single zero-extended 16-bit immediate.
func (fg *funcGen) loadImmediate(v int) (Register, error) {
	rd, err := fg.rf.Alloc()
	if err != nil {
		return "", err
	}
	if ValidImmediate(v) {
		fg.wr.Ins2(opMovi, string(rd), util.Imm(v))
		return rd, nil
	}
	hi, lo := (v>>16)&maxImmediate, v&maxImmediate
	hiReg, err := fg.rf.Alloc()
	if err != nil {
		return "", err
	}
	fg.wr.Ins2(opMovi, string(rd), util.Imm(lo))
	fg.wr.Ins2(opMovi, string(hiReg), util.Imm(hi))
	fg.wr.Ins3(opShl, string(hiReg), string(hiReg), util.Imm(16))
	fg.wr.Ins3(opOr, string(rd), string(rd), string(hiReg))
	fg.rf.Free(hiReg)
	return rd, nil
}

// loadIdentifier loads a scalar variable's value into a fresh register.
func (fg *funcGen) loadIdentifier(n *ir.Node) (Register, error) {
	sym := n.Entry
	if sym == nil {
		return "", fmt.Errorf("line %d:%d: %q was never resolved", n.Line, n.Pos, n.Data)
	}
	rd, err := fg.rf.Alloc()
	if err != nil {
		return "", err
	}
	if sym.Kind == ir.SymGlobal {
		fg.wr.Ins2(opLdc, string(rd), util.ImmHex(sym.Address))
	} else {
		addr := fpAddress(fg.wr, sym.Offset)
		fg.wr.Ins2(opLds, string(rd), string(addr))
	}
	return rd, nil
}

// evalAddrOf returns a register holding the address of an addressable operand (identifier or array element).
func (fg *funcGen) evalAddrOf(n *ir.Node) (Register, error) {
	switch n.Typ {
	case ir.IDENTIFIER_DATA:
		sym := n.Entry
		rd, err := fg.rf.Alloc()
		if err != nil {
			return "", err
		}
		if sym.Kind == ir.SymGlobal {
			fg.wr.Ins2(opLa, string(rd), sym.Name)
		} else {
			addr := fpAddress(fg.wr, sym.Offset)
			fg.wr.Ins2(opMov, string(rd), string(addr))
		}
		return rd, nil
	case ir.INDEX_EXPR:
		return fg.arrayElementAddress(n)
	default:
		return "", fmt.Errorf("line %d:%d: operand of @ must be an identifier or array element", n.Line, n.Pos)
	}
}

// arrayElementAddress computes the address of n (an INDEX_EXPR) into R7, the reserved address scratch register.
func (fg *funcGen) arrayElementAddress(n *ir.Node) (Register, error) {
	base := n.Children[0]
	sym := base.Entry
	if sym == nil {
		return "", fmt.Errorf("line %d:%d: %q was never resolved", base.Line, base.Pos, base.Data)
	}

	idxReg, err := fg.evalExpr(n.Children[1])
	if err != nil {
		return "", err
	}
	size := elemSize(sym.DataType)
	if sym.Kind == ir.SymGlobal {
		fg.wr.Ins2(opLa, string(R7), sym.Name)
	} else {
		fpAddress(fg.wr, sym.Offset)
	}
	if size != 1 {
		fg.wr.Ins3(opMul, string(idxReg), string(idxReg), util.Imm(size))
	}
	fg.wr.Ins3(opAdd, string(R7), string(R7), string(idxReg))
	fg.rf.Free(idxReg)
	return R7, nil
}

// genAssignment lowers `lhs := rhs`.
func (fg *funcGen) genAssignment(n *ir.Node) error {
	lhs, rhs := n.Children[0], n.Children[1]
	rs, err := fg.evalExpr(rhs)
	if err != nil {
		return err
	}
	switch lhs.Typ {
	case ir.IDENTIFIER_DATA:
		sym := lhs.Entry
		if sym == nil {
			return fmt.Errorf("line %d:%d: %q was never resolved", lhs.Line, lhs.Pos, lhs.Data)
		}
		if sym.Kind == ir.SymGlobal {
			fg.wr.Ins2(opLa, string(R7), sym.Name)
			fg.wr.Ins2(opSt, string(R7), string(rs))
		} else {
			addr := fpAddress(fg.wr, sym.Offset)
			fg.wr.Ins2(opSts, string(addr), string(rs))
		}
		if sym.DataType == "din" {
			tag, err := fg.dinTagValue(rhs)
			if err != nil {
				return err
			}
			fg.storeDinTag(sym, tag)
			fg.rf.Free(tag)
		}
	case ir.INDEX_EXPR:
		addr, err := fg.arrayElementAddress(lhs)
		if err != nil {
			return err
		}
		fg.wr.Ins2(opSt, string(addr), string(rs))
	default:
		return fmt.Errorf("line %d:%d: invalid assignment target %s", lhs.Line, lhs.Pos, lhs.Type())
	}
	fg.rf.Free(rs)
	return nil
}

// evalCall lowers a call expression: caller-save every live scratch register, push arguments right-to-left (so
// the callee can read them fp-relative in left-to-right declared order), CALL, pop the arguments back off
// (discarding them), restore the saved registers in reverse order, then read the result out of r0.
func (fg *funcGen) evalCall(n *ir.Node) (Register, error) {
	var args []*ir.Node
	if len(n.Children) > 0 {
		args = n.Children[0].Children
	}

	live := fg.rf.InUse()
	for _, r := range live {
		fg.wr.Ins1(opPush, string(r))
	}

	for i := len(args) - 1; i >= 0; i-- {
		rs, err := fg.evalExpr(args[i])
		if err != nil {
			return "", err
		}
		fg.wr.Ins1(opPush, string(rs))
		fg.rf.Free(rs)
	}
	name, _ := n.Data.(string)
	fg.wr.Ins1(opCall, "_func_"+name)
	for range args {
		fg.wr.Ins1(opPop, string(R7))
	}
	for i := len(live) - 1; i >= 0; i-- {
		fg.wr.Ins1(opPop, string(live[i]))
	}

	rd, err := fg.rf.Alloc()
	if err != nil {
		return "", err
	}
	if rd != R0 {
		fg.wr.Ins2(opMov, string(rd), string(R0))
	}
	return rd, nil
}

// dinTag maps a static data type to the runtime type tag a din slot's tag word carries: 0 for int, 2 for bool,
// 3 for char. Any other static type (including din itself, resolved separately in dinTagValue) defaults to 0.
func dinTag(dataType string) int {
	switch dataType {
	case "bool":
		return 2
	case "char":
		return 3
	default:
		return 0
	}
}

// dinTagValue returns a register holding the runtime tag to store for an assignment whose source is rhs: a
// runtime copy of the source din's own tag word when rhs is itself a din variable, otherwise rhs's static type
// tag as an immediate. The static type is rhs.DataType, set for identifiers and literals only; any other
// expression gets tag 0.
func (fg *funcGen) dinTagValue(rhs *ir.Node) (Register, error) {
	if rhs.Typ == ir.IDENTIFIER_DATA && rhs.Entry != nil && rhs.Entry.DataType == "din" {
		return fg.loadDinTag(rhs.Entry)
	}
	return fg.loadImmediate(dinTag(rhs.DataType))
}

// dinTagAddress materialises sym's tag word address into R7: the word immediately following its value word.
func (fg *funcGen) dinTagAddress(sym *ir.Symbol) {
	if sym.Kind == ir.SymGlobal {
		fg.wr.Ins2(opLa, string(R7), sym.Name)
	} else {
		fpAddress(fg.wr, sym.Offset)
	}
	fg.wr.Ins3(opAdd, string(R7), string(R7), util.Imm(4))
}

// loadDinTag loads sym's tag word into a fresh register.
func (fg *funcGen) loadDinTag(sym *ir.Symbol) (Register, error) {
	fg.dinTagAddress(sym)
	rd, err := fg.rf.Alloc()
	if err != nil {
		return "", err
	}
	fg.wr.Ins2(opLd, string(rd), string(R7))
	return rd, nil
}

// storeDinTag stores rs into sym's tag word.
func (fg *funcGen) storeDinTag(sym *ir.Symbol, rs Register) {
	fg.dinTagAddress(sym)
	fg.wr.Ins2(opSt, string(R7), string(rs))
}

// evalUnary lowers a prefix arithmetic/bitwise unary operator. ADDR_OF and DEREF are handled in evalExpr since
// they need an addressable operand rather than a value.
func (fg *funcGen) evalUnary(n *ir.Node) (Register, error) {
	rs, err := fg.evalExpr(n.Children[0])
	if err != nil {
		return "", err
	}
	op, _ := n.Data.(string)
	switch op {
	case "-":
		fg.wr.Ins2(opNeg, string(rs), string(rs))
	case "~":
		fg.wr.Ins2(opNot, string(rs), string(rs))
	case "!":
		fg.wr.Ins2(opCmpi, string(rs), util.Imm(0))
		fg.wr.Ins2(opMovi, string(rs), util.Imm(0))
		lTrue := fg.labels.Next(util.LabelJump)
		lDone := fg.labels.Next(util.LabelJump)
		fg.wr.Ins1(opJeq, lTrue)
		fg.wr.Ins1(opJmp, lDone)
		fg.wr.Label(lTrue)
		fg.wr.Ins2(opMovi, string(rs), util.Imm(1))
		fg.wr.Label(lDone)
	case "+":
		// Unary plus is a no-op.
	default:
		return "", fmt.Errorf("line %d:%d: unsupported unary operator %q", n.Line, n.Pos, op)
	}
	return rs, nil
}

// evalBinary lowers an arithmetic or bitwise binary operator. Relational and logical operators are materialised
// to a 0/1 register via evalBoolToReg (conditional.go) since they only reach here outside of a Condition node's
// direct branch context (e.g. `ok := a < b;`).
func (fg *funcGen) evalBinary(n *ir.Node) (Register, error) {
	op, _ := n.Data.(string)
	switch op {
	case "==", "!=", "<", "<=", ">", ">=", "&&", "||":
		return fg.evalBoolToReg(n)
	}

	rs1, err := fg.evalExpr(n.Children[0])
	if err != nil {
		return "", err
	}
	rs2, err := fg.evalExpr(n.Children[1])
	if err != nil {
		return "", err
	}

	var mnemonic string
	switch op {
	case "+":
		mnemonic = opAdd
	case "-":
		mnemonic = opSub
	case "*":
		mnemonic = opMul
	case "/":
		mnemonic = opDiv
	case "%":
		mnemonic = opMod
	case "&":
		mnemonic = opAnd
	case "|":
		mnemonic = opOr
	case "^":
		mnemonic = opXor
	case "<<":
		mnemonic = opShl
	case ">>":
		mnemonic = opShr
	default:
		return "", fmt.Errorf("line %d:%d: unsupported binary operator %q", n.Line, n.Pos, op)
	}
	fg.wr.Ins3(mnemonic, string(rs1), string(rs1), string(rs2))
	fg.rf.Free(rs2)
	return rs1, nil
}
