// This file contains the short-circuit branch emitter: codegen for boolean expressions used as a Condition
// node's test, grounded on the teacher's src/backend/riscv/conditional.go genIf/genWhile/genJump shape but
// generalised to recurse through && and || so neither operand is evaluated unless needed.

package backend

import (
	"fmt"

	"noobikc/src/ir"
	"noobikc/src/util"
)

// ---------------------
// ----- Functions -----
// ---------------------

// emitBranch lowers boolean expression n into a branch: control reaches trueLabel when n is true, falseLabel
// when n is false. Both labels must already be assigned (a Condition CFG node's ConditionalNext/DefaultNext, or
// a synthetic mid-expression label for && / ||).
func (fg *funcGen) emitBranch(n *ir.Node, trueLabel, falseLabel string) error {
	if n.Typ == ir.BINARY_EXPR {
		op, _ := n.Data.(string)
		switch op {
		case "&&":
			mid := fg.labels.Next(util.LabelShortCircuit)
			if err := fg.emitBranch(n.Children[0], mid, falseLabel); err != nil {
				return err
			}
			fg.wr.Label(mid)
			return fg.emitBranch(n.Children[1], trueLabel, falseLabel)
		case "||":
			mid := fg.labels.Next(util.LabelShortCircuit)
			if err := fg.emitBranch(n.Children[0], trueLabel, mid); err != nil {
				return err
			}
			fg.wr.Label(mid)
			return fg.emitBranch(n.Children[1], trueLabel, falseLabel)
		case "==", "!=", "<", "<=", ">", ">=":
			rs1, err := fg.evalExpr(n.Children[0])
			if err != nil {
				return err
			}
			rs2, err := fg.evalExpr(n.Children[1])
			if err != nil {
				return err
			}
			fg.wr.Ins2(opCmp, string(rs1), string(rs2))
			jmp, err := relJump(op)
			if err != nil {
				return fmt.Errorf("line %d:%d: %w", n.Line, n.Pos, err)
			}
			fg.wr.Ins1(jmp, trueLabel)
			fg.wr.Ins1(opJmp, falseLabel)
			fg.rf.Free(rs1)
			fg.rf.Free(rs2)
			return nil
		}
	}
	if n.Typ == ir.UNARY_EXPR {
		if op, _ := n.Data.(string); op == "!" {
			return fg.emitBranch(n.Children[0], falseLabel, trueLabel)
		}
	}

	// Fall back to evaluating n as an ordinary (non-boolean-operator) expression and testing it against zero;
	// covers bare boolean variables, function calls returning bool, and parenthesised sub-expressions.
	rd, err := fg.evalExpr(n)
	if err != nil {
		return err
	}
	fg.wr.Ins2(opCmpi, string(rd), util.Imm(0))
	fg.wr.Ins1(opJne, trueLabel)
	fg.wr.Ins1(opJmp, falseLabel)
	fg.rf.Free(rd)
	return nil
}

// evalBoolToReg materialises a relational/logical expression's truth value into a fresh 0/1 register, for use
// where a boolean expression appears as an ordinary value rather than directly driving a Condition node.
func (fg *funcGen) evalBoolToReg(n *ir.Node) (Register, error) {
	rd, err := fg.rf.Alloc()
	if err != nil {
		return "", err
	}
	lTrue := fg.labels.Next(util.LabelShortCircuit)
	lDone := fg.labels.Next(util.LabelShortCircuit)
	lMid := fg.labels.Next(util.LabelShortCircuit)

	if err := fg.emitBranch(n, lTrue, lMid); err != nil {
		return "", err
	}
	fg.wr.Label(lMid)
	fg.wr.Ins2(opMovi, string(rd), util.Imm(0))
	fg.wr.Ins1(opJmp, lDone)
	fg.wr.Label(lTrue)
	fg.wr.Ins2(opMovi, string(rd), util.Imm(1))
	fg.wr.Label(lDone)
	return rd, nil
}
