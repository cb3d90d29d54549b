package backend

import (
	"fmt"

	"noobikc/src/ir"
	"noobikc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// funcGen carries the mutable state one function's codegen needs: its register file, output writer, label
// allocator (reset per function per spec's determinism rule) and a dense label per reachable CFG node.
type funcGen struct {
	wr         *util.Writer
	rf         *RegisterFile
	labels     *util.LabelAllocator
	table      *ir.SymbolTable
	fnScope    *ir.Scope
	cfg        *ir.CFG
	nodeLabels map[int]string
	fnName     string
	frameSize  int
	epilogue   string
}

// ---------------------
// ----- Functions -----
// ---------------------

// elemSize returns the byte size of one scalar element of dataType, duplicating ir's unexported baseSize: the
// symbol table intentionally keeps that mapping private to its own package, so codegen's addressing arithmetic
// carries its own small copy.
func elemSize(dataType string) int {
	switch dataType {
	case "long", "ulong", "din":
		return 8
	}
	return 4
}

// genFunction emits one function's prologue, body and epilogue. table and cfg must agree on the function's scope.
func genFunction(wr *util.Writer, table *ir.SymbolTable, cfg *ir.CFG) error {
	fnScope := table.Scopes[cfg.FuncScopeID-1]
	fg := &funcGen{
		wr: wr, rf: NewRegisterFile(), labels: util.NewLabelAllocator(cfg.FuncName),
		table: table, fnScope: fnScope, cfg: cfg, fnName: cfg.FuncName, frameSize: fnScope.FrameSize(),
	}
	fg.epilogue = fmt.Sprintf("_EPILOG_%s", fg.fnName)

	reachable := cfg.Reachable()
	fg.nodeLabels = make(map[int]string, len(reachable))
	for _, n := range reachable {
		fg.nodeLabels[n.Id] = fmt.Sprintf("_L_%s_%d", fg.fnName, n.Id)
	}

	wr.Label("_func_" + fg.fnName)
	wr.Comment("prologue: %s, frame size %d", fg.fnName, fg.frameSize)
	wr.Ins1(opPush, string(FP))
	wr.Ins2(opMov, string(FP), string(SP))
	if fg.frameSize > 0 {
		wr.Ins3(opSub, string(SP), string(SP), util.Imm(fg.frameSize))
	}

	for _, n := range reachable {
		wr.Label(fg.nodeLabels[n.Id])
		if err := fg.genNode(n); err != nil {
			return fmt.Errorf("%s: %w", fg.fnName, err)
		}
	}
	wr.Label(fg.epilogue)
	fg.genEpilogue()
	return nil
}

// label returns the emission label of a CFG node, or "" for nil (meaning "no edge").
func (fg *funcGen) label(n *ir.CFGNode) string {
	if n == nil {
		return ""
	}
	return fg.nodeLabels[n.Id]
}

func (fg *funcGen) genEpilogue() {
	fg.wr.Comment("epilogue: %s", fg.fnName)
	fg.wr.Ins2(opMov, string(SP), string(FP))
	fg.wr.Ins1(opPop, string(FP))
	fg.wr.Ins1(opRet, "")
}

// genNode lowers one CFG node to assembly and its outgoing control flow to jumps. Every node except End falls
// through to the textually-following label only by coincidence of Reachable's ordering, so genNode always emits
// an explicit jump rather than relying on layout.
func (fg *funcGen) genNode(n *ir.CFGNode) error {
	fg.rf.Reset()
	switch n.Kind {
	case ir.Start:
		// Prologue already emitted once per function; nothing per-node to do.
	case ir.End:
		fg.wr.Ins1(opJmp, fg.epilogue)
		return nil
	case ir.CFGError:
		fg.wr.Comment("unreachable: %s", n.ErrMsg)
	case ir.Condition:
		if err := fg.emitBranch(n.Exprs[0], fg.label(n.ConditionalNext), fg.label(n.DefaultNext)); err != nil {
			return err
		}
		return nil
	case ir.Merge:
		// No code; just the fallthrough jump below.
	case ir.CFGBlock:
		if err := fg.genStmt(n); err != nil {
			return err
		}
		if n.IsBreak || (n.Stmt != nil && n.Stmt.Typ == ir.CONTINUE_STATEMENT) {
			fg.wr.Ins1(opJmp, fg.label(n.DefaultNext))
			return nil
		}
		if n.Stmt != nil && n.Stmt.Typ == ir.RETURN_STATEMENT {
			fg.wr.Ins1(opJmp, fg.epilogue)
			return nil
		}
	}
	if next := fg.label(n.DefaultNext); next != "" {
		fg.wr.Ins1(opJmp, next)
	}
	return nil
}

// genStmt lowers the statement attached to a CFGBlock node.
func (fg *funcGen) genStmt(n *ir.CFGNode) error {
	if n.Stmt == nil {
		return nil
	}
	switch n.Stmt.Typ {
	case ir.VAR_DECL_LIST, ir.VAR_DECLARATION, ir.NULL_STATEMENT:
		// Storage was already carved out by the symbol table pass; nothing to emit for a bare declaration.
	case ir.BREAK_STATEMENT, ir.CONTINUE_STATEMENT:
		// Handled by the caller via the node's DefaultNext edge.
	case ir.RETURN_STATEMENT:
		if len(n.Exprs) > 0 {
			rd, err := fg.evalExpr(n.Exprs[0])
			if err != nil {
				return err
			}
			if rd != R0 {
				fg.wr.Ins2(opMov, string(R0), string(rd))
			}
		}
	case ir.PRINT_STATEMENT:
		for _, e := range n.Exprs {
			if err := fg.genPrintItem(e); err != nil {
				return err
			}
		}
	case ir.ASSIGNMENT:
		return fg.genAssignment(n.Stmt)
	case ir.EXPR_STATEMENT:
		if len(n.Exprs) > 0 {
			_, err := fg.evalExpr(n.Exprs[0])
			return err
		}
	default:
		if len(n.Exprs) > 0 {
			_, err := fg.evalExpr(n.Exprs[0])
			return err
		}
	}
	return nil
}

// genPrintItem evaluates e and emits a single print system call: the argument is pushed, then a CALL to the
// runtime's print entry point `__print_int`/`__print_char`/`__print_bool`/`__print_str` dispatching on the
// expression's static type (e.DataType, which the semantic checker sets for identifiers and literals; any other
// expression prints via `__print_int`), then the argument is popped back off. Spec's Non-goals exclude a
// dynamic-dispatch print builtin, so the type is resolved here at compile time rather than via a `din` runtime
// tag.
func (fg *funcGen) genPrintItem(e *ir.Node) error {
	if e.Typ == ir.STRING_DATA {
		idx, _ := e.Data.(int)
		fg.wr.Ins1(opPush, labelString(idx))
		fg.wr.Ins1(opCall, "__print_str")
		fg.wr.Ins1(opPop, string(R7))
		return nil
	}
	rd, err := fg.evalExpr(e)
	if err != nil {
		return err
	}
	fg.wr.Ins1(opPush, string(rd))
	switch e.DataType {
	case "char":
		fg.wr.Ins1(opCall, "__print_char")
	case "bool":
		fg.wr.Ins1(opCall, "__print_bool")
	default:
		fg.wr.Ins1(opCall, "__print_int")
	}
	fg.wr.Ins1(opPop, string(R7))
	return nil
}
