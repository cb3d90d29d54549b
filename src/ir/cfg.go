package ir

import (
	"fmt"

	"noobikc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// CFGNodeKind differentiates the six node shapes a control-flow graph is built from.
type CFGNodeKind int

const (
	Start CFGNodeKind = iota
	CFGBlock
	Condition
	Merge
	End
	CFGError
)

var cfgNodeKindNames = [...]string{"Start", "Block", "Condition", "Merge", "End", "Error"}

// String returns the print-friendly name of k.
func (k CFGNodeKind) String() string { return cfgNodeKindNames[k] }

// CFGNode is a single control-flow graph node. Condition nodes use both out-edges; Start/Block/Merge use only
// DefaultNext; End uses neither. Exprs holds the attached AST expression subtree(s) evaluated at this node, so
// code generation never needs to re-consult the AST for expression shape.
type CFGNode struct {
	Id              int
	Kind            CFGNodeKind
	Label           string
	Stmt            *Node // Back reference to the originating AST statement, if any.
	Exprs           []*Node
	DefaultNext     *CFGNode
	ConditionalNext *CFGNode
	HasError        bool
	ErrMsg          string
	IsBreak         bool
}

// Segment is an (entry, exit) pair of CFG nodes returned by lowering a single statement. The caller chains
// segments by linking exit.DefaultNext to the next segment's entry. Exit is nil when the segment's control flow
// never falls through (break, continue, return): callers must stop chaining sibling statements after such a
// segment.
type Segment struct {
	Entry *CFGNode
	Exit  *CFGNode
}

// CFG is one function's control-flow graph: the nodes it owns, plus its Start and End designators.
type CFG struct {
	FuncName    string
	FuncScopeID int
	Nodes       []*CFGNode
	Entry       *CFGNode
	Exit        *CFGNode
}

// cfgBuildCtx threads per-function mutable state (the node id counter, the loop-exit and loop-continue target
// stacks) through the recursive lowering calls, in place of module-level globals.
type cfgBuildCtx struct {
	cfg          *CFG
	bctx         *buildCtx
	nextID       int
	loopExit     util.Stack
	loopContinue util.Stack
}

// ---------------------
// ----- Functions -----
// ---------------------

func (c *cfgBuildCtx) newNode(kind CFGNodeKind, label string) *CFGNode {
	c.nextID++
	n := &CFGNode{Id: c.nextID, Kind: kind, Label: label}
	c.cfg.Nodes = append(c.cfg.Nodes, n)
	return n
}

// checkNodeExpr runs the symbol table's expression checker (§4.1) against every expression attached to n,
// scoped to the enclosing function. A failing check flips n to kind Error and prefixes its label with the
// diagnostic, per spec.md §4.2.
func (c *cfgBuildCtx) checkNodeExpr(n *CFGNode, scope *Scope) {
	hasErr := false
	for _, e := range n.Exprs {
		if c.bctx.checkExpr(e, scope) {
			hasErr = true
		}
	}
	n.HasError = hasErr
	if hasErr {
		n.Kind = CFGError
		n.ErrMsg = "semantic error in attached expression"
		n.Label = "[ERROR] " + n.Label
	}
}

// BuildCFG produces one CFG per FUNCTION child of program, using table to resolve the owning function scope and
// to run semantic checks on every attached expression as it is lowered.
func BuildCFG(program *Node, table *SymbolTable) ([]*CFG, error) {
	bctx := &buildCtx{table: table}
	var cfgs []*CFG
	for _, fn := range program.Children {
		if fn.Typ != FUNCTION {
			continue
		}
		sig := fn.Children[0]
		name, _ := sig.Data.(string)
		var fnScope *Scope
		for _, s := range table.Scopes {
			if s.Kind == ScopeFunction && s.Name == name {
				fnScope = s
				break
			}
		}
		if fnScope == nil {
			continue // Header/body declaration failed; nothing sound to lower.
		}

		cfg := &CFG{FuncName: name, FuncScopeID: fnScope.Id}
		ctx := &cfgBuildCtx{cfg: cfg, bctx: bctx}

		entry := ctx.newNode(Start, fmt.Sprintf("entry: %s (scope:%d)", name, fnScope.Id))
		seg := ctx.lowerStmt(fn.Children[1], fnScope)
		exit := ctx.newNode(End, fmt.Sprintf("exit: %s", name))

		if seg.Entry == nil {
			entry.DefaultNext = exit
		} else {
			entry.DefaultNext = seg.Entry
			if seg.Exit != nil {
				seg.Exit.DefaultNext = exit
			}
		}

		cfg.Entry = entry
		cfg.Exit = exit
		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}

// lowerStmt lowers a single AST statement node to a Segment, per the lowering rules of spec.md §4.2.
func (c *cfgBuildCtx) lowerStmt(n *Node, scope *Scope) Segment {
	if n == nil {
		return Segment{}
	}
	switch n.Typ {
	case STATEMENT_LIST:
		return c.lowerStmtList(n, scope)
	case BLOCK:
		if len(n.Children) > 0 {
			return c.lowerStmtList(n.Children[0], scope)
		}
		return Segment{}
	case VAR_DECL_LIST:
		blk := c.newNode(CFGBlock, "decl-list")
		blk.Stmt = n
		return Segment{blk, blk}
	case VAR_DECLARATION:
		blk := c.newNode(CFGBlock, "decl")
		blk.Stmt = n
		return Segment{blk, blk}
	case NULL_STATEMENT:
		blk := c.newNode(CFGBlock, "null")
		blk.Stmt = n
		return Segment{blk, blk}

	case IF_STATEMENT:
		return c.lowerIf(n, scope)
	case WHILE_STATEMENT:
		return c.lowerWhile(n, scope)
	case REPEAT_STATEMENT:
		return c.lowerRepeat(n, scope)

	case BREAK_STATEMENT:
		blk := c.newNode(CFGBlock, "break")
		blk.Stmt = n
		blk.IsBreak = true
		if target, ok := c.loopExit.Peek().(*CFGNode); ok {
			blk.DefaultNext = target
		} else {
			c.bctx.table.Sink.AddNode(n, ErrDeclaration, "break outside of a loop")
		}
		return Segment{blk, nil}

	case CONTINUE_STATEMENT:
		blk := c.newNode(CFGBlock, "continue")
		blk.Stmt = n
		if target, ok := c.loopContinue.Peek().(*CFGNode); ok {
			blk.DefaultNext = target
		} else {
			c.bctx.table.Sink.AddNode(n, ErrDeclaration, "continue outside of a loop")
		}
		return Segment{blk, nil}

	case RETURN_STATEMENT:
		blk := c.newNode(CFGBlock, "return")
		blk.Stmt = n
		if len(n.Children) > 0 {
			blk.Exprs = []*Node{n.Children[0]}
			c.checkNodeExpr(blk, scope)
		}
		return Segment{blk, nil}

	case PRINT_STATEMENT:
		blk := c.newNode(CFGBlock, "print")
		blk.Stmt = n
		if len(n.Children) > 0 {
			blk.Exprs = n.Children[0].Children
			c.checkNodeExpr(blk, scope)
		}
		return Segment{blk, blk}

	case ASSIGNMENT:
		blk := c.newNode(CFGBlock, "assign")
		blk.Stmt = n
		blk.Exprs = []*Node{n}
		c.checkNodeExpr(blk, scope)
		return Segment{blk, blk}

	case EXPR_STATEMENT:
		blk := c.newNode(CFGBlock, "expr")
		blk.Stmt = n
		if len(n.Children) > 0 {
			blk.Exprs = []*Node{n.Children[0]}
		}
		c.checkNodeExpr(blk, scope)
		return Segment{blk, blk}

	default:
		blk := c.newNode(CFGBlock, "expr")
		blk.Stmt = n
		blk.Exprs = []*Node{n}
		c.checkNodeExpr(blk, scope)
		return Segment{blk, blk}
	}
}

// lowerStmtList chains a sequence of statements, stopping the chain after the first segment whose Exit is nil
// (break, continue, return): any following statements still get lowered to nodes (so they appear in the graph
// and a DOT dump is representative) but are left unreachable, per spec.md §4.2.
func (c *cfgBuildCtx) lowerStmtList(list *Node, scope *Scope) Segment {
	var firstEntry, lastExit *CFGNode
	terminated := false
	for _, stmt := range list.Children {
		seg := c.lowerStmt(stmt, scope)
		if seg.Entry == nil {
			continue
		}
		if firstEntry == nil {
			firstEntry = seg.Entry
		} else if !terminated {
			lastExit.DefaultNext = seg.Entry
		}
		if !terminated {
			lastExit = seg.Exit
		}
		if seg.Exit == nil {
			terminated = true
		}
	}
	if terminated {
		return Segment{firstEntry, nil}
	}
	return Segment{firstEntry, lastExit}
}

func (c *cfgBuildCtx) lowerIf(n *Node, scope *Scope) Segment {
	cond := c.newNode(Condition, "if")
	cond.Stmt = n
	cond.Exprs = []*Node{n.Children[0]}

	thenSeg := c.lowerStmt(n.Children[1], scope)
	merge := c.newNode(Merge, "merge-if")

	cond.ConditionalNext = thenSeg.Entry
	if thenSeg.Exit != nil {
		thenSeg.Exit.DefaultNext = merge
	}

	if len(n.Children) > 2 {
		elseSeg := c.lowerStmt(n.Children[2], scope)
		cond.DefaultNext = elseSeg.Entry
		if elseSeg.Exit != nil {
			elseSeg.Exit.DefaultNext = merge
		}
	} else {
		cond.DefaultNext = merge
	}

	c.checkNodeExpr(cond, scope)
	return Segment{cond, merge}
}

func (c *cfgBuildCtx) lowerWhile(n *Node, scope *Scope) Segment {
	cond := c.newNode(Condition, "while")
	cond.Stmt = n
	cond.Exprs = []*Node{n.Children[0]}
	merge := c.newNode(Merge, "exit-while")

	c.loopExit.Push(merge)
	c.loopContinue.Push(cond)
	bodySeg := c.lowerStmt(n.Children[1], scope)
	c.loopContinue.Pop()
	c.loopExit.Pop()

	cond.ConditionalNext = bodySeg.Entry
	if bodySeg.Exit != nil {
		bodySeg.Exit.DefaultNext = cond
	}
	cond.DefaultNext = merge

	c.checkNodeExpr(cond, scope)
	return Segment{cond, merge}
}

func (c *cfgBuildCtx) lowerRepeat(n *Node, scope *Scope) Segment {
	begin := c.newNode(Merge, "begin-repeat")
	exitMerge := c.newNode(Merge, "exit-repeat")
	until := c.newNode(Condition, "until")
	until.Stmt = n

	c.loopExit.Push(exitMerge)
	c.loopContinue.Push(until)
	bodySeg := c.lowerStmt(n.Children[0], scope)
	c.loopContinue.Pop()
	c.loopExit.Pop()

	if bodySeg.Entry != nil {
		begin.DefaultNext = bodySeg.Entry
	} else {
		begin.DefaultNext = until
	}
	if bodySeg.Exit != nil {
		bodySeg.Exit.DefaultNext = until
	}

	until.Exprs = []*Node{n.Children[1]}
	until.ConditionalNext = exitMerge
	until.DefaultNext = begin
	c.checkNodeExpr(until, scope)

	return Segment{begin, exitMerge}
}

// Reachable returns the subset of cfg.Nodes reachable from cfg.Entry via either out-edge, in ascending node-id
// order. Code generation walks exactly this slice so emission is deterministic and unreachable nodes are
// omitted, per spec.md §4.3.
func (cfg *CFG) Reachable() []*CFGNode {
	seen := make(map[int]bool)
	var walk func(n *CFGNode)
	walk = func(n *CFGNode) {
		if n == nil || seen[n.Id] {
			return
		}
		seen[n.Id] = true
		walk(n.DefaultNext)
		walk(n.ConditionalNext)
	}
	walk(cfg.Entry)

	out := make([]*CFGNode, 0, len(seen))
	for _, n := range cfg.Nodes {
		if seen[n.Id] {
			out = append(out, n)
		}
	}
	return out
}
