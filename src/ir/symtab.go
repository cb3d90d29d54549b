package ir

import (
	"fmt"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// ScopeKind differentiates the three shapes of lexical scope a Noobik program can open.
type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota
	ScopeFunction
	ScopeBlock
)

var scopeKindNames = [...]string{"Global", "Function", "Block"}

// String returns the print-friendly name of k.
func (k ScopeKind) String() string { return scopeKindNames[k] }

// Scope is a lexical scope record: a node in the scope tree rooted at the program-global scope. Locals and
// parameters carve storage from two independent running cursors, LocalOffset (negative, growing down from fp)
// and ParamOffset (positive, growing up from fp).
type Scope struct {
	Id          int              // Dense id, assigned in declaration order; id 1 is the global scope.
	Kind        ScopeKind        // Global, Function or Block.
	Name        string           // Function name, when Kind == ScopeFunction. Empty otherwise.
	Parent      *Scope           // nil only for the global scope.
	Level       int              // Nesting depth; 0 for global.
	LocalOffset int              // Next-free local slot, fp-relative, negative; starts at -4 per function scope.
	ParamOffset int              // Next-free parameter slot, fp-relative, positive; starts at 8 per function scope.
	order       []string         // Declaration order of names in this scope, for deterministic enumeration.
	symbols     map[string]*Symbol
}

// SymbolKind differentiates the five ways a name can be declared.
type SymbolKind int

const (
	SymGlobal SymbolKind = iota
	SymLocal
	SymParameter
	SymFunction
	SymConstant
)

var symbolKindNames = [...]string{"Global", "Local", "Parameter", "Function", "Constant"}

// String returns the print-friendly name of k.
func (k SymbolKind) String() string { return symbolKindNames[k] }

// Symbol is a single declared name: a variable, parameter, function or constant.
type Symbol struct {
	Name       string     // Declared identifier.
	Kind       SymbolKind // Global, Local, Parameter, Function or Constant.
	DataType   string     // Base type name: "int", "bool", "char", "din", or the element type when IsArray.
	IsArray    bool
	ArraySize  int
	Scope      *Scope // Owning scope.
	Size       int    // Size in bytes: see sizeOf.
	Offset     int    // Local: negative fp-relative. Parameter: positive fp-relative. Global: absolute DRAM offset.
	Address    int    // Absolute address; meaningful for Global and Constant kinds.
	Declared   bool
	Initialized bool
	Constant   bool
	Used       bool
	Modified   bool
	ParamCount int      // Function only.
	ParamTypes []string // Function only, positional.
	ReturnType string   // Function only; empty means void.
}

// SymbolTable owns every Scope and Symbol produced by BuildSymbolTable, plus the accumulated diagnostics from
// both construction passes.
type SymbolTable struct {
	Global   *Scope
	Scopes   []*Scope // Dense, indexed by Id-1.
	Sink     *ErrorSink
	Warnings []string

	nextScopeID      int
	nextGlobalOffset int
}

// buildCtx threads the few pieces of mutable state the two construction passes need through recursive calls,
// in place of the module-level globals the reference implementation used for "current symbol table" and
// "current function scope".
type buildCtx struct {
	table *SymbolTable
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewScope allocates a Scope under parent (nil only for the global scope) and registers it in table.Scopes.
func (t *SymbolTable) NewScope(kind ScopeKind, name string, parent *Scope) *Scope {
	t.nextScopeID++
	level := 0
	if parent != nil {
		level = parent.Level + 1
	}
	s := &Scope{
		Id:          t.nextScopeID,
		Kind:        kind,
		Name:        name,
		Parent:      parent,
		Level:       level,
		LocalOffset: -4,
		ParamOffset: 8,
		symbols:     make(map[string]*Symbol),
	}
	t.Scopes = append(t.Scopes, s)
	return s
}

// HasLocal reports whether name is already declared directly in s (not an ancestor).
func (s *Scope) HasLocal(name string) bool {
	_, ok := s.symbols[name]
	return ok
}

// Declare registers sym in s under sym.Name. Caller must check HasLocal first; Declare overwrites silently,
// matching the "redeclaration is a semantic error, not a silent overwrite" invariant only when the caller heeds
// the HasLocal check first.
func (s *Scope) Declare(sym *Symbol) {
	if _, ok := s.symbols[sym.Name]; !ok {
		s.order = append(s.order, sym.Name)
	}
	s.symbols[sym.Name] = sym
}

// LookupCurrentScope restricts lookup to s alone, without walking to parents.
func (s *Scope) LookupCurrentScope(name string) *Symbol {
	return s.symbols[name]
}

// Symbols returns every Symbol declared directly in s, in declaration order.
func (s *Scope) Symbols() []*Symbol {
	out := make([]*Symbol, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.symbols[name])
	}
	return out
}

// FrameSize returns the stack frame size a Function scope requires: max(0, -LocalOffset).
func (s *Scope) FrameSize() int {
	if s.LocalOffset >= 0 {
		return 0
	}
	return -s.LocalOffset
}

// Lookup walks from's scope chain (innermost to global), returning the first Symbol named name, or nil.
func Lookup(from *Scope, name string) *Symbol {
	for s := from; s != nil; s = s.Parent {
		if sym, ok := s.symbols[name]; ok {
			return sym
		}
	}
	return nil
}

// baseSize returns the byte size of a scalar of the given base type name.
func baseSize(dataType string) int {
	switch dataType {
	case "long", "ulong":
		return 8
	case "din":
		return 8
	default:
		return 4
	}
}

// sizeOf returns the total byte size of a declared variable: element size, scaled by ArraySize for arrays.
func sizeOf(dataType string, isArray bool, arraySize int) int {
	elem := baseSize(dataType)
	if isArray {
		return elem * arraySize
	}
	return elem
}

// resolveType extracts (base type, is-array, array-size) from a TYPE_REF node, rejecting a nested array element
// type as a single-level array-of-scalar is the only shape this backend's size model supports (spec.md §9 open
// question: "Multi-dimensional arrays... out of scope... should be rejected earlier").
func (ctx *buildCtx) resolveType(n *Node) (string, bool, int) {
	if n.Data == "array" {
		size := 0
		if len(n.Children) > 0 {
			if v, ok := n.Children[0].Data.(int); ok {
				size = v
			}
		}
		elemType := "int"
		if len(n.Children) > 1 {
			et, eIsArray, _ := ctx.resolveType(n.Children[1])
			elemType = et
			if eIsArray {
				ctx.table.Sink.AddNode(n.Children[1], ErrDeclaration, "nested arrays are not supported")
			}
		}
		return elemType, true, size
	}
	if s, ok := n.Data.(string); ok {
		return s, false, 0
	}
	return "int", false, 0
}

// normalizeParamList returns a flat, ordered slice of ARG_DEF nodes from a PARAMETER_LIST node, handling both the
// flat shape this package's own parser produces and the chained shape (successive ArgDefs nested as a later
// child of the previous one) spec.md §9 notes as a possible upstream grammar's shape. Defending against both
// means this builder tolerates a parser swap without silently mis-binding parameters.
func normalizeParamList(params *Node) []*Node {
	if params == nil {
		return nil
	}
	var out []*Node
	for _, c := range params.Children {
		out = append(out, flattenArgChain(c)...)
	}
	return out
}

func flattenArgChain(n *Node) []*Node {
	if n == nil || n.Typ != ARG_DEF {
		return nil
	}
	out := []*Node{n}
	if len(n.Children) > 1 {
		if next := n.Children[1]; next != nil && next.Typ == ARG_DEF {
			out = append(out, flattenArgChain(next)...)
		}
	}
	return out
}

// signatureParts extracts the optional PARAMETER_LIST and return TYPE_REF children of a FUNCTION_SIGNATURE node,
// independent of the order or presence of either.
func signatureParts(sig *Node) (params *Node, ret *Node) {
	for _, c := range sig.Children {
		switch c.Typ {
		case PARAMETER_LIST:
			params = c
		case TYPE_REF:
			ret = c
		}
	}
	return
}

// BuildSymbolTable builds the scope tree and symbol table for program, a PROGRAM node whose children are
// VAR_DECL_LIST (global declarations) and FUNCTION nodes. A first pass declares every global variable; then
// come the two passes spec.md §4.1 describes: function headers (so calls may forward-reference any function),
// then bodies. Every accumulated diagnostic is non-fatal; the pass always
// completes and returns a usable, if partially erroneous, SymbolTable.
func BuildSymbolTable(program *Node) (*SymbolTable, error) {
	table := &SymbolTable{Sink: NewErrorSink(16)}
	ctx := &buildCtx{table: table}
	table.Global = table.NewScope(ScopeGlobal, "", nil)

	// Pass 0: global variable declarations, so globals are visible to every function body regardless of
	// declaration order relative to functions in the source file.
	for _, top := range program.Children {
		if top.Typ == VAR_DECL_LIST {
			for _, decl := range top.Children {
				ctx.declareVars(decl, table.Global)
			}
		}
	}

	// Pass 1: function headers only.
	for _, fn := range program.Children {
		if fn.Typ != FUNCTION {
			continue
		}
		sig := fn.Children[0]
		name, _ := sig.Data.(string)
		if table.Global.HasLocal(name) {
			table.Sink.AddNode(sig, ErrDeclaration, "redeclaration of function %q", name)
			continue
		}
		params, ret := signatureParts(sig)
		argDefs := normalizeParamList(params)
		paramTypes := make([]string, 0, len(argDefs))
		for _, a := range argDefs {
			typ, isArray, _ := ctx.resolveType(a.Children[0])
			if isArray {
				typ = "array of " + typ
			}
			paramTypes = append(paramTypes, typ)
		}
		returnType := ""
		if ret != nil {
			returnType, _, _ = ctx.resolveType(ret)
		}
		sym := &Symbol{
			Name:       name,
			Kind:       SymFunction,
			Scope:      table.Global,
			Declared:   true,
			ParamCount: len(argDefs),
			ParamTypes: paramTypes,
			ReturnType: returnType,
		}
		table.Global.Declare(sym)
	}

	// Pass 2: function bodies.
	for _, fn := range program.Children {
		if fn.Typ != FUNCTION {
			continue
		}
		sig := fn.Children[0]
		name, _ := sig.Data.(string)
		fnSym := table.Global.LookupCurrentScope(name)
		if fnSym == nil {
			continue // Header declaration failed (redeclaration); body cannot be anchored to a symbol.
		}
		fnScope := table.NewScope(ScopeFunction, name, table.Global)
		params, _ := signatureParts(sig)
		for _, a := range normalizeParamList(params) {
			pname, _ := a.Data.(string)
			typ, isArray, arrSize := ctx.resolveType(a.Children[0])
			if fnScope.HasLocal(pname) {
				table.Sink.AddNode(a, ErrDeclaration, "redeclaration of parameter %q", pname)
				continue
			}
			size := sizeOf(typ, isArray, arrSize)
			psym := &Symbol{
				Name: pname, Kind: SymParameter, DataType: typ, IsArray: isArray, ArraySize: arrSize,
				Scope: fnScope, Size: size, Offset: fnScope.ParamOffset, Declared: true, Initialized: true,
			}
			fnScope.ParamOffset += size
			fnScope.Declare(psym)
			a.Entry = psym
		}

		body := fn.Children[1]
		ctx.analyzeStmt(body, fnScope)
		fnSym.Used = true // A defined function's header symbol is "used" by its own definition existing.
	}

	table.auditUnused()
	return table, nil
}

// declareVars binds every identifier in a VAR_DECLARATION's IDENTIFIER_LIST child to a fresh Symbol of the type
// named by its TYPE_REF child, in scope. Globals get monotonically increasing DRAM offsets; locals carve
// downward from scope.LocalOffset.
func (ctx *buildCtx) declareVars(decl *Node, scope *Scope) {
	if decl.Typ != VAR_DECLARATION || len(decl.Children) < 2 {
		return
	}
	idList := decl.Children[0]
	typ, isArray, arrSize := ctx.resolveType(decl.Children[1])
	size := sizeOf(typ, isArray, arrSize)

	for _, idNode := range idList.Children {
		name, _ := idNode.Data.(string)
		if scope.HasLocal(name) {
			ctx.table.Sink.AddNode(idNode, ErrDeclaration, "redeclaration of %q", name)
			continue
		}
		sym := &Symbol{Name: name, DataType: typ, IsArray: isArray, ArraySize: arrSize, Size: size, Scope: scope, Declared: true}
		if scope.Kind == ScopeGlobal {
			sym.Kind = SymGlobal
			sym.Offset = ctx.table.nextGlobalOffset
			sym.Address = sym.Offset
			ctx.table.nextGlobalOffset += size
		} else {
			sym.Kind = SymLocal
			scope.LocalOffset -= size
			sym.Offset = scope.LocalOffset
		}
		scope.Declare(sym)
		idNode.Entry = sym
	}
}

// analyzeStmt performs semantic analysis of a single statement node, opening fresh Block scopes exactly where
// spec.md §4.1 requires (If branches, While/Repeat bodies) and nowhere else: a bare STATEMENT_LIST/BLOCK
// directly inside a Function scope reuses that scope rather than opening a new one.
func (ctx *buildCtx) analyzeStmt(n *Node, scope *Scope) {
	if n == nil {
		return
	}
	switch n.Typ {
	case BLOCK:
		if len(n.Children) > 0 {
			ctx.analyzeStmtList(n.Children[0], scope)
		}
	case STATEMENT_LIST:
		ctx.analyzeStmtList(n, scope)
	case VAR_DECL_LIST:
		for _, d := range n.Children {
			ctx.declareVars(d, scope)
		}
	case VAR_DECLARATION:
		ctx.declareVars(n, scope)
	case IF_STATEMENT:
		ctx.checkExpr(n.Children[0], scope)
		thenScope := ctx.table.NewScope(ScopeBlock, "", scope)
		ctx.analyzeStmt(n.Children[1], thenScope)
		if len(n.Children) > 2 {
			elseScope := ctx.table.NewScope(ScopeBlock, "", scope)
			ctx.analyzeStmt(n.Children[2], elseScope)
		}
	case WHILE_STATEMENT:
		ctx.checkExpr(n.Children[0], scope)
		bodyScope := ctx.table.NewScope(ScopeBlock, "", scope)
		ctx.analyzeStmt(n.Children[1], bodyScope)
	case REPEAT_STATEMENT:
		bodyScope := ctx.table.NewScope(ScopeBlock, "", scope)
		ctx.analyzeStmt(n.Children[0], bodyScope)
		ctx.checkExpr(n.Children[1], bodyScope)
	case BREAK_STATEMENT, CONTINUE_STATEMENT, NULL_STATEMENT:
		// No storage, no expression: nothing to resolve.
	case RETURN_STATEMENT:
		if len(n.Children) > 0 {
			ctx.checkExpr(n.Children[0], scope)
		}
	case PRINT_STATEMENT:
		if len(n.Children) > 0 {
			for _, e := range n.Children[0].Children {
				ctx.checkExpr(e, scope)
			}
		}
	case EXPR_STATEMENT:
		if len(n.Children) > 0 {
			ctx.checkExpr(n.Children[0], scope)
		}
	default:
		ctx.checkExpr(n, scope)
	}
}

func (ctx *buildCtx) analyzeStmtList(list *Node, scope *Scope) {
	for _, c := range list.Children {
		ctx.analyzeStmt(c, scope)
	}
}

// anyChildHasError reports whether any direct child of n is already marked HasError, implementing the
// "propagation errors" bucket (kind 5): a parent expression with an errored child is itself errored.
func anyChildHasError(n *Node) bool {
	for _, c := range n.Children {
		if c.HasError {
			return true
		}
	}
	return false
}

// checkExpr resolves identifiers and call targets within an expression tree rooted at n, scoped to scope, and
// propagates errors from children to parents. It returns n.HasError for the caller's convenience.
func (ctx *buildCtx) checkExpr(n *Node, scope *Scope) bool {
	if n == nil {
		return false
	}
	switch n.Typ {
	case IDENTIFIER_DATA:
		name, _ := n.Data.(string)
		if sym := Lookup(scope, name); sym != nil {
			n.Entry = sym
			sym.Used = true
			n.DataType = sym.DataType
		} else {
			ctx.table.Sink.AddNode(n, ErrResolution, "undeclared variable %q", name)
		}
	case INTEGER_DATA, BOOL_DATA, CHAR_DATA, FLOAT_DATA, STRING_DATA:
		// Literals cannot themselves error; scalar literals carry their static type.
		switch n.Typ {
		case INTEGER_DATA:
			n.DataType = "int"
		case BOOL_DATA:
			n.DataType = "bool"
		case CHAR_DATA:
			n.DataType = "char"
		case FLOAT_DATA:
			n.DataType = "float"
		}
	case ASSIGNMENT:
		lhs, rhs := n.Children[0], n.Children[1]
		ctx.checkExpr(rhs, scope)
		switch lhs.Typ {
		case IDENTIFIER_DATA:
			name, _ := lhs.Data.(string)
			if sym := Lookup(scope, name); sym != nil {
				lhs.Entry = sym
				if sym.Kind == SymConstant {
					ctx.table.Sink.AddNode(lhs, ErrAssignment, "cannot assign to constant %q", name)
				} else {
					sym.Modified = true
				}
			} else {
				ctx.table.Sink.AddNode(lhs, ErrResolution, "undeclared variable %q", name)
			}
		case INDEX_EXPR:
			ctx.checkExpr(lhs, scope)
		default:
			ctx.checkExpr(lhs, scope)
		}
	case CALL_EXPR:
		name, _ := n.Data.(string)
		sym := Lookup(ctx.table.Global, name)
		if sym == nil {
			ctx.table.Sink.AddNode(n, ErrResolution, "call to undeclared function %q", name)
		} else if sym.Kind != SymFunction {
			ctx.table.Sink.AddNode(n, ErrResolution, "%q is not a function", name)
		} else {
			n.Entry = sym
			sym.Used = true
		}
		if len(n.Children) > 0 {
			args := n.Children[0]
			for _, a := range args.Children {
				if ctx.checkExpr(a, scope) {
					args.HasError = true
					args.Err = "error in subexpression"
				}
			}
		}
	case INDEX_EXPR:
		ctx.checkExpr(n.Children[0], scope)
		ctx.checkExpr(n.Children[1], scope)
	default:
		for _, c := range n.Children {
			ctx.checkExpr(c, scope)
		}
	}
	if anyChildHasError(n) {
		n.HasError = true
		if n.Err == "" {
			n.Err = "error in subexpression"
		}
	}
	return n.HasError
}

// auditUnused issues a warning (not an error) for every non-global, non-function, non-constant symbol whose
// Used flag never got set, across every scope in the table.
func (t *SymbolTable) auditUnused() {
	for _, s := range t.Scopes {
		for _, sym := range s.Symbols() {
			if (sym.Kind == SymLocal || sym.Kind == SymParameter) && !sym.Used {
				t.Warnings = append(t.Warnings, fmt.Sprintf("%s %q declared but never used", sym.Kind, sym.Name))
			}
		}
	}
}
