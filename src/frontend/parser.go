// Recursive-descent replacement for the goyacc-generated parser the teacher repo relied on. The grammar mirrors
// the original LALR grammar's precedence climbing by hand: one parse function per precedence level, from orexpr
// down to primary.

package frontend

import (
	"strconv"

	"github.com/pkg/errors"

	"noobikc/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// parser drives a lexer one item at a time and assembles an ir.Node tree. Syntax errors are fatal (unlike the
// semantic errors ir.ErrorSink accumulates): the first one recorded stops tree construction, since an AST built
// past a syntax error has no reliable shape for later passes to walk.
type parser struct {
	lex *lexer
	cur item
	err error
}

// ---------------------
// ----- Functions -----
// ---------------------

// Parse lexes and parses src as a complete Noobik program, returning its AST root on success.
func Parse(src string) (*ir.Node, error) {
	l := newLexer(src, lexGlobal)
	go l.run()
	p := &parser{lex: l}
	p.advance()
	root := p.parseProgram()
	if p.err != nil {
		return nil, p.err
	}
	return root, nil
}

// TokenStream lexes src and returns a newline-separated dump of every token scanned, one per line, in the
// teacher's TokenStream idiom (formerly built on goyacc's yyTokname, now on tokenName).
func TokenStream(src string) (string, error) {
	l := newLexer(src, lexGlobal)
	go l.run()
	var sb []byte
	for {
		it := l.nextItem()
		if it.typ == itemError {
			return string(sb), errors.Errorf("%s", it.val)
		}
		sb = append(sb, tokenName(it.typ)...)
		if it.typ != itemEOF {
			sb = append(sb, ' ', '\'')
			sb = append(sb, it.val...)
			sb = append(sb, '\'')
		}
		sb = append(sb, '\n')
		if it.typ == itemEOF {
			break
		}
	}
	return string(sb), nil
}

func (p *parser) advance() {
	if p.err != nil {
		return
	}
	p.cur = p.lex.nextItem()
	if p.cur.typ == itemError {
		p.err = errors.Errorf("lexical error: %s", p.cur.val)
	}
}

// expect consumes the current token if it matches typ, and records a syntax error otherwise without consuming
// anything. Once an error is recorded, advance and expect are no-ops and every parse loop stops, so the first
// syntax error ends parsing.
func (p *parser) expect(typ itemType) item {
	if p.err != nil {
		return item{}
	}
	got := p.cur
	if got.typ != typ {
		p.err = errors.Errorf("syntax error at line %d:%d: expected %s, found %s", got.line, got.pos, tokenName(typ), tokenName(got.typ))
		return got
	}
	p.advance()
	return got
}

func (p *parser) fail(format string, args ...interface{}) {
	if p.err == nil {
		p.err = errors.Errorf(format, args...)
	}
}

// ----------------------------
// ----- Program / function ---
// ----------------------------

func (p *parser) parseProgram() *ir.Node {
	root := &ir.Node{Typ: ir.PROGRAM}
	for p.err == nil && p.cur.typ != itemEOF {
		switch p.cur.typ {
		case VAR:
			root.Children = append(root.Children, p.parseVarDeclList())
		case METHOD:
			root.Children = append(root.Children, p.parseFunction())
		default:
			p.fail("syntax error at line %d:%d: expected %s or %s, found %s", p.cur.line, p.cur.pos, tokenName(VAR), tokenName(METHOD), tokenName(p.cur.typ))
			p.advance() // Guarantee forward progress.
		}
	}
	return root
}

func (p *parser) parseFunction() *ir.Node {
	line, pos := p.cur.line, p.cur.pos
	p.expect(METHOD)
	name := p.expect(IDENTIFIER)
	sig := &ir.Node{Typ: ir.FUNCTION_SIGNATURE, Data: name.val, Line: line, Pos: pos}

	p.expect(itemType('('))
	if p.cur.typ != itemType(')') {
		sig.Children = append(sig.Children, p.parseParams())
	}
	p.expect(itemType(')'))
	p.expect(itemType(':'))
	sig.Children = append(sig.Children, p.parseTypeRef())

	p.expect(BEGIN)
	stmts := p.parseStmtList(END)
	p.expect(END)
	body := &ir.Node{Typ: ir.BLOCK, Children: []*ir.Node{stmts}}

	return &ir.Node{Typ: ir.FUNCTION, Line: line, Pos: pos, Children: []*ir.Node{sig, body}}
}

func (p *parser) parseParams() *ir.Node {
	list := &ir.Node{Typ: ir.PARAMETER_LIST}
	for {
		tok := p.expect(IDENTIFIER)
		p.expect(itemType(':'))
		typ := p.parseTypeRef()
		list.Children = append(list.Children, &ir.Node{
			Typ: ir.ARG_DEF, Data: tok.val, Line: tok.line, Pos: tok.pos, Children: []*ir.Node{typ},
		})
		if p.cur.typ == itemType(',') {
			p.advance()
			continue
		}
		break
	}
	return list
}

func (p *parser) parseTypeRef() *ir.Node {
	if p.cur.typ == ARRAY {
		line, pos := p.cur.line, p.cur.pos
		p.advance()
		p.expect(itemType('['))
		sizeTok := p.expect(INTEGER)
		p.expect(itemType(']'))
		p.expect(OF)
		elem := p.parseTypeRef()
		size, _ := strconv.Atoi(sizeTok.val)
		return &ir.Node{
			Typ: ir.TYPE_REF, Data: "array", Line: line, Pos: pos,
			Children: []*ir.Node{{Typ: ir.INTEGER_DATA, Data: size, Line: sizeTok.line, Pos: sizeTok.pos}, elem},
		}
	}
	if p.cur.typ == TYPE {
		n := &ir.Node{Typ: ir.TYPE_REF, Data: p.cur.val, Line: p.cur.line, Pos: p.cur.pos}
		p.advance()
		return n
	}
	p.fail("syntax error at line %d:%d: expected a type, found %s", p.cur.line, p.cur.pos, tokenName(p.cur.typ))
	return &ir.Node{Typ: ir.TYPE_REF, Data: "int"}
}

// ----------------------------
// ----- Declarations ---------
// ----------------------------

// parseVarDeclList parses a single `var a, b: type;` statement and wraps it, a single VAR_DECLARATION, in a
// VAR_DECL_LIST so both the top-level (global) and statement-level (local) callers share one shape.
func (p *parser) parseVarDeclList() *ir.Node {
	line, pos := p.cur.line, p.cur.pos
	p.expect(VAR)
	idList := &ir.Node{Typ: ir.IDENTIFIER_LIST}
	for {
		tok := p.expect(IDENTIFIER)
		idList.Children = append(idList.Children, &ir.Node{Typ: ir.IDENTIFIER_DATA, Data: tok.val, Line: tok.line, Pos: tok.pos})
		if p.cur.typ == itemType(',') {
			p.advance()
			continue
		}
		break
	}
	p.expect(itemType(':'))
	typ := p.parseTypeRef()
	p.expect(itemType(';'))

	decl := &ir.Node{Typ: ir.VAR_DECLARATION, Line: line, Pos: pos, Children: []*ir.Node{idList, typ}}
	return &ir.Node{Typ: ir.VAR_DECL_LIST, Line: line, Pos: pos, Children: []*ir.Node{decl}}
}

// ----------------------------
// ----- Statements ------------
// ----------------------------

// parseStmtList parses statements until the current token is one of the supplied terminators, without consuming
// the terminator itself.
func (p *parser) parseStmtList(terminators ...itemType) *ir.Node {
	list := &ir.Node{Typ: ir.STATEMENT_LIST}
	for p.err == nil && !p.atAny(terminators...) && p.cur.typ != itemEOF {
		list.Children = append(list.Children, p.parseStmt())
	}
	return list
}

func (p *parser) atAny(types ...itemType) bool {
	for _, t := range types {
		if p.cur.typ == t {
			return true
		}
	}
	return false
}

func (p *parser) parseStmt() *ir.Node {
	switch p.cur.typ {
	case VAR:
		return p.parseVarDeclList()
	case IF:
		return p.parseIf()
	case WHILE:
		return p.parseWhile()
	case REPEAT:
		return p.parseRepeat()
	case BREAK:
		line, pos := p.cur.line, p.cur.pos
		p.advance()
		p.expect(itemType(';'))
		return &ir.Node{Typ: ir.BREAK_STATEMENT, Line: line, Pos: pos}
	case CONTINUE:
		line, pos := p.cur.line, p.cur.pos
		p.advance()
		p.expect(itemType(';'))
		return &ir.Node{Typ: ir.CONTINUE_STATEMENT, Line: line, Pos: pos}
	case RETURN:
		return p.parseReturn()
	case PRINT:
		return p.parsePrint()
	case BEGIN:
		return p.parseBlock()
	case itemType(';'):
		line, pos := p.cur.line, p.cur.pos
		p.advance()
		return &ir.Node{Typ: ir.NULL_STATEMENT, Line: line, Pos: pos}
	default:
		return p.parseAssignOrExprStmt()
	}
}

func (p *parser) parseBlock() *ir.Node {
	line, pos := p.cur.line, p.cur.pos
	p.expect(BEGIN)
	list := p.parseStmtList(END)
	p.expect(END)
	return &ir.Node{Typ: ir.BLOCK, Line: line, Pos: pos, Children: []*ir.Node{list}}
}

func (p *parser) parseIf() *ir.Node {
	line, pos := p.cur.line, p.cur.pos
	p.expect(IF)
	p.expect(itemType('('))
	cond := p.parseExpr()
	p.expect(itemType(')'))
	p.expect(THEN)
	thenStmt := p.parseStmt()
	n := &ir.Node{Typ: ir.IF_STATEMENT, Line: line, Pos: pos, Children: []*ir.Node{cond, thenStmt}}
	if p.cur.typ == ELSE {
		p.advance()
		n.Children = append(n.Children, p.parseStmt())
	}
	return n
}

func (p *parser) parseWhile() *ir.Node {
	line, pos := p.cur.line, p.cur.pos
	p.expect(WHILE)
	p.expect(itemType('('))
	cond := p.parseExpr()
	p.expect(itemType(')'))
	p.expect(DO)
	body := p.parseStmt()
	return &ir.Node{Typ: ir.WHILE_STATEMENT, Line: line, Pos: pos, Children: []*ir.Node{cond, body}}
}

func (p *parser) parseRepeat() *ir.Node {
	line, pos := p.cur.line, p.cur.pos
	p.expect(REPEAT)
	list := p.parseStmtList(UNTIL)
	p.expect(UNTIL)
	p.expect(itemType('('))
	cond := p.parseExpr()
	p.expect(itemType(')'))
	p.expect(itemType(';'))
	body := &ir.Node{Typ: ir.BLOCK, Children: []*ir.Node{list}}
	return &ir.Node{Typ: ir.REPEAT_STATEMENT, Line: line, Pos: pos, Children: []*ir.Node{body, cond}}
}

func (p *parser) parseReturn() *ir.Node {
	line, pos := p.cur.line, p.cur.pos
	p.expect(RETURN)
	n := &ir.Node{Typ: ir.RETURN_STATEMENT, Line: line, Pos: pos}
	if p.cur.typ != itemType(';') {
		n.Children = append(n.Children, p.parseExpr())
	}
	p.expect(itemType(';'))
	return n
}

func (p *parser) parsePrint() *ir.Node {
	line, pos := p.cur.line, p.cur.pos
	p.expect(PRINT)
	list := &ir.Node{Typ: ir.PRINT_LIST}
	list.Children = append(list.Children, p.parseExpr())
	for p.cur.typ == itemType(',') {
		p.advance()
		list.Children = append(list.Children, p.parseExpr())
	}
	p.expect(itemType(';'))
	return &ir.Node{Typ: ir.PRINT_STATEMENT, Line: line, Pos: pos, Children: []*ir.Node{list}}
}

// parseAssignOrExprStmt parses either `lvalue := expr;` or a bare `expr;`, disambiguating only after the shared
// expression prefix has been parsed: an lvalue (IDENTIFIER_DATA or INDEX_EXPR) is itself a valid expression.
func (p *parser) parseAssignOrExprStmt() *ir.Node {
	line, pos := p.cur.line, p.cur.pos
	lhs := p.parseExpr()
	if p.cur.typ == ASSIGN {
		p.advance()
		rhs := p.parseExpr()
		p.expect(itemType(';'))
		return &ir.Node{Typ: ir.ASSIGNMENT, Line: line, Pos: pos, Children: []*ir.Node{lhs, rhs}}
	}
	p.expect(itemType(';'))
	return &ir.Node{Typ: ir.EXPR_STATEMENT, Line: line, Pos: pos, Children: []*ir.Node{lhs}}
}

// ----------------------------
// ----- Expressions -----------
// ----------------------------

func (p *parser) parseExpr() *ir.Node { return p.parseOr() }

func (p *parser) parseOr() *ir.Node {
	lhs := p.parseAnd()
	for p.cur.typ == OR {
		op, line, pos := tokenName(p.cur.typ), p.cur.line, p.cur.pos
		p.advance()
		rhs := p.parseAnd()
		lhs = &ir.Node{Typ: ir.BINARY_EXPR, Data: op, Line: line, Pos: pos, Children: []*ir.Node{lhs, rhs}}
	}
	return lhs
}

func (p *parser) parseAnd() *ir.Node {
	lhs := p.parseRel()
	for p.cur.typ == AND {
		op, line, pos := tokenName(p.cur.typ), p.cur.line, p.cur.pos
		p.advance()
		rhs := p.parseRel()
		lhs = &ir.Node{Typ: ir.BINARY_EXPR, Data: op, Line: line, Pos: pos, Children: []*ir.Node{lhs, rhs}}
	}
	return lhs
}

var relOps = []itemType{EQ, NEQ, LE, GE, itemType('<'), itemType('>')}

func (p *parser) parseRel() *ir.Node {
	lhs := p.parseAdd()
	if p.atAny(relOps...) {
		op, line, pos := tokenName(p.cur.typ), p.cur.line, p.cur.pos
		p.advance()
		rhs := p.parseAdd()
		lhs = &ir.Node{Typ: ir.BINARY_EXPR, Data: op, Line: line, Pos: pos, Children: []*ir.Node{lhs, rhs}}
	}
	return lhs
}

var addOps = []itemType{itemType('+'), itemType('-'), itemType('|'), itemType('^')}

func (p *parser) parseAdd() *ir.Node {
	lhs := p.parseMul()
	for p.atAny(addOps...) {
		op, line, pos := tokenName(p.cur.typ), p.cur.line, p.cur.pos
		p.advance()
		rhs := p.parseMul()
		lhs = &ir.Node{Typ: ir.BINARY_EXPR, Data: op, Line: line, Pos: pos, Children: []*ir.Node{lhs, rhs}}
	}
	return lhs
}

var mulOps = []itemType{itemType('*'), itemType('/'), itemType('%'), itemType('&'), LSHIFT, RSHIFT}

func (p *parser) parseMul() *ir.Node {
	lhs := p.parseUnary()
	for p.atAny(mulOps...) {
		op, line, pos := tokenName(p.cur.typ), p.cur.line, p.cur.pos
		p.advance()
		rhs := p.parseUnary()
		lhs = &ir.Node{Typ: ir.BINARY_EXPR, Data: op, Line: line, Pos: pos, Children: []*ir.Node{lhs, rhs}}
	}
	return lhs
}

var unaryOps = []itemType{itemType('-'), itemType('!'), itemType('~'), itemType('+'), itemType('@'), itemType('*')}

func (p *parser) parseUnary() *ir.Node {
	if p.atAny(unaryOps...) {
		op, line, pos := p.cur.typ, p.cur.line, p.cur.pos
		p.advance()
		operand := p.parseUnary()
		switch op {
		case itemType('@'):
			return &ir.Node{Typ: ir.ADDR_OF, Line: line, Pos: pos, Children: []*ir.Node{operand}}
		case itemType('*'):
			return &ir.Node{Typ: ir.DEREF, Line: line, Pos: pos, Children: []*ir.Node{operand}}
		default:
			return &ir.Node{Typ: ir.UNARY_EXPR, Data: tokenName(op), Line: line, Pos: pos, Children: []*ir.Node{operand}}
		}
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() *ir.Node {
	n := p.parsePrimary()
	if p.cur.typ == itemType('[') {
		line, pos := p.cur.line, p.cur.pos
		p.advance()
		idx := p.parseExpr()
		p.expect(itemType(']'))
		n = &ir.Node{Typ: ir.INDEX_EXPR, Line: line, Pos: pos, Children: []*ir.Node{n, idx}}
	}
	return n
}

func (p *parser) parsePrimary() *ir.Node {
	switch p.cur.typ {
	case IDENTIFIER:
		name, line, pos := p.cur.val, p.cur.line, p.cur.pos
		p.advance()
		if p.cur.typ == itemType('(') {
			p.advance()
			args := &ir.Node{Typ: ir.ARGUMENT_LIST}
			if p.cur.typ != itemType(')') {
				args.Children = append(args.Children, p.parseExpr())
				for p.cur.typ == itemType(',') {
					p.advance()
					args.Children = append(args.Children, p.parseExpr())
				}
			}
			p.expect(itemType(')'))
			return &ir.Node{Typ: ir.CALL_EXPR, Data: name, Line: line, Pos: pos, Children: []*ir.Node{args}}
		}
		return &ir.Node{Typ: ir.IDENTIFIER_DATA, Data: name, Line: line, Pos: pos}
	case INTEGER:
		v, _ := strconv.Atoi(p.cur.val)
		n := &ir.Node{Typ: ir.INTEGER_DATA, Data: v, Line: p.cur.line, Pos: p.cur.pos}
		p.advance()
		return n
	case FLOAT:
		v, _ := strconv.ParseFloat(p.cur.val, 64)
		n := &ir.Node{Typ: ir.FLOAT_DATA, Data: v, Line: p.cur.line, Pos: p.cur.pos}
		p.advance()
		return n
	case CHAR:
		n := &ir.Node{Typ: ir.CHAR_DATA, Data: decodeCharLiteral(p.cur.val), Line: p.cur.line, Pos: p.cur.pos}
		p.advance()
		return n
	case STRING:
		idx := ir.GlobalStrings.Intern(p.cur.val)
		n := &ir.Node{Typ: ir.STRING_DATA, Data: idx, Line: p.cur.line, Pos: p.cur.pos}
		p.advance()
		return n
	case TRUE:
		n := &ir.Node{Typ: ir.BOOL_DATA, Data: true, Line: p.cur.line, Pos: p.cur.pos}
		p.advance()
		return n
	case FALSE:
		n := &ir.Node{Typ: ir.BOOL_DATA, Data: false, Line: p.cur.line, Pos: p.cur.pos}
		p.advance()
		return n
	case itemType('('):
		p.advance()
		e := p.parseExpr()
		p.expect(itemType(')'))
		return e
	default:
		p.fail("syntax error at line %d:%d: unexpected %s", p.cur.line, p.cur.pos, tokenName(p.cur.typ))
		return &ir.Node{Typ: ir.INTEGER_DATA, Data: 0, Line: p.cur.line, Pos: p.cur.pos}
	}
}

// decodeCharLiteral decodes the raw text between a CHAR token's quotes (already stripped by the lexer) into its
// rune value, expanding the small set of backslash escapes Noobik source supports.
func decodeCharLiteral(s string) rune {
	if len(s) == 0 {
		return 0
	}
	if s[0] == '\\' && len(s) > 1 {
		switch s[1] {
		case 'n':
			return '\n'
		case 't':
			return '\t'
		case 'r':
			return '\r'
		case '0':
			return 0
		case '\\':
			return '\\'
		case '\'':
			return '\''
		default:
			return rune(s[1])
		}
	}
	r := []rune(s)
	return r[0]
}
