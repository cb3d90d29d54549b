package frontend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// collectTokens drains a lexer's item channel into a slice, stopping after EOF.
func collectTokens(src string) []item {
	l := newLexer(src, lexGlobal)
	go l.run()
	var items []item
	for {
		it := l.nextItem()
		items = append(items, it)
		if it.typ == itemEOF || it.typ == itemError {
			break
		}
	}
	return items
}

func TestLexerKeywordsAndIdentifiers(t *testing.T) {
	src := `method main(): int begin var x: int; x := 1; return x; end`
	items := collectTokens(src)

	want := []itemType{
		METHOD, IDENTIFIER, itemType('('), itemType(')'), itemType(':'), TYPE, BEGIN,
		VAR, IDENTIFIER, itemType(':'), TYPE, itemType(';'),
		IDENTIFIER, ASSIGN, INTEGER, itemType(';'),
		RETURN, IDENTIFIER, itemType(';'),
		END, itemEOF,
	}
	assert.Equal(t, len(want), len(items), "token count mismatch: %v", items)
	for i, typ := range want {
		assert.Equalf(t, typ, items[i].typ, "token %d: got %s", i, items[i])
	}
}

func TestLexerTwoCharOperators(t *testing.T) {
	src := `a := b == c != d <= e >= f && g || h << i >> j`
	items := collectTokens(src)
	var got []itemType
	for _, it := range items {
		if it.typ != IDENTIFIER {
			got = append(got, it.typ)
		}
	}
	want := []itemType{ASSIGN, EQ, NEQ, LE, GE, AND, OR, LSHIFT, RSHIFT, itemEOF}
	assert.Equal(t, want, got)
}

func TestLexerCharLiteral(t *testing.T) {
	items := collectTokens(`'a' '\n'`)
	assert.Equal(t, CHAR, items[0].typ)
	assert.Equal(t, "a", items[0].val)
	assert.Equal(t, CHAR, items[1].typ)
	assert.Equal(t, `\n`, items[1].val)
}

func TestLexerStringLiteral(t *testing.T) {
	items := collectTokens(`"hello, world"`)
	assert.Equal(t, STRING, items[0].typ)
	assert.Equal(t, "hello, world", items[0].val)
}

func TestLexerUnclosedCommentDoesNotHang(t *testing.T) {
	items := collectTokens("x := 1 // trailing comment with no newline")
	assert.Equal(t, itemEOF, items[len(items)-1].typ)
}

func TestLexerArrayTypeRef(t *testing.T) {
	items := collectTokens(`var a: array[8] of int;`)
	want := []itemType{VAR, IDENTIFIER, itemType(':'), ARRAY, itemType('['), INTEGER, itemType(']'), OF, TYPE, itemType(';'), itemEOF}
	var got []itemType
	for _, it := range items {
		got = append(got, it.typ)
	}
	assert.Equal(t, want, got)
}
