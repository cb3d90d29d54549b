package dot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noobikc/src/dot"
	"noobikc/src/frontend"
	"noobikc/src/ir"
)

func buildAll(t *testing.T, src string) (*ir.Node, *ir.SymbolTable, []*ir.CFG) {
	t.Helper()
	root, err := frontend.Parse(src)
	require.NoError(t, err)
	table, err := ir.BuildSymbolTable(root)
	require.NoError(t, err)
	cfgs, err := ir.BuildCFG(root, table)
	require.NoError(t, err)
	return root, table, cfgs
}

func TestASTProducesValidDigraph(t *testing.T) {
	root, _, _ := buildAll(t, `method main(): int begin return 1; end`)
	out := dot.AST(root)
	assert.Contains(t, out, "digraph AST {")
	assert.Contains(t, out, "node0 [label=")
	assert.Contains(t, out, "}\n")
}

func TestCFGProducesClusterPerFunction(t *testing.T) {
	src := `
method helper(x: int): int
begin
	return x + 1;
end

method main(): int
begin
	return helper(41);
end
`
	_, _, cfgs := buildAll(t, src)
	out := dot.CFG(cfgs)
	assert.Contains(t, out, "digraph CFG {")
	assert.Contains(t, out, `label="helper"`)
	assert.Contains(t, out, `label="main"`)
}

func TestCallTreeIncludesEdges(t *testing.T) {
	src := `
method helper(x: int): int
begin
	return x;
end

method main(): int
begin
	return helper(1) + helper(2);
end
`
	_, _, cfgs := buildAll(t, src)
	cg := ir.BuildCallGraph(cfgs)
	out := dot.CallTree(cg)
	assert.Contains(t, out, "digraph CallTree {")
	assert.Contains(t, out, `"main" -> "helper" [label="x2"];`)
}
