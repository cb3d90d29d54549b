package backend_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noobikc/src/backend"
	"noobikc/src/frontend"
	"noobikc/src/ir"
	"noobikc/src/util"
)

func compile(t *testing.T, src string) string {
	t.Helper()
	root, err := frontend.Parse(src)
	require.NoError(t, err)
	table, err := ir.BuildSymbolTable(root)
	require.NoError(t, err)
	require.Equal(t, 0, table.Sink.Len(), "unexpected semantic errors: %v", table.Sink.Errors())
	cfgs, err := ir.BuildCFG(root, table)
	require.NoError(t, err)
	table.Sink.Close()
	asm, err := backend.GenerateAssembly(util.Options{}, cfgs, table)
	require.NoError(t, err)
	return asm
}

func TestGenerateAssemblyEmitsMainAndReturn(t *testing.T) {
	asm := compile(t, `method main(): int begin return 1; end`)
	assert.Contains(t, asm, "; ---- Noobik assembly generated from CFG ----")
	assert.Contains(t, asm, "[section cram]")
	assert.Contains(t, asm, "MOVI\tsp, #0xFFFC")
	assert.Contains(t, asm, "MOVI\tfp, #0xFFFC")
	assert.Contains(t, asm, "CALL\t_func_main")
	assert.Contains(t, asm, "_func_main:")
	assert.Contains(t, asm, "_EPILOG_main:")
	assert.Contains(t, asm, "JMP\t_EPILOG_main")
	assert.Contains(t, asm, "RET")
	assert.Contains(t, asm, "[section name=dram, bank=dram, start=0x8000]")
}

// TestGenerateAssemblyLocalAccessNeverNegativeImmediate covers spec scenario 1: a local's fp-relative access
// must materialise its address via MOVI+ADD/SUB into r7, never embed the raw negative offset as an immediate.
func TestGenerateAssemblyLocalAccessNeverNegativeImmediate(t *testing.T) {
	asm := compile(t, `
method main(): int
begin
	var x: int;
	x := 4;
	return x;
end
`)
	for _, line := range strings.Split(asm, "\n") {
		if idx := strings.Index(line, "#-"); idx != -1 {
			t.Fatalf("found negative immediate operand: %q", line)
		}
	}
	assert.Contains(t, asm, "SUB\tr7, fp, r7")
	assert.Contains(t, asm, "LDS\tr")
	assert.Contains(t, asm, "STS\tr7,")
}

func TestGenerateAssemblyIfWhileBreak(t *testing.T) {
	src := `
method main(): int
begin
	var i: int;
	i := 0;
	while (i < 10) do begin
		if (i == 5) then break;
		i := i + 1;
	end
	return i;
end
`
	asm := compile(t, src)
	assert.Contains(t, asm, "CMP")
	assert.Contains(t, asm, "JLT")
	assert.Contains(t, asm, "JEQ")
}

func TestGenerateAssemblyArrayAndCall(t *testing.T) {
	src := `
var a: array[8] of int;

method square(x: int): int
begin
	return x * x;
end

method main(): int
begin
	a[3] := square(4);
	return a[3];
end
`
	asm := compile(t, src)
	assert.Contains(t, asm, "_func_square:")
	assert.Contains(t, asm, "CALL\t_func_square")
	assert.True(t, strings.Contains(asm, "MUL"))
}

// TestGenerateAssemblyCallSitePreservesLiveRegisters covers spec scenario 5: an expression that keeps a value
// live across a call must caller-save it, since the callee's register file restarts at r1.
func TestGenerateAssemblyCallSitePreservesLiveRegisters(t *testing.T) {
	src := `
method fact(n: int): int
begin
	if (n <= 1) then return 1;
	return n * fact(n - 1);
end

method main(): int
begin
	return fact(5);
end
`
	asm := compile(t, src)
	assert.Contains(t, asm, "CALL\t_func_fact")
	assert.Contains(t, asm, "PUSH\tr1")
	assert.Contains(t, asm, "POP\tr1")
}

func TestGenerateAssemblyDinAssignmentStoresTagWord(t *testing.T) {
	src := `
method main(): int
begin
	var d: din;
	d := 4;
	return 0;
end
`
	asm := compile(t, src)
	assert.Contains(t, asm, "ADD\tr7, r7, #4")
}

func TestGenerateAssemblyDeterministicAcrossRuns(t *testing.T) {
	src := `method main(): int begin print "hi"; return 0; end`
	a := compile(t, src)
	b := compile(t, src)
	assert.Equal(t, a, b)
}
