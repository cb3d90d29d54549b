package backend

import (
	"fmt"
	"sort"

	"noobikc/src/ir"
	"noobikc/src/util"
)

// ---------------------
// ----- Functions -----
// ---------------------

// labelString returns the DRAM label a string literal's pool entry is emitted under.
func labelString(idx int) string {
	return fmt.Sprintf("_Kstr_%d", idx)
}

// GenerateAssembly is the backend's single entry point: one pass emitting the cram section header, the sp/fp
// initialisation stub and a CALL to _func_main, one genFunction pass per discovered function (run one after
// another in source order, for deterministic output; opt.Threads is not consulted), and a trailing dram section
// for globals and interned string constants. Functions whose CFG never got built (a
// header-only declaration that failed) are skipped.
//
// The returned util.Writer is used purely as an in-memory text buffer here: GenerateAssembly never calls
// Flush/Close, so it does not require util.ListenWrite to have been started first.
func GenerateAssembly(opt util.Options, cfgs []*ir.CFG, table *ir.SymbolTable) (string, error) {
	wr := &util.Writer{}

	wr.WriteString("; ---- Noobik assembly generated from CFG ----\n\n")
	wr.WriteString("[section cram]\n\n")
	wr.Ins2(opMovi, string(SP), "#0xFFFC")
	wr.Ins2(opMovi, string(FP), "#0xFFFC")
	wr.Ins1(opCall, "_func_main")
	wr.Ins1(opHlt, "")

	for _, cfg := range cfgs {
		if err := genFunction(wr, table, cfg); err != nil {
			return "", err
		}
	}

	emitDataSection(wr, table)
	return wr.String(), nil
}

// emitDataSection writes the DRAM section: one label per global symbol, sized by its declared type, followed by
// one label per interned string literal.
func emitDataSection(wr *util.Writer, table *ir.SymbolTable) {
	globals := table.Global.Symbols()
	sort.Slice(globals, func(i, j int) bool { return globals[i].Offset < globals[j].Offset })

	wr.WriteString("\n")
	for _, sym := range globals {
		if sym.Kind != ir.SymGlobal {
			continue
		}
		wr.Write("%s:\t; %d byte(s)\n", sym.Name, sym.Size)
	}

	for i := 0; i < ir.GlobalStrings.Len(); i++ {
		wr.Write("%s:\t; %q\n", labelString(i), ir.GlobalStrings.Get(i))
	}

	wr.WriteString("\n[section name=dram, bank=dram, start=0x8000]\n")
}
