package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"noobikc/src/backend"
	"noobikc/src/dot"
	"noobikc/src/frontend"
	"noobikc/src/ir"
	"noobikc/src/util"
)

// run drives a single compilation: read source, lex/parse, build the symbol table and per-function CFGs, emit
// assembly, and (when requested) write DOT diagnostics. Behaviour is controlled entirely by opt.
func run(opt util.Options, log *zap.SugaredLogger) error {
	src, err := util.ReadSource(opt)
	if err != nil {
		return fmt.Errorf("could not read source code: %w", err)
	}

	if opt.TokenStream {
		out, err := frontend.TokenStream(src)
		if err != nil {
			return fmt.Errorf("syntax error: %w", err)
		}
		fmt.Println(out)
		return nil
	}

	root, err := frontend.Parse(src)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	log.Debugw("parsed source", "functions", len(root.Children))

	table, err := ir.BuildSymbolTable(root)
	if err != nil {
		return err
	}
	for _, w := range table.Warnings {
		log.Warnw(w)
	}

	cfgs, err := ir.BuildCFG(root, table)
	if err != nil {
		return err
	}

	// Analysis is complete; no further pass adds to table.Sink, so it's safe to stop its listener goroutine now.
	table.Sink.Close()
	if table.Sink.Len() > 0 {
		for _, e := range table.Sink.Errors() {
			fmt.Println(e)
		}
		// Semantic errors are reported, not fatal: parse+analysis still succeeded, so the driver proceeds and
		// exits 0.
	}

	if opt.Verbose {
		root.Print(0, true)
	}

	if opt.DotDir != "" {
		if err := writeDotFiles(opt, root, cfgs, log); err != nil {
			return fmt.Errorf("writing DOT diagnostics: %w", err)
		}
	}

	asm, err := backend.GenerateAssembly(opt, cfgs, table)
	if err != nil {
		return fmt.Errorf("code generation error: %w", err)
	}

	if opt.Asm == "" {
		fmt.Println(asm)
		return nil
	}
	if err := os.WriteFile(opt.Asm, []byte(asm), 0644); err != nil {
		return fmt.Errorf("writing assembly output: %w", err)
	}
	return nil
}

// writeDotFiles writes ast_output.dot, cfg_output.dot and calltree_output.dot to opt.DotDir.
func writeDotFiles(opt util.Options, root *ir.Node, cfgs []*ir.CFG, log *zap.SugaredLogger) error {
	if err := os.MkdirAll(opt.DotDir, 0755); err != nil {
		return err
	}
	cg := ir.BuildCallGraph(cfgs)

	files := map[string]string{
		"ast_output.dot":      dot.AST(root),
		"cfg_output.dot":      dot.CFG(cfgs),
		"calltree_output.dot": dot.CallTree(cg),
	}
	for name, content := range files {
		path := filepath.Join(opt.DotDir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
		log.Debugw("wrote dot file", "path", path)
	}
	return nil
}

// newLogger builds a zap logger matched to opt.Verbose: a human-readable development console at debug level when
// verbose, a quiet production logger otherwise.
func newLogger(opt util.Options) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if opt.Verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func main() {
	opt, err := util.ParseArgs(os.Args[1:])
	if err != nil {
		if util.IsNoop(err) {
			os.Exit(0)
		}
		fmt.Printf("command line argument error: %s\n", err)
		os.Exit(1)
	}

	log, err := newLogger(opt)
	if err != nil {
		fmt.Printf("logger initialisation error: %s\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(opt, log); err != nil {
		fmt.Printf("error: %s\n", err)
		os.Exit(1)
	}
}
