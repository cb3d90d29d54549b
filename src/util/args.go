package util

import (
	"strconv"

	"github.com/spf13/cobra"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options holds every setting the compiler stages need, parsed once by ParseArgs
// and threaded through the pipeline by value.
type Options struct {
	Src         string // Path to source file.
	Asm         string // Path to assembly output file. Empty means stdout.
	DotDir      string // Directory to write *_output.dot files to. Empty means skip DOT export.
	Threads     int    // Thread count, range-checked by ParseArgs. Only ListenWrite reads it (to size its buffer); codegen is sequential.
	Verbose     bool   // Print compiler statistics and warnings via the zap logger.
	TokenStream bool   // Print the token stream and exit.
}

// noopError is returned by ParseArgs when cobra fully handled the invocation itself
// (-h/--help, --version) without reaching RunE. There is nothing left to compile.
type noopError struct{}

func (noopError) Error() string { return "noobikc: nothing to do" }

// IsNoop reports whether err is the sentinel ParseArgs returns after handling -h/--version.
func IsNoop(err error) bool {
	_, ok := err.(noopError)
	return ok
}

// ---------------------
// ----- Constants -----
// ---------------------

const maxThreads = 64 // Maximum threads allowed executing in parallel.
const appVersion = "noobikc 1.0"

// ---------------------
// ----- functions -----
// ---------------------

// ParseArgs parses command line arguments into an Options structure using a cobra root command.
// args is normally os.Args[1:]; it is passed explicitly so the command can be exercised in tests.
func ParseArgs(args []string) (Options, error) {
	opt := Options{}
	ran := false

	root := &cobra.Command{
		Use:           "noobikc <source>",
		Short:         "noobikc compiles Noobik source to Noobik assembly",
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			ran = true
			if len(posArgs) == 1 {
				opt.Src = posArgs[0]
			}
			return nil
		},
	}

	flags := root.Flags()
	flags.StringVarP(&opt.Asm, "asm", "o", "", "path to assembly output file (stdout if omitted)")
	flags.StringVar(&opt.DotDir, "dot", "", "directory to write ast/cfg/calltree DOT files to")
	flags.IntVarP(&opt.Threads, "threads", "t", 0, "number of worker threads for ambient concurrency, [0, "+strconv.Itoa(maxThreads)+"]")
	flags.BoolVar(&opt.Verbose, "vb", false, "verbose mode: print compiler statistics and warnings")
	flags.BoolVar(&opt.TokenStream, "ts", false, "print token stream and exit")

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return opt, err
	}
	if !ran {
		// -h/--help or --version was handled internally by cobra; nothing further to do.
		return opt, noopError{}
	}
	if opt.Threads < 0 || opt.Threads > maxThreads {
		return opt, rangeError{}
	}
	return opt, nil
}

type rangeError struct{}

func (rangeError) Error() string {
	return "thread count out of range [0, " + strconv.Itoa(maxThreads) + "]"
}
