package ir

import (
	"fmt"

	"github.com/pkg/errors"

	"noobikc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// ErrorKind buckets a diagnostic by the taxonomy the symbol table and CFG builder accumulate against. Kinds 1
// (lexical/syntactic) and 7 (I/O) never reach an ErrorSink: the former is reported by the frontend directly, the
// latter surfaces as a plain Go error from the driver.
type ErrorKind int

const (
	ErrDeclaration ErrorKind = iota + 2 // Redeclaration in the same scope; parameter/local name clash.
	ErrResolution                       // Undeclared identifier or call target; call to a non-function.
	ErrAssignment                       // Assignment to a constant symbol.
	ErrPropagation                      // An expression with an errored child, marked errored in turn.
	ErrRange                            // Codegen-range error: literal outside the encoder's 16-bit window.
)

// SourceError pairs a diagnostic message with the source position it concerns and its taxonomy bucket, so a
// report can be grouped and counted per kind.
type SourceError struct {
	Kind ErrorKind
	Line int
	Pos  int
	Msg  string
}

// Error implements the error interface, formatting a SourceError the way a compiler diagnostic usually reads.
func (e *SourceError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Pos, e.Msg)
}

// ErrorSink accumulates diagnostics from symbol-table construction and CFG building without aborting either
// pass: every semantic error is Append-ed and analysis continues, so a single run surfaces as many diagnostics
// as possible. Modelled on the fan-in accumulator in util.Perror; every message is wrapped with
// github.com/pkg/errors' WithStack, so it carries a stack trace. The driver prints diagnostics with plain %v
// formatting, which shows the message only.
type ErrorSink struct {
	pe *util.Perror
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewErrorSink returns a ready ErrorSink with room for n diagnostics before it has to grow.
func NewErrorSink(n int) *ErrorSink {
	return &ErrorSink{pe: util.NewPerror(n)}
}

// Add records a diagnostic of the given kind at (line, pos), formatted from format/args.
func (s *ErrorSink) Add(kind ErrorKind, line, pos int, format string, args ...interface{}) {
	se := &SourceError{Kind: kind, Line: line, Pos: pos, Msg: fmt.Sprintf(format, args...)}
	s.pe.Append(errors.WithStack(se))
}

// AddNode records a diagnostic anchored to an AST node, and marks that node HasError in the same step so later
// passes can short-circuit on it without re-querying the sink.
func (s *ErrorSink) AddNode(n *Node, kind ErrorKind, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	n.HasError = true
	n.Err = msg
	s.Add(kind, n.Line, n.Pos, "%s", msg)
}

// Len returns the number of accumulated diagnostics.
func (s *ErrorSink) Len() int { return s.pe.Len() }

// Close stops the sink's background listener. Must be called exactly once, after the last Add/AddNode.
func (s *ErrorSink) Close() { s.pe.Stop() }

// Errors returns every accumulated diagnostic, in the order reported.
func (s *ErrorSink) Errors() []error { return s.pe.Snapshot() }

// CountByKind tallies accumulated diagnostics per ErrorKind, for the "counts by bucket" summary spec.md §7
// requires of the final report.
func (s *ErrorSink) CountByKind() map[ErrorKind]int {
	counts := make(map[ErrorKind]int)
	for _, e := range s.pe.Snapshot() {
		var se *SourceError
		if errors.As(e, &se) {
			counts[se.Kind]++
		}
	}
	return counts
}
