package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Writer buffers textual output (assembly, DOT, token stream) in a strings.Builder. Flush sends the buffered
// text to the listener started by ListenWrite; Close flushes and then releases the writer's slot in the
// wait group so the driver knows every writer has finished.
type Writer struct {
	sb strings.Builder
	c  chan string
}

// ---------------------
// ----- Constants -----
// ---------------------

// stdinReadTimeout bounds how long ReadSource waits for input piped on stdin.
const stdinReadTimeout = 500 * time.Millisecond

// ---------------------
// ----- Functions -----
// ---------------------

var wc chan string     // Write channel used for receiving data from callers.
var cc chan error      // Close channel used by main thread to signal to end write operations.
var wg *sync.WaitGroup // Used for synchronising when I/O has finished writing to output.

// Write writes a format string to the Writer's buffer.
func (w *Writer) Write(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(&w.sb, format, args...)
}

// WriteString writes a plain string to the Writer's buffer.
func (w *Writer) WriteString(s string) {
	w.sb.WriteString(s)
}

// Ins1 writes a one-operand instruction, e.g. "CALL _func_main".
func (w *Writer) Ins1(op, rs1 string) {
	_, _ = fmt.Fprintf(&w.sb, "\t%s\t%s\n", op, rs1)
}

// Ins2 writes a two-operand instruction, e.g. "MOV r1, r2" or "LD r1, r7".
func (w *Writer) Ins2(op, rd, rs1 string) {
	_, _ = fmt.Fprintf(&w.sb, "\t%s\t%s, %s\n", op, rd, rs1)
}

// Ins3 writes a three-operand instruction, e.g. "ADD r1, r1, r2".
func (w *Writer) Ins3(op, rd, rs1, rs2 string) {
	_, _ = fmt.Fprintf(&w.sb, "\t%s\t%s, %s, %s\n", op, rd, rs1, rs2)
}

// Imm formats a non-negative decimal immediate operand with its '#' prefix. Codegen must never pass a negative
// value here: the Noobik assembler zero-extends immediates (spec invariant: 0 <= immediate <= 65535).
func Imm(n int) string {
	return fmt.Sprintf("#%d", n)
}

// ImmHex formats a non-negative hexadecimal immediate operand, used for addresses (e.g. "#0x8000").
func ImmHex(n int) string {
	return fmt.Sprintf("#0x%x", n)
}

// Label writes a one-line label definition, e.g. "_func_main:".
func (w *Writer) Label(name string) {
	_, _ = fmt.Fprintf(&w.sb, "%s:\n", name)
}

// Comment writes a single-line assembly comment.
func (w *Writer) Comment(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(&w.sb, "\t; %s\n", fmt.Sprintf(format, args...))
}

// String returns the buffered text without flushing it.
func (w *Writer) String() string {
	return w.sb.String()
}

// Flush empties the Writer's buffer and sends the buffered text to the designated output writer over the
// Writer's channel.
func (w *Writer) Flush() {
	w.c <- w.sb.String()
	w.sb = strings.Builder{}
}

// Close flushes the Writer's buffer and then releases its slot in the output wait group.
func (w *Writer) Close() {
	w.Flush()
	w.c = nil
	wg.Done()
}

// NewWriter returns a new Writer bound to the channel started by ListenWrite. Must not be called before the
// driver has called ListenWrite.
func NewWriter() Writer {
	wg.Add(1)
	return Writer{
		sb: strings.Builder{},
		c:  wc,
	}
}

// ReadSource reads source code from file or stdin. If Options.Src is set the file is opened and read; otherwise
// the function waits briefly for input piped on stdin, returning an error if none arrives in time.
func ReadSource(opt Options) (string, error) {
	if len(opt.Src) > 0 {
		b, err := os.ReadFile(opt.Src)
		if err != nil {
			return "", errors.Wrapf(err, "reading source file %q", opt.Src)
		}
		return string(b), nil
	}

	c := make(chan string)
	cerr := make(chan error)

	go func(c chan string, cerr chan error) {
		defer close(c)
		defer close(cerr)
		reader := bufio.NewReader(os.Stdin)
		text, err := reader.ReadString(0)
		if err == nil || (err == io.EOF && len(text) > 0) {
			c <- text
		} else {
			cerr <- err
		}
	}(c, cerr)

	select {
	case <-time.After(stdinReadTimeout):
		return "", errors.New("expected input from stdin, got none")
	case s := <-c:
		return s, nil
	case err := <-cerr:
		return "", errors.Wrap(err, "reading stdin")
	}
}

// ListenWrite starts the writer listener. Output is written to f if non-nil, or to stdout otherwise. It runs
// until Close is called.
func ListenWrite(opt Options, f *os.File, wgg *sync.WaitGroup) {
	wg = wgg
	if opt.Threads > 1 {
		wc = make(chan string, opt.Threads+1)
	} else {
		wc = make(chan string, 1)
	}
	cc = make(chan error, 1) // Buffered to catch Close before the listener goroutine starts.

	var out *bufio.Writer
	if f != nil {
		out = bufio.NewWriter(f)
	} else {
		out = bufio.NewWriter(os.Stdout)
	}

	go func(wc chan string, cc chan error) {
		defer close(wc)
		defer close(cc)
		for {
			select {
			case s := <-wc:
				if _, err := out.WriteString(s); err != nil {
					fmt.Println(errors.Wrap(err, "writing output"))
				}
				if err := out.Flush(); err != nil {
					fmt.Println(errors.Wrap(err, "flushing output"))
				}
			case <-cc:
				return
			}
		}
	}(wc, cc)
}

// Close sends the termination signal to the writer listener.
func Close() {
	cc <- nil
}
