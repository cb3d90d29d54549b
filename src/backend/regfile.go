package backend

import "fmt"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// RegisterFile is a free-list allocator over Noobik's six general-purpose scratch registers (r1..r6), modelled on
// the teacher's regfile.RegisterFile but stripped down to spec's trivial "free list, no spill" allocation model:
// r0 (return value) and r7 (address scratch) never enter the free list and are never returned by Alloc.
type RegisterFile struct {
	free []Register
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewRegisterFile returns a RegisterFile with every scratch register free.
func NewRegisterFile() *RegisterFile {
	rf := &RegisterFile{}
	rf.Reset()
	return rf
}

// Reset returns every scratch register to the free list, in r1..r6 order. genNode calls it at the start of every
// CFG node, so no register stays live from one node to the next.
func (rf *RegisterFile) Reset() {
	rf.free = append(rf.free[:0], scratch[:]...)
}

// Alloc removes and returns the lowest-numbered free register. Returns an error if the free list is exhausted --
// spec's Non-goals exclude a spill/reload path, so running out of registers is a hard codegen failure rather than
// a silently-wrong program.
func (rf *RegisterFile) Alloc() (Register, error) {
	if len(rf.free) == 0 {
		return "", fmt.Errorf("out of registers")
	}
	r := rf.free[0]
	rf.free = rf.free[1:]
	return r, nil
}

// InUse returns the currently allocated scratch registers, in r1..r6 order. Used by a CALL site to know which
// live registers it must caller-save, since the callee's own RegisterFile restarts fresh at r1.
func (rf *RegisterFile) InUse() []Register {
	free := make(map[Register]bool, len(rf.free))
	for _, r := range rf.free {
		free[r] = true
	}
	var inUse []Register
	for _, r := range scratch {
		if !free[r] {
			inUse = append(inUse, r)
		}
	}
	return inUse
}

// Free returns r to the free list. Freeing r0, r7, fp or sp, or a register already free, is a no-op: callers
// that track their own live ranges should never do this, but codegen cleanup paths may call Free defensively.
func (rf *RegisterFile) Free(r Register) {
	if r == R0 || r == R7 || r == FP || r == SP {
		return
	}
	for _, f := range rf.free {
		if f == r {
			return
		}
	}
	rf.free = append(rf.free, r)
}
