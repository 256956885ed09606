package proxy

import (
	"os"

	"golang.org/x/sys/unix"
)

// flare is a pollable readiness primitive backing the proxy mailbox
// (spec.md §9 "Flare primitive"): it is readable whenever the mailbox has
// at least one undelivered response, and is cleared by draining it. Built
// on a non-blocking os.Pipe pair, the same eventfd-equivalent the spec's
// design notes call for, configured non-blocking via golang.org/x/sys/unix
// the way the teacher configures its unix file descriptors in
// pkg/runtime.
type flare struct {
	r *os.File
	w *os.File
}

func newFlare() (*flare, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(int(r.Fd()), true); err != nil {
		r.Close()
		w.Close()
		return nil, err
	}
	if err := unix.SetNonblock(int(w.Fd()), true); err != nil {
		r.Close()
		w.Close()
		return nil, err
	}
	return &flare{r: r, w: w}, nil
}

// signal raises the flare, waking anything polling Fd(). Safe to call
// when already raised: the pipe buffer absorbs repeat writes and excess
// bytes are simply drained together on the next clear.
func (f *flare) signal() {
	_, _ = f.w.Write([]byte{0})
}

// clear drains every byte currently buffered, lowering the flare until
// the next signal.
func (f *flare) clear() {
	buf := make([]byte, 64)
	for {
		n, err := f.r.Read(buf)
		if n == 0 || err != nil {
			return
		}
	}
}

// Fd returns the read end's file descriptor for external poll loops
// (spec.md §4.4 "Mailbox readiness").
func (f *flare) Fd() int { return int(f.r.Fd()) }

func (f *flare) Close() error {
	werr := f.w.Close()
	rerr := f.r.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
