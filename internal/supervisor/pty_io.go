package supervisor

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// attachTerminal puts the controlling terminal into raw mode for the
// supervisor's lifetime when stdin is interactive, so the child sees
// keystrokes (including control characters) the way it would running
// unsupervised. Returns a no-op restore when stdin isn't a terminal.
func attachTerminal() (restore func()) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return func() {}
	}
	return func() { _ = term.Restore(fd, oldState) }
}

// attachChildIO forwards the controlling terminal's stdin/stdout to the
// child's pty master and keeps the pty's window size in sync with SIGWINCH,
// for as long as the generation is alive. Both copy loops return on their
// own once the pty closes, which Child.Wait does on exit.
func attachChildIO(c *Child) {
	go func() { _, _ = io.Copy(c.ptmx, os.Stdin) }()
	go func() { _, _ = io.Copy(os.Stdout, c.ptmx) }()

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return
	}
	resizeChild(c)
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	go func() {
		for range winch {
			resizeChild(c)
		}
	}()
}

func resizeChild(c *Child) {
	ws, err := pty.GetsizeFull(os.Stdout)
	if err != nil {
		return
	}
	_ = pty.Setsize(c.ptmx, ws)
}
