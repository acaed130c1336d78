// Package pty owns one pseudo-terminal pair and the child process attached
// to its slave end.
//
// Follows go-hub's internal/agent/agent.go (pty.Start/pty.Setsize) and
// deprecated/go-hub/internal/pty/session.go (reader shutdown idiom) for
// construction order and the Windows .cmd/.bat shim.
package pty

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/creack/pty"

	"github.com/akiojin/gwtermd/internal/termerr"
)

// Config describes how to spawn the child process under a PTY.
type Config struct {
	Command    string
	Args       []string
	WorkingDir string
	Env        map[string]string
	Rows       int
	Cols       int
}

// Status is the result of a non-blocking wait on the child.
type Status struct {
	Running  bool
	ExitCode int // meaningful only when !Running
	Signaled bool
	Signal   string
}

// Channel owns one pseudo-terminal pair and the child process on its slave
// end.
type Channel struct {
	master *os.File
	cmd    *exec.Cmd

	writerTaken bool
	mu          sync.Mutex

	waitDone chan struct{}
}

// New spawns the child under a new PTY sized to (rows, cols).
func New(cfg Config) (*Channel, error) {
	command, args := resolveSpawnCommand(cfg.Command, cfg.Args)

	cmd := exec.Command(command, args...)
	cmd.Dir = cfg.WorkingDir
	cmd.Env = buildEnv(cfg.Env)

	master, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(cfg.Rows),
		Cols: uint16(cfg.Cols),
	})
	if err != nil {
		return nil, termerr.NewPtyCreationFailed("spawn %s: %v", cfg.Command, err)
	}

	c := &Channel{master: master, cmd: cmd, waitDone: make(chan struct{})}
	c.startWaiter()
	return c, nil
}

// startWaiter calls cmd.Wait exactly once in the background and closes
// waitDone when the child has exited, so TryWait can poll without racing
// multiple Wait() calls (which os/exec forbids).
func (c *Channel) startWaiter() {
	go func() {
		c.cmd.Wait()
		close(c.waitDone)
	}()
}

// buildEnv applies a fixed precedence order: the inherited parent
// environment first, then the TERM/COLORTERM defaults overlaid on top of
// it (so a color-capable baseline wins over whatever ambient terminal this
// process happened to inherit), then caller-supplied overrides last so the
// caller always wins.
func buildEnv(overrides map[string]string) []string {
	base := make(map[string]string)
	for _, e := range os.Environ() {
		if idx := strings.IndexByte(e, '='); idx >= 0 {
			base[e[:idx]] = e[idx+1:]
		}
	}
	base["TERM"] = "xterm-256color"
	base["COLORTERM"] = "truecolor"
	for k, v := range overrides {
		base[k] = v
	}

	env := make([]string, 0, len(base))
	for k, v := range base {
		env = append(env, k+"="+v)
	}
	return env
}

// isWindowsBatchScript reports whether command looks like a .cmd/.bat file.
func isWindowsBatchScript(command string) bool {
	ext := strings.ToLower(filepath.Ext(command))
	return ext == ".cmd" || ext == ".bat"
}

// resolveSpawnCommand applies the Windows .cmd/.bat shim: such scripts
// cannot be spawned directly under a PTY and must be wrapped through
// cmd.exe.
func resolveSpawnCommand(command string, args []string) (string, []string) {
	if runtime.GOOS != "windows" || !isWindowsBatchScript(command) {
		return command, args
	}
	wrapped := append([]string{"/d", "/s", "/c", command}, args...)
	return "cmd.exe", wrapped
}

// TakeReader returns a readable stream from the PTY master. The underlying
// *os.File may be duplicated by the caller (os/exec/pty readers are safe for
// concurrent clones on the platforms this runs on); the channel itself does
// not restrict repeat calls.
func (c *Channel) TakeReader() *os.File {
	return c.master
}

// TakeWriter returns the single writable end. It succeeds once; every
// later call fails with PtyIoError.
func (c *Channel) TakeWriter() (*os.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writerTaken {
		return nil, termerr.NewPtyIoError("writer already taken")
	}
	c.writerTaken = true
	return c.master, nil
}

// Resize updates the PTY dimensions. Zero-sized resizes are rejected.
func (c *Channel) Resize(rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return termerr.NewPtyIoError("resize rejected: rows=%d cols=%d", rows, cols)
	}
	if err := pty.Setsize(c.master, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return termerr.NewPtyIoError("setsize: %v", err)
	}
	return nil
}

// TryWait performs a non-blocking check for child exit. Go's os/exec
// exposes the real exit code and signal directly, so TryWait surfaces
// both rather than collapsing them into a single success/failure boolean.
func (c *Channel) TryWait() Status {
	select {
	case <-c.waitDone:
		return statusFromProcessState(c.cmd.ProcessState)
	default:
		return Status{Running: true}
	}
}

func statusFromProcessState(ps *os.ProcessState) Status {
	if ps == nil {
		return Status{Running: true}
	}
	status := Status{Running: false, ExitCode: ps.ExitCode()}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Signaled = true
		status.Signal = ws.Signal().String()
	}
	return status
}

// Kill sends the platform termination signal to the child.
func (c *Channel) Kill() error {
	if c.cmd.Process == nil {
		return nil
	}
	if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return termerr.NewPtyIoError("kill: %v", err)
	}
	return nil
}
