// Package pane composes one PTY Channel, one Screen Emulator, and one
// Scrollback Log under a single lifecycle.
//
// Follows original_source's terminal/pane.rs for construction order and
// the emulator-then-scrollback processing invariant, and go-hub's
// internal/agent/agent.go / deprecated/go-hub/internal/pty/session.go for
// the Go-side reader-goroutine shutdown shape.
package pane

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/akiojin/gwtermd/internal/pty"
	"github.com/akiojin/gwtermd/internal/screen"
	"github.com/akiojin/gwtermd/internal/scrollback"
	"github.com/akiojin/gwtermd/internal/termerr"
)

// StatusKind is the pane's lifecycle state: Running, Completed, or Error.
type StatusKind int

const (
	Running StatusKind = iota
	Completed
	Error
)

// Status is the pane's current lifecycle state.
type Status struct {
	Kind     StatusKind
	ExitCode int    // meaningful when Kind == Completed
	Message  string // meaningful when Kind == Error
}

// Config describes a pane to be constructed.
type Config struct {
	PaneID     string
	Command    string
	Args       []string
	WorkingDir string
	BranchName string
	AgentName  string
	AgentColor int
	Rows       int
	Cols       int
	Env        map[string]string
	DataDir    string // scrollback root; logs live at DataDir/<pane_id>.log
}

// Pane composes one PTY Channel, one Screen Emulator, and one Scrollback Log.
type Pane struct {
	id         string
	branchName string
	agentName  string
	agentColor int
	startedAt  time.Time

	pty        *pty.Channel
	emulator   *screen.Emulator
	scrollback *scrollback.Log
	writer     *os.File

	mu     sync.Mutex
	status Status
}

// New constructs a pane: overlays GWT_PANE_ID/GWT_BRANCH/GWT_AGENT into env,
// then creates the scrollback log, the PTY, and the screen emulator in that
// order. Fails if any sub-constructor fails.
func New(cfg Config) (*Pane, error) {
	env := make(map[string]string, len(cfg.Env)+3)
	for k, v := range cfg.Env {
		env[k] = v
	}
	env["GWT_PANE_ID"] = cfg.PaneID
	env["GWT_BRANCH"] = cfg.BranchName
	env["GWT_AGENT"] = cfg.AgentName

	sb, err := scrollback.Open(cfg.DataDir, cfg.PaneID)
	if err != nil {
		return nil, err
	}

	ptyChannel, err := pty.New(pty.Config{
		Command:    cfg.Command,
		Args:       cfg.Args,
		WorkingDir: cfg.WorkingDir,
		Env:        env,
		Rows:       cfg.Rows,
		Cols:       cfg.Cols,
	})
	if err != nil {
		_ = sb.Close()
		return nil, err
	}

	p := &Pane{
		id:         cfg.PaneID,
		branchName: cfg.BranchName,
		agentName:  cfg.AgentName,
		agentColor: cfg.AgentColor,
		startedAt:  time.Now().UTC(),
		pty:        ptyChannel,
		emulator:   screen.New(cfg.Rows, cfg.Cols),
		scrollback: sb,
		status:     Status{Kind: Running},
	}

	writer, err := ptyChannel.TakeWriter()
	if err != nil {
		_ = sb.Close()
		return nil, err
	}
	p.writer = writer

	return p, nil
}

// ID returns the pane's stable identity.
func (p *Pane) ID() string { return p.id }

// BranchName, AgentName, AgentColor return the pane's fixed attributes.
func (p *Pane) BranchName() string { return p.branchName }
func (p *Pane) AgentName() string  { return p.agentName }
func (p *Pane) AgentColor() int    { return p.agentColor }
func (p *Pane) StartedAt() time.Time { return p.startedAt }

// TakeReader delegates to the underlying PTY channel.
func (p *Pane) TakeReader() *os.File {
	return p.pty.TakeReader()
}

// ProcessBytes feeds data to the emulator, then appends it to scrollback.
// Ordering matters only in that the scrollback write is the more likely to
// fail; a failed write does not undo the emulator update.
func (p *Pane) ProcessBytes(data []byte) {
	p.emulator.Process(data)
	if err := p.scrollback.Write(data); err != nil {
		// Logged; the pane continues since the emulator already updated.
		slog.Warn("scrollback write failed", "pane_id", p.id, "error", err)
	}
}

// WriteInput writes to the PTY writer. The writer is the unbuffered master
// *os.File, so no separate flush step is performed.
func (p *Pane) WriteInput(data []byte) error {
	if p.writer == nil {
		return termerr.NewPtyIoError("writer not available for pane %s", p.id)
	}
	if _, err := p.writer.Write(data); err != nil {
		return termerr.NewPtyIoError("write: %v", err)
	}
	return nil
}

// Resize resizes the emulator and the PTY. If the PTY resize fails, the
// emulator has already been resized — tolerable, corrected on next redraw.
func (p *Pane) Resize(rows, cols int) error {
	p.emulator.Resize(rows, cols)
	return p.pty.Resize(rows, cols)
}

// CheckStatus queries the child if the pane is still Running, and performs
// the sticky Running -> Completed transition on exit.
func (p *Pane) CheckStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status.Kind != Running {
		return p.status
	}

	result := p.pty.TryWait()
	if result.Running {
		return p.status
	}

	p.status = Status{Kind: Completed, ExitCode: result.ExitCode}
	return p.status
}

// Status returns the last known status without querying the child.
func (p *Pane) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Emulator exposes the screen emulator for render snapshots. Render
// consumers should use the snapshot accessors rather than retain this
// pointer across a goroutine boundary.
func (p *Pane) Emulator() *screen.Emulator { return p.emulator }

// ScrollbackLog exposes the scrollback log for ranged reads.
func (p *Pane) ScrollbackLog() *scrollback.Log { return p.scrollback }

// Kill terminates the child process.
func (p *Pane) Kill() error {
	return p.pty.Kill()
}
