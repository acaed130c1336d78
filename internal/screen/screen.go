// Package screen is a VT100-compatible state machine wrapper with a bell
// latch.
//
// Follows deprecated/go-hub/internal/vt100/parser.go for the underlying
// charmbracelet/x/vt + ultraviolet cell-grid access pattern, and
// original_source's terminal/emulator.rs for the accessor surface and
// bell-latch contract this wrapper must expose. See DESIGN.md for why
// alternate-screen/mouse-mode/cursor-visibility are tracked here via a
// side-channel escape scan rather than read from the library: that public
// surface was not observed anywhere in the example pack.
package screen

import (
	"sync"

	uv "github.com/charmbracelet/ultraviolet"
	"github.com/charmbracelet/x/vt"
)

// MouseMode identifies the active mouse-reporting protocol, if any.
type MouseMode int

const (
	MouseNone MouseMode = iota
	MousePressRelease
	MouseButtonEvent
	MouseAnyEvent
)

// Attrs is the set of text attributes a cell may carry.
type Attrs struct {
	Bold      bool
	Italic    bool
	Underline bool
	Reverse   bool
}

// Cell is one position in the screen grid.
type Cell struct {
	Grapheme string
	FG       uv.Color
	BG       uv.Color
	Attrs    Attrs
	Width    int
}

// Cursor is the read-model view of cursor state.
type Cursor struct {
	Row, Col int
	Hidden   bool
}

// Emulator drives a VT100-compatible state machine over input bytes and
// adds a latched bell flag plus side-channel mode tracking on top of the
// underlying library.
type Emulator struct {
	mu   sync.Mutex
	term vt.Terminal
	rows int
	cols int

	bellPending bool

	cursorHidden    bool
	alternateScreen bool
	mouseMode       MouseMode

	// modeScan carries partial escape-sequence state across Process calls
	// so a sequence split across two PTY reads is still recognized.
	modeScan modeScanner
}

// New constructs an empty screen of the given size.
func New(rows, cols int) *Emulator {
	return &Emulator{
		term: vt.NewSafeEmulator(cols, rows),
		rows: rows,
		cols: cols,
	}
}

// Process feeds bytes through the state machine, updating cells, cursor,
// and mode flags, and latches the bell flag on any 0x07 byte encountered.
func (e *Emulator) Process(data []byte) {
	e.term.Write(data)

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, b := range data {
		if b == 0x07 {
			e.bellPending = true
		}
	}
	e.modeScan.scan(data, &e.cursorHidden, &e.alternateScreen, &e.mouseMode)
}

// Cell reads one cell of the grid. Returns an empty cell of width 1 if out
// of bounds.
func (e *Emulator) Cell(row, col int) Cell {
	c := e.term.CellAt(col, row)
	if c == nil {
		return Cell{Grapheme: "", Width: 1}
	}
	return Cell{
		Grapheme: c.Content,
		FG:       c.Style.Fg,
		BG:       c.Style.Bg,
		Width:    max(c.Width, 1),
		Attrs: Attrs{
			Bold:      c.Style.Attrs&uv.AttrBold != 0,
			Italic:    c.Style.Attrs&uv.AttrItalic != 0,
			Underline: c.Style.Attrs&uv.AttrUnderline != 0,
			Reverse:   c.Style.Attrs&uv.AttrReverse != 0,
		},
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// CursorPosition returns the current cursor row/col and hidden state.
func (e *Emulator) CursorPosition() Cursor {
	pos := e.term.CursorPosition()
	e.mu.Lock()
	defer e.mu.Unlock()
	return Cursor{Row: pos.Y, Col: pos.X, Hidden: e.cursorHidden}
}

// HideCursor reports whether the cursor is currently hidden.
func (e *Emulator) HideCursor() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursorHidden
}

// Size returns the current (rows, cols).
func (e *Emulator) Size() (rows, cols int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rows, e.cols
}

// AlternateScreen reports whether the alternate screen buffer is active.
func (e *Emulator) AlternateScreen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alternateScreen
}

// MouseProtocolMode reports the active mouse-reporting mode.
func (e *Emulator) MouseProtocolMode() MouseMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mouseMode
}

// Resize updates the grid dimensions. A resize to identical dimensions is a
// no-op on the externally visible size.
func (e *Emulator) Resize(rows, cols int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rows == e.rows && cols == e.cols {
		return
	}
	e.rows, e.cols = rows, cols
	e.term.Resize(cols, rows)
}

// TakeBell atomically reads and clears the bell-pending flag.
func (e *Emulator) TakeBell() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	pending := e.bellPending
	e.bellPending = false
	return pending
}
