package screen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akiojin/gwtermd/internal/screen"
)

func TestBellLatch(t *testing.T) {
	e := screen.New(24, 80)
	e.Process([]byte{0x07})

	require.True(t, e.TakeBell())
	require.False(t, e.TakeBell())
}

func TestBellLatchRequiresNewBytes(t *testing.T) {
	e := screen.New(24, 80)
	e.Process([]byte{0x07})
	require.True(t, e.TakeBell())
	require.False(t, e.TakeBell())

	e.Process([]byte{0x07})
	require.True(t, e.TakeBell())
}

func TestProcessWritesCell(t *testing.T) {
	e := screen.New(24, 80)
	e.Process([]byte("h"))

	cell := e.Cell(0, 0)
	require.Equal(t, "h", cell.Grapheme)
}

func TestResizeIdempotentOnExternalSize(t *testing.T) {
	e := screen.New(24, 80)
	e.Resize(30, 100)
	rows, cols := e.Size()
	require.Equal(t, 30, rows)
	require.Equal(t, 100, cols)

	e.Resize(30, 100)
	rows, cols = e.Size()
	require.Equal(t, 30, rows)
	require.Equal(t, 100, cols)
}

func TestAlternateScreenTracking(t *testing.T) {
	e := screen.New(24, 80)
	require.False(t, e.AlternateScreen())

	e.Process([]byte("\x1b[?1049h"))
	require.True(t, e.AlternateScreen())

	e.Process([]byte("\x1b[?1049l"))
	require.False(t, e.AlternateScreen())
}

func TestCursorVisibilityTracking(t *testing.T) {
	e := screen.New(24, 80)
	require.False(t, e.HideCursor())

	e.Process([]byte("\x1b[?25l"))
	require.True(t, e.HideCursor())

	e.Process([]byte("\x1b[?25h"))
	require.False(t, e.HideCursor())
}

func TestMouseProtocolModeTracking(t *testing.T) {
	e := screen.New(24, 80)
	require.Equal(t, screen.MouseNone, e.MouseProtocolMode())

	e.Process([]byte("\x1b[?1000h"))
	require.Equal(t, screen.MousePressRelease, e.MouseProtocolMode())

	e.Process([]byte("\x1b[?1000l"))
	require.Equal(t, screen.MouseNone, e.MouseProtocolMode())
}
