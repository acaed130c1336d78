package pane_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akiojin/gwtermd/internal/pane"
)

func newTestPane(t *testing.T) *pane.Pane {
	t.Helper()
	p, err := pane.New(pane.Config{
		PaneID:     "pane-test-1",
		Command:    "cat",
		Rows:       24,
		Cols:       80,
		DataDir:    t.TempDir(),
		BranchName: "main",
		AgentName:  "claude",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Kill() })
	return p
}

func TestEchoRoundTripS1(t *testing.T) {
	p := newTestPane(t)

	reader := p.TakeReader()
	_ = reader.SetReadDeadline(time.Now().Add(5 * time.Second))

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := reader.Read(buf)
			if n > 0 {
				p.ProcessBytes(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	require.NoError(t, p.WriteInput([]byte("hello\n")))

	deadline := time.Now().Add(5 * time.Second)
	var lines []string
	for time.Now().Before(deadline) {
		require.NoError(t, p.ScrollbackLog().Flush())
		var err error
		lines, err = p.ScrollbackLog().ReadLines(0, 1)
		require.NoError(t, err)
		if len(lines) == 1 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.Equal(t, []string{"hello"}, lines)

	cell := p.Emulator().Cell(0, 0)
	require.Equal(t, "h", cell.Grapheme)
}

func TestCheckStatusStickyAfterCompletion(t *testing.T) {
	p, err := pane.New(pane.Config{
		PaneID:  "pane-test-2",
		Command: "true",
		Rows:    24,
		Cols:    80,
		DataDir: t.TempDir(),
	})
	require.NoError(t, err)
	defer p.Kill()

	deadline := time.Now().Add(3 * time.Second)
	var status pane.Status
	for time.Now().Before(deadline) {
		status = p.CheckStatus()
		if status.Kind != pane.Running {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.Equal(t, pane.Completed, status.Kind)
	require.Equal(t, 0, status.ExitCode)

	// Sticky: a further check returns the same terminal status.
	again := p.CheckStatus()
	require.Equal(t, status, again)
}

func TestResizeZeroRejected(t *testing.T) {
	p := newTestPane(t)
	err := p.Resize(0, 0)
	require.Error(t, err)
}
