package panemanager_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akiojin/gwtermd/internal/pane"
	"github.com/akiojin/gwtermd/internal/panemanager"
)

func newTestPane(t *testing.T, id string) *pane.Pane {
	t.Helper()
	p, err := pane.New(pane.Config{
		PaneID:     id,
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

func TestAddPaneSetsActiveIndexOnFirst(t *testing.T) {
	m := panemanager.New()
	require.True(t, m.IsEmpty())

	p1 := newTestPane(t, "p1")
	m.AddPane(p1)
	require.False(t, m.IsEmpty())
	require.Equal(t, 0, m.ActiveIndex())
	require.Equal(t, "p1", m.ActivePane().ID())

	p2 := newTestPane(t, "p2")
	m.AddPane(p2)
	require.Equal(t, 0, m.ActiveIndex(), "active_index unchanged by later adds")
	require.Len(t, m.Panes(), 2)
}

func TestActivateRejectsOutOfRange(t *testing.T) {
	m := panemanager.New()
	m.AddPane(newTestPane(t, "p1"))

	require.Error(t, m.Activate(1))
	require.Error(t, m.Activate(-1))
	require.NoError(t, m.Activate(0))
}

func TestRemovePaneClampsActiveIndexS4(t *testing.T) {
	m := panemanager.New()
	m.AddPane(newTestPane(t, "p1"))
	m.AddPane(newTestPane(t, "p2"))
	m.AddPane(newTestPane(t, "p3"))
	require.NoError(t, m.Activate(2))

	require.NoError(t, m.RemovePane("p3"))
	require.Equal(t, 1, m.ActiveIndex())
	require.Len(t, m.Panes(), 2)

	require.NoError(t, m.RemovePane("p2"))
	require.Equal(t, 0, m.ActiveIndex())

	require.NoError(t, m.RemovePane("p1"))
	require.True(t, m.IsEmpty())
	require.Nil(t, m.ActivePane())
}

func TestRemovePaneBeforeActiveKeepsSamePaneActive(t *testing.T) {
	m := panemanager.New()
	m.AddPane(newTestPane(t, "a"))
	m.AddPane(newTestPane(t, "b"))
	m.AddPane(newTestPane(t, "c"))
	require.NoError(t, m.Activate(1)) // active pane is "b"

	require.NoError(t, m.RemovePane("a"))
	require.Equal(t, 0, m.ActiveIndex())
	require.Equal(t, "b", m.ActivePane().ID())
}

func TestRemovePaneUnknownReturnsPaneNotFound(t *testing.T) {
	m := panemanager.New()
	err := m.RemovePane("missing")
	require.Error(t, err)
}

func TestSendInputUnknownPaneReturnsPaneNotFound(t *testing.T) {
	m := panemanager.New()
	err := m.SendInput("missing", []byte("hi"))
	require.Error(t, err)
}

func TestBroadcastInputReachesEveryPane(t *testing.T) {
	m := panemanager.New()
	p1 := newTestPane(t, "p1")
	p2 := newTestPane(t, "p2")
	m.AddPane(p1)
	m.AddPane(p2)

	r1 := p1.TakeReader()
	r2 := p2.TakeReader()
	_ = r1.SetReadDeadline(time.Now().Add(5 * time.Second))
	_ = r2.SetReadDeadline(time.Now().Add(5 * time.Second))
	go drain(p1, r1)
	go drain(p2, r2)

	errs := m.BroadcastInput([]byte("hi\n"))
	require.Empty(t, errs)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if p1.Emulator().Cell(0, 0).Grapheme == "h" && p2.Emulator().Cell(0, 0).Grapheme == "h" {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.Equal(t, "h", p1.Emulator().Cell(0, 0).Grapheme)
	require.Equal(t, "h", p2.Emulator().Cell(0, 0).Grapheme)
}

func drain(p *pane.Pane, reader interface {
	Read([]byte) (int, error)
}) {
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
}

func TestResizeAllCollectsNoErrorsForValidSize(t *testing.T) {
	m := panemanager.New()
	m.AddPane(newTestPane(t, "p1"))
	m.AddPane(newTestPane(t, "p2"))

	errs := m.ResizeAll(30, 100)
	require.Empty(t, errs)
}

func TestPollStatusReportsTransitionOnce(t *testing.T) {
	m := panemanager.New()
	p, err := pane.New(pane.Config{
		PaneID:  "p-exit",
		Command: "true",
		Rows:    24,
		Cols:    80,
		DataDir: t.TempDir(),
	})
	require.NoError(t, err)
	defer p.Kill()
	m.AddPane(p)

	deadline := time.Now().Add(3 * time.Second)
	var transitioned []string
	for time.Now().Before(deadline) {
		transitioned = m.PollStatus()
		if len(transitioned) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.Equal(t, []string{"p-exit"}, transitioned)

	// A further poll does not report the same pane again.
	require.Empty(t, m.PollStatus())
}

func TestSnapshotReflectsPanes(t *testing.T) {
	m := panemanager.New()
	m.AddPane(newTestPane(t, "p1"))

	snap := m.Snapshot()
	require.False(t, snap.IsEmpty)
	require.Equal(t, 0, snap.ActiveIndex)
	require.Len(t, snap.Panes, 1)
	require.Equal(t, "p1", snap.Panes[0].PaneID)
	require.Equal(t, "main", snap.Panes[0].BranchName)
}
