package pty_test

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	gwtpty "github.com/akiojin/gwtermd/internal/pty"
)

func TestEchoRoundTrip(t *testing.T) {
	ch, err := gwtpty.New(gwtpty.Config{
		Command: "cat",
		Rows:    24,
		Cols:    80,
	})
	require.NoError(t, err)
	defer ch.Kill()

	writer, err := ch.TakeWriter()
	require.NoError(t, err)

	_, err = writer.Write([]byte("hello\n"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	reader := ch.TakeReader()
	_ = reader.SetReadDeadline(time.Now().Add(3 * time.Second))
	n, err := reader.Read(buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "hello")
}

func TestResizeRejectsZero(t *testing.T) {
	ch, err := gwtpty.New(gwtpty.Config{Command: "cat", Rows: 24, Cols: 80})
	require.NoError(t, err)
	defer ch.Kill()

	err = ch.Resize(0, 0)
	require.Error(t, err)
}

func TestTakeWriterTwiceFails(t *testing.T) {
	ch, err := gwtpty.New(gwtpty.Config{Command: "cat", Rows: 24, Cols: 80})
	require.NoError(t, err)
	defer ch.Kill()

	_, err = ch.TakeWriter()
	require.NoError(t, err)
	_, err = ch.TakeWriter()
	require.Error(t, err)
}

func TestTryWaitReflectsExit(t *testing.T) {
	ch, err := gwtpty.New(gwtpty.Config{Command: "true", Rows: 24, Cols: 80})
	require.NoError(t, err)

	deadline := time.Now().Add(3 * time.Second)
	var status gwtpty.Status
	for time.Now().Before(deadline) {
		status = ch.TryWait()
		if !status.Running {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.False(t, status.Running)
	require.Equal(t, 0, status.ExitCode)
}

func TestEnvOverlayOrderCallerWins(t *testing.T) {
	ch, err := gwtpty.New(gwtpty.Config{
		Command: "sh",
		Args:    []string{"-c", "echo $TERM:$GWT_PANE_ID"},
		Env:     map[string]string{"TERM": "screen", "GWT_PANE_ID": "p1"},
		Rows:    24,
		Cols:    80,
	})
	require.NoError(t, err)
	defer ch.Kill()

	reader := ch.TakeReader()
	_ = reader.SetReadDeadline(time.Now().Add(3 * time.Second))
	data, _ := io.ReadAll(io.LimitReader(reader, 256))
	require.Contains(t, string(data), "screen:p1")
}

func TestEnvOverlayOrderDefaultBeatsInheritedTerm(t *testing.T) {
	t.Setenv("TERM", "dumb")

	ch, err := gwtpty.New(gwtpty.Config{
		Command: "sh",
		Args:    []string{"-c", "echo $TERM"},
		Rows:    24,
		Cols:    80,
	})
	require.NoError(t, err)
	defer ch.Kill()

	reader := ch.TakeReader()
	_ = reader.SetReadDeadline(time.Now().Add(3 * time.Second))
	data, _ := io.ReadAll(io.LimitReader(reader, 256))
	require.Contains(t, string(data), "xterm-256color")
}
