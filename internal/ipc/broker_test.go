package ipc_test

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akiojin/gwtermd/internal/gitops"
	"github.com/akiojin/gwtermd/internal/ipc"
	"github.com/akiojin/gwtermd/internal/pane"
	"github.com/akiojin/gwtermd/internal/panemanager"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestBroker(t *testing.T) (*ipc.Broker, *panemanager.Manager, string) {
	t.Helper()
	manager := panemanager.New()
	socketPath := filepath.Join(t.TempDir(), "gwt.sock")

	createPane := func(command string, args []string, branchName, agentName string) (*pane.Pane, error) {
		return pane.New(pane.Config{
			PaneID:     "launched",
			Command:    command,
			Args:       args,
			Rows:       24,
			Cols:       80,
			DataDir:    t.TempDir(),
			BranchName: branchName,
			AgentName:  agentName,
		})
	}

	broker := ipc.New(manager, gitops.New(), createPane, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = broker.Serve(ctx, socketPath)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if broker.Active() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, broker.Active())

	return broker, manager, socketPath
}

func call(t *testing.T, socketPath, method string, params interface{}) map[string]interface{} {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	}
	require.NoError(t, json.NewEncoder(conn).Encode(req))

	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan())
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
	return resp
}

func TestListTabsOverSocket(t *testing.T) {
	_, manager, socketPath := newTestBroker(t)

	p, err := pane.New(pane.Config{
		PaneID:     "p1",
		Command:    "cat",
		Rows:       24,
		Cols:       80,
		DataDir:    t.TempDir(),
		BranchName: "main",
		AgentName:  "claude",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Kill() })
	manager.AddPane(p)

	resp := call(t, socketPath, "list_tabs", map[string]interface{}{})
	require.Nil(t, resp["error"])
	result, ok := resp["result"].([]interface{})
	require.True(t, ok)
	require.Len(t, result, 1)
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	_, _, socketPath := newTestBroker(t)

	resp := call(t, socketPath, "no_such_method", map[string]interface{}{})
	errObj, ok := resp["error"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, float64(-32601), errObj["code"])
}

func TestSendMessageUnknownPaneReturnsError(t *testing.T) {
	_, _, socketPath := newTestBroker(t)

	resp := call(t, socketPath, "send_message", map[string]interface{}{
		"pane_id": "missing",
		"data":    "hi",
	})
	require.NotNil(t, resp["error"])
}

func TestBrokerInactiveUntilServed(t *testing.T) {
	manager := panemanager.New()
	broker := ipc.New(manager, gitops.New(), nil, discardLogger())

	// Serve is never called: the broker stays inactive, matching the
	// non-fatal bind-failure degradation path in S6.
	require.False(t, broker.Active())
}
