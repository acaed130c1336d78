// Package ipc is a local, single-user JSON-RPC 2.0 server over a
// Unix-domain socket that routes requests from helper processes to Pane
// Manager operations.
//
// Follows deprecated/go-hub/internal/sshserver/sshserver.go for the
// accept-loop / per-connection-goroutine / ctx.Done()-closes-listener shape
// (SSH transport swapped for a plain Unix-domain socket, since the wire
// protocol here is JSON-RPC, not SSH), and
// deprecated/go-hub/internal/hub/message_dispatch.go's kind-tagged error
// idiom, generalized from a closed switch into a map[string]rpcHandler
// method registry for dynamic dispatch.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/akiojin/gwtermd/internal/gitops"
	"github.com/akiojin/gwtermd/internal/pane"
	"github.com/akiojin/gwtermd/internal/panemanager"
	"github.com/akiojin/gwtermd/internal/termerr"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// request is one inbound JSON-RPC frame.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// response is one outbound JSON-RPC frame.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcHandler handles one named method's params and returns a result value
// or an error.
type rpcHandler func(params json.RawMessage) (interface{}, error)

// PaneCreator is the subset of pane-launching behavior the launch_agent
// method needs. main.go supplies the concrete closure (pane.New wired to
// config, plus the pane's reader goroutine); the broker then adds the
// built *pane.Pane to the manager via AddPane.
type PaneCreator func(command string, args []string, branchName, agentName string) (*pane.Pane, error)

// Broker is the IPC surface. A Broker that failed to bind its socket is
// still safe to use: every method call returns IpcInactive.
type Broker struct {
	logger     *slog.Logger
	manager    *panemanager.Manager
	git        gitops.GitOps
	createPane PaneCreator
	methods    map[string]rpcHandler

	mu       sync.Mutex
	listener net.Listener
	active   bool
	wg       sync.WaitGroup
}

// New constructs a Broker and registers its fixed method table. The
// broker is not yet listening; call Serve to bind and accept connections.
func New(manager *panemanager.Manager, git gitops.GitOps, createPane PaneCreator, logger *slog.Logger) *Broker {
	b := &Broker{
		logger:     logger,
		manager:    manager,
		git:        git,
		createPane: createPane,
	}
	b.methods = map[string]rpcHandler{
		"list_tabs":          b.handleListTabs,
		"get_tab_info":       b.handleGetTabInfo,
		"send_message":       b.handleSendMessage,
		"broadcast_message":  b.handleBroadcastMessage,
		"launch_agent":       b.handleLaunchAgent,
		"stop_tab":           b.handleStopTab,
		"get_worktree_diff":  b.handleGetWorktreeDiff,
		"get_changed_files":  b.handleGetChangedFiles,
	}
	return b
}

// Serve binds the socket at socketPath and accepts connections until ctx
// is cancelled. A stale socket file from a previous crashed run is removed
// first. Bind failure is non-fatal: Serve logs the failure and returns nil
// immediately, leaving the broker inactive; every subsequent method call
// then fails with IpcInactive. After cancellation, Serve waits up to five
// seconds for open connections to finish before returning.
func (b *Broker) Serve(ctx context.Context, socketPath string) error {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		b.logger.Warn("ipc: cannot create socket directory, running without IPC", "error", err)
		return nil
	}
	_ = os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		b.logger.Warn("ipc: bind failed, running without IPC", "error", err)
		return nil
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		b.logger.Warn("ipc: chmod socket failed", "error", err)
	}

	b.mu.Lock()
	b.listener = listener
	b.active = true
	b.mu.Unlock()

	b.logger.Info("ipc: listening", "path", socketPath)

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		b.active = false
		b.mu.Unlock()
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				drained := make(chan struct{})
				go func() {
					b.wg.Wait()
					close(drained)
				}()
				select {
				case <-drained:
				case <-time.After(5 * time.Second):
					b.logger.Warn("ipc: drain window elapsed with connections still open")
				}
				return nil
			default:
				b.logger.Error("ipc: accept error", "error", err)
				continue
			}
		}
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.handleConn(conn)
		}()
	}
}

// Active reports whether the broker is currently listening.
func (b *Broker) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

func (b *Broker) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := b.dispatch(line)
		if err := enc.Encode(resp); err != nil {
			b.logger.Error("ipc: encode response failed", "error", err)
			return
		}
	}
}

// dispatch parses one frame, routes it to the registered handler, and
// builds the JSON-RPC response.
func (b *Broker) dispatch(line []byte) response {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return response{JSONRPC: "2.0", ID: json.RawMessage("null"), Error: &rpcError{Code: codeParseError, Message: "parse error"}}
	}

	handler, ok := b.methods[req.Method]
	if !ok {
		return response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}}
	}

	result, err := handler(req.Params)
	if err != nil {
		return response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeFor(err), Message: err.Error()}}
	}
	return response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func codeFor(err error) int {
	var terr *termerr.TerminalError
	if errors.As(err, &terr) && terr.Kind == termerr.IpcInvalidParams {
		return codeInvalidParams
	}
	return 1
}

// ---- method handlers ----

type listTabsEntry struct {
	PaneID     string `json:"pane_id"`
	Branch     string `json:"branch"`
	Agent      string `json:"agent"`
	Status     string `json:"status"`
	ElapsedSec int64  `json:"elapsed_seconds"`
}

func (b *Broker) handleListTabs(params json.RawMessage) (interface{}, error) {
	if !b.Active() {
		return nil, termerr.NewIpcInactive("broker not active")
	}
	snap := b.manager.Snapshot()
	entries := make([]listTabsEntry, 0, len(snap.Panes))
	for _, p := range snap.Panes {
		entries = append(entries, listTabsEntry{
			PaneID:     p.PaneID,
			Branch:     p.BranchName,
			Agent:      p.AgentName,
			Status:     statusLabel(p.Status),
			ElapsedSec: int64(p.Elapsed.Seconds()),
		})
	}
	return entries, nil
}

func statusLabel(s pane.Status) string {
	switch s.Kind {
	case pane.Running:
		return "running"
	case pane.Completed:
		return "completed"
	default:
		return "error"
	}
}

type tabInfoParams struct {
	PaneID string `json:"pane_id"`
}

type tabInfoResult struct {
	PaneID string `json:"pane_id"`
	Branch string `json:"branch"`
	Agent  string `json:"agent"`
	Status string `json:"status"`
	Rows   int    `json:"rows"`
	Cols   int    `json:"cols"`
	Row    int    `json:"cursor_row"`
	Col    int    `json:"cursor_col"`
}

func (b *Broker) handleGetTabInfo(params json.RawMessage) (interface{}, error) {
	if !b.Active() {
		return nil, termerr.NewIpcInactive("broker not active")
	}
	var p tabInfoParams
	if err := json.Unmarshal(params, &p); err != nil || p.PaneID == "" {
		return nil, termerr.NewIpcInvalidParams("missing or invalid params")
	}
	target, ok := b.manager.Pane(p.PaneID)
	if !ok {
		return nil, termerr.NewPaneNotFound(p.PaneID)
	}
	rows, cols := target.Emulator().Size()
	cursor := target.Emulator().CursorPosition()
	return tabInfoResult{
		PaneID: target.ID(),
		Branch: target.BranchName(),
		Agent:  target.AgentName(),
		Status: statusLabel(target.Status()),
		Rows:   rows,
		Cols:   cols,
		Row:    cursor.Row,
		Col:    cursor.Col,
	}, nil
}

type sendMessageParams struct {
	PaneID string `json:"pane_id"`
	Data   string `json:"data"`
}

func (b *Broker) handleSendMessage(params json.RawMessage) (interface{}, error) {
	if !b.Active() {
		return nil, termerr.NewIpcInactive("broker not active")
	}
	var p sendMessageParams
	if err := json.Unmarshal(params, &p); err != nil || p.PaneID == "" {
		return nil, termerr.NewIpcInvalidParams("missing or invalid params")
	}
	if err := b.manager.SendInput(p.PaneID, []byte(p.Data)); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

type broadcastMessageParams struct {
	Data string `json:"data"`
}

func (b *Broker) handleBroadcastMessage(params json.RawMessage) (interface{}, error) {
	if !b.Active() {
		return nil, termerr.NewIpcInactive("broker not active")
	}
	var p broadcastMessageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, termerr.NewIpcInvalidParams("missing or invalid params")
	}
	errs := b.manager.BroadcastInput([]byte(p.Data))
	failures := make([]string, 0, len(errs))
	for _, e := range errs {
		failures = append(failures, e.Error())
	}
	return struct {
		Failures []string `json:"failures"`
	}{Failures: failures}, nil
}

type launchAgentParams struct {
	Command    string   `json:"command"`
	Args       []string `json:"args"`
	BranchName string   `json:"branch_name"`
	AgentName  string   `json:"agent_name"`
}

func (b *Broker) handleLaunchAgent(params json.RawMessage) (interface{}, error) {
	if !b.Active() {
		return nil, termerr.NewIpcInactive("broker not active")
	}
	var p launchAgentParams
	if err := json.Unmarshal(params, &p); err != nil || p.Command == "" {
		return nil, termerr.NewIpcInvalidParams("missing or invalid params")
	}
	if b.createPane == nil {
		return nil, termerr.NewIpcProtocolError("no pane creator configured")
	}
	newPane, err := b.createPane(p.Command, p.Args, p.BranchName, p.AgentName)
	if err != nil {
		return nil, err
	}
	b.manager.AddPane(newPane)
	return struct {
		PaneID string `json:"pane_id"`
	}{PaneID: newPane.ID()}, nil
}

type stopTabParams struct {
	PaneID string `json:"pane_id"`
}

func (b *Broker) handleStopTab(params json.RawMessage) (interface{}, error) {
	if !b.Active() {
		return nil, termerr.NewIpcInactive("broker not active")
	}
	var p stopTabParams
	if err := json.Unmarshal(params, &p); err != nil || p.PaneID == "" {
		return nil, termerr.NewIpcInvalidParams("missing or invalid params")
	}
	if err := b.manager.RemovePane(p.PaneID); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

type worktreeDiffParams struct {
	RepoRoot string `json:"repo_root"`
	Branch   string `json:"branch"`
}

func (b *Broker) handleGetWorktreeDiff(params json.RawMessage) (interface{}, error) {
	if !b.Active() {
		return nil, termerr.NewIpcInactive("broker not active")
	}
	var p worktreeDiffParams
	if err := json.Unmarshal(params, &p); err != nil || p.RepoRoot == "" || p.Branch == "" {
		return nil, termerr.NewIpcInvalidParams("missing or invalid params")
	}
	diff, err := b.git.WorktreeDiff(p.RepoRoot, p.Branch)
	if err != nil {
		return nil, err
	}
	return struct {
		Diff string `json:"diff"`
	}{Diff: diff}, nil
}

func (b *Broker) handleGetChangedFiles(params json.RawMessage) (interface{}, error) {
	if !b.Active() {
		return nil, termerr.NewIpcInactive("broker not active")
	}
	var p worktreeDiffParams
	if err := json.Unmarshal(params, &p); err != nil || p.RepoRoot == "" || p.Branch == "" {
		return nil, termerr.NewIpcInvalidParams("missing or invalid params")
	}
	files, err := b.git.ChangedFiles(p.RepoRoot, p.Branch)
	if err != nil {
		return nil, err
	}
	return files, nil
}
