package lsp

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// SessionState is the lifecycle state of one server session.
type SessionState int

const (
	// StateUninitialized means Start has not been called.
	StateUninitialized SessionState = iota
	// StateStarting means the process is spawning and the handshake is in
	// flight.
	StateStarting
	// StateRunning means the handshake completed and notifications flow.
	StateRunning
	// StateStopped is terminal and reachable from any state.
	StateStopped
)

// String returns a human-readable state name.
func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// LaunchProfile selects the environment injected into the server process.
// The run and debug profiles differ only in environment variables.
type LaunchProfile string

const (
	// ProfileRun launches the server with a scrubbed environment.
	ProfileRun LaunchProfile = "run"
	// ProfileDebug additionally sets MOZUKU_DEBUG=1 for verbose server-side
	// logging.
	ProfileDebug LaunchProfile = "debug"
)

// debugEnvVar signals verbose logging to the server.
const debugEnvVar = "MOZUKU_DEBUG"

// scrubbedEnvVars are interpreter-path overrides that could redirect the
// server to a different ambient runtime than the one discovery resolved.
// They are stripped from the child environment for both profiles.
var scrubbedEnvVars = []string{"PYTHONHOME", "PYTHONPATH"}

// StateHandler observes session state transitions. err is non-nil exactly
// when the transition is a failure: a failed start, or an unexpected
// termination after the session reached Running. A clean caller-initiated
// stop delivers StateStopped with a nil error.
type StateHandler func(state SessionState, err error)

// runningProcess is one spawned server process. The seam exists so tests can
// substitute an in-memory server.
type runningProcess struct {
	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader
	wait   func() error
	kill   func()
}

type spawnFunc func(ctx context.Context, loc ServerLocation, env []string, dir string) (*runningProcess, error)

// Session owns exactly one MoZuku server process and the transport to it.
// The ServerLocation it was created with is immutable for its lifetime; a
// replacement session must re-resolve.
type Session struct {
	id       string
	location ServerLocation

	// Configuration
	initOptions      any
	profile          LaunchProfile
	handshakeTimeout time.Duration
	workDir          string
	extraEnv         map[string]string

	mu            sync.Mutex
	transport     *Transport
	proc          *runningProcess
	cancel        context.CancelFunc
	stateHandlers []StateHandler
	notifHandlers map[string]NotificationHandler

	// Document tracking
	documents map[DocumentURI]*syncedDocument

	state    atomic.Int32
	stopping atomic.Bool

	capabilities ServerCapabilities
	serverInfo   *ServerInfo

	spawn  spawnFunc
	logger zerolog.Logger
}

// syncedDocument tracks a document synced to the server.
type syncedDocument struct {
	languageID string
	version    int
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithInitializationOptions sets the payload sent with the initialize
// request.
func WithInitializationOptions(opts any) SessionOption {
	return func(s *Session) { s.initOptions = opts }
}

// WithProfile selects the launch profile.
func WithProfile(p LaunchProfile) SessionOption {
	return func(s *Session) { s.profile = p }
}

// WithHandshakeTimeout bounds the initialize exchange.
func WithHandshakeTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.handshakeTimeout = d }
}

// WithWorkDir sets the server process working directory.
func WithWorkDir(dir string) SessionOption {
	return func(s *Session) { s.workDir = dir }
}

// WithExtraEnv adds environment variables to the server process, applied
// after scrubbing.
func WithExtraEnv(env map[string]string) SessionOption {
	return func(s *Session) { s.extraEnv = env }
}

// WithSessionLogger sets the logger.
func WithSessionLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// NewSession creates a session for a resolved server location. The session
// is inert until Start.
func NewSession(loc ServerLocation, opts ...SessionOption) *Session {
	s := &Session{
		id:               uuid.NewString(),
		location:         loc,
		profile:          ProfileRun,
		handshakeTimeout: 15 * time.Second,
		notifHandlers:    make(map[string]NotificationHandler),
		documents:        make(map[DocumentURI]*syncedDocument),
		spawn:            spawnProcess,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("session", s.id).Logger()
	s.state.Store(int32(StateUninitialized))
	return s
}

// ID returns the session identifier used in log correlation.
func (s *Session) ID() string {
	return s.id
}

// State returns the current session state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Capabilities returns the capabilities the server reported during the
// handshake. Valid once the session reached Running.
func (s *Session) Capabilities() ServerCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capabilities
}

// Info returns the server identification from the handshake, if any.
func (s *Session) Info() *ServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo
}

// OnStateChange registers a state transition handler. Handlers registered
// after a transition do not observe it retroactively.
func (s *Session) OnStateChange(handler StateHandler) {
	s.mu.Lock()
	s.stateHandlers = append(s.stateHandlers, handler)
	s.mu.Unlock()
}

// OnNotification registers a handler for a server notification method.
// Registration is valid before or after Start. Handlers run synchronously
// on the read goroutine in arrival order and must not block.
func (s *Session) OnNotification(method string, handler NotificationHandler) {
	s.mu.Lock()
	s.notifHandlers[method] = handler
	transport := s.transport
	s.mu.Unlock()

	if transport != nil {
		transport.OnNotification(method, handler)
	}
}

// Start spawns the server process and performs the initialize handshake. A
// failed start is fatal for this session: the session transitions to
// Stopped and is never retried automatically.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.State() != StateUninitialized {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.setStateLocked(StateStarting, nil)

	if !s.location.Available {
		s.setStateLocked(StateStopped, ErrServerUnavailable)
		s.mu.Unlock()
		return ErrServerUnavailable
	}

	// The process outlives the Start ctx; Stop is the only thing that tears
	// it down.
	procCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	proc, err := s.spawn(procCtx, s.location, s.buildEnv(), s.workDir)
	if err != nil {
		err = errors.Errorf("spawn server: %w", err)
		s.setStateLocked(StateStopped, err)
		s.mu.Unlock()
		cancel()
		return err
	}
	s.proc = proc

	s.transport = NewTransport(proc.stdout, proc.stdin, s.logger)
	for method, handler := range s.notifHandlers {
		s.transport.OnNotification(method, handler)
	}
	s.transport.Start(procCtx)
	transport := s.transport
	s.mu.Unlock()

	go s.monitor(proc)
	if proc.stderr != nil {
		go s.drainStderr(proc.stderr)
	}

	if err := s.handshake(ctx, transport); err != nil {
		err = errors.Errorf("%w: %v", ErrHandshakeFailed, err)
		s.teardown()
		s.mu.Lock()
		s.setStateLocked(StateStopped, err)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.setStateLocked(StateRunning, nil)
	s.mu.Unlock()
	s.logger.Info().Str("command", s.location.Command).Msg("session running")
	return nil
}

// Stop tears the session down. It is unconditional and immediate from the
// caller's perspective: a best-effort shutdown exchange is attempted, then
// the process is killed without waiting for acknowledgement. Safe to call
// from any state.
func (s *Session) Stop(ctx context.Context) {
	if s.stopping.Swap(true) {
		return
	}

	s.mu.Lock()
	transport := s.transport
	s.mu.Unlock()

	if transport != nil && !transport.IsClosed() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_ = transport.Call(shutdownCtx, "shutdown", nil, nil)
		_ = transport.Notify("exit", nil)
		cancel()
	}

	s.teardown()

	s.mu.Lock()
	s.setStateLocked(StateStopped, nil)
	s.mu.Unlock()
	s.logger.Info().Msg("session stopped")
}

// handshake performs the initialize exchange.
func (s *Session) handshake(ctx context.Context, transport *Transport) error {
	params := InitializeParams{
		ProcessID:             os.Getpid(),
		Capabilities:          struct{}{},
		InitializationOptions: s.initOptions,
	}
	if s.workDir != "" {
		params.RootURI = FilePathToURI(s.workDir)
	}

	ctx, cancel := context.WithTimeout(ctx, s.handshakeTimeout)
	defer cancel()

	var result InitializeResult
	if err := transport.Call(ctx, "initialize", params, &result); err != nil {
		return err
	}

	s.mu.Lock()
	s.capabilities = result.Capabilities
	s.serverInfo = result.ServerInfo
	s.mu.Unlock()

	return transport.Notify("initialized", struct{}{})
}

// monitor waits for process exit and classifies it. An exit after Running
// that was not caller-initiated is an unexpected termination, surfaced as a
// distinct condition from a clean stop.
func (s *Session) monitor(proc *runningProcess) {
	exitErr := proc.wait()

	if s.stopping.Load() || s.State() != StateRunning {
		// Clean stop, or a start failure the handshake path reports.
		return
	}

	var err error
	if exitErr != nil {
		err = errors.Errorf("%w: %v", ErrServerCrashed, exitErr)
	} else {
		err = ErrServerCrashed
	}
	s.logger.Error().Err(exitErr).Msg("server terminated unexpectedly")

	s.teardown()

	s.mu.Lock()
	s.setStateLocked(StateStopped, err)
	s.mu.Unlock()
}

// teardown releases the transport and the process. Idempotent.
func (s *Session) teardown() {
	s.mu.Lock()
	transport := s.transport
	proc := s.proc
	cancel := s.cancel
	s.mu.Unlock()

	if transport != nil {
		transport.Close()
	}
	if proc != nil {
		if proc.stdin != nil {
			_ = proc.stdin.Close()
		}
		if proc.kill != nil {
			proc.kill()
		}
	}
	if cancel != nil {
		cancel()
	}
}

// setStateLocked transitions the state and invokes handlers synchronously.
// Callers hold s.mu; handlers must not call back into the session.
func (s *Session) setStateLocked(state SessionState, err error) {
	if SessionState(s.state.Load()) == StateStopped && state == StateStopped {
		return
	}
	s.state.Store(int32(state))
	for _, handler := range s.stateHandlers {
		handler(state, err)
	}
}

// buildEnv assembles the child environment: the parent environment with
// interpreter-path overrides stripped, profile variables, then extras.
func (s *Session) buildEnv() []string {
	env := make([]string, 0, len(os.Environ())+len(s.extraEnv)+1)
	for _, kv := range os.Environ() {
		if isScrubbedEnv(kv) {
			continue
		}
		env = append(env, kv)
	}
	if s.profile == ProfileDebug {
		env = append(env, debugEnvVar+"=1")
	}
	for k, v := range s.extraEnv {
		env = append(env, k+"="+v)
	}
	return env
}

func isScrubbedEnv(kv string) bool {
	for _, name := range scrubbedEnvVars {
		if strings.HasPrefix(kv, name+"=") {
			return true
		}
	}
	return false
}

// drainStderr forwards server stderr lines to the session log.
func (s *Session) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 16*1024), 256*1024)
	for scanner.Scan() {
		s.logger.Debug().Str("stream", "stderr").Msg(scanner.Text())
	}
}

// spawnProcess is the production spawn seam.
func spawnProcess(ctx context.Context, loc ServerLocation, env []string, dir string) (*runningProcess, error) {
	cmd := exec.CommandContext(ctx, loc.Command, loc.Args...)
	cmd.Env = env
	cmd.Dir = dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, errors.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		return nil, errors.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, errors.Errorf("start process: %w", err)
	}

	return &runningProcess{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		wait:   cmd.Wait,
		kill: func() {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		},
	}, nil
}

// --- Document synchronization ---

// OpenDocument syncs a document to the server. The server only analyzes
// documents it has seen a didOpen for.
func (s *Session) OpenDocument(uri DocumentURI, languageID, text string) error {
	if s.State() != StateRunning {
		return ErrNotRunning
	}

	s.mu.Lock()
	if _, ok := s.documents[uri]; ok {
		s.mu.Unlock()
		return ErrDocumentAlreadyOpen
	}
	s.documents[uri] = &syncedDocument{languageID: languageID, version: 1}
	transport := s.transport
	s.mu.Unlock()

	return transport.Notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: uri, LanguageID: languageID, Version: 1, Text: text},
	})
}

// ChangeDocument sends a full-text replacement for a synced document.
func (s *Session) ChangeDocument(uri DocumentURI, text string) error {
	if s.State() != StateRunning {
		return ErrNotRunning
	}

	s.mu.Lock()
	doc, ok := s.documents[uri]
	if !ok {
		s.mu.Unlock()
		return ErrDocumentNotOpen
	}
	doc.version++
	version := doc.version
	transport := s.transport
	s.mu.Unlock()

	return transport.Notify("textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument: VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: TextDocumentIdentifier{URI: uri},
			Version:                version,
		},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: text}},
	})
}

// SaveDocument notifies the server a synced document was saved.
func (s *Session) SaveDocument(uri DocumentURI) error {
	if s.State() != StateRunning {
		return ErrNotRunning
	}

	s.mu.Lock()
	_, ok := s.documents[uri]
	transport := s.transport
	s.mu.Unlock()
	if !ok {
		return ErrDocumentNotOpen
	}

	return transport.Notify("textDocument/didSave", DidSaveTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
}

// CloseDocument unsyncs a document.
func (s *Session) CloseDocument(uri DocumentURI) error {
	if s.State() != StateRunning {
		return ErrNotRunning
	}

	s.mu.Lock()
	_, ok := s.documents[uri]
	if ok {
		delete(s.documents, uri)
	}
	transport := s.transport
	s.mu.Unlock()
	if !ok {
		return ErrDocumentNotOpen
	}

	return transport.Notify("textDocument/didClose", DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
}

// IsDocumentOpen reports whether the document is currently synced.
func (s *Session) IsDocumentOpen(uri DocumentURI) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.documents[uri]
	return ok
}
