package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// Transport carries JSON-RPC 2.0 messages over a stdio byte stream using the
// LSP base protocol (Content-Length headers).
//
// Incoming notifications are dispatched synchronously on the read goroutine,
// so for any method, handlers observe payloads in arrival order. Handlers
// must not block.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer

	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[int64]chan *rpcResponse
	handlers map[string]NotificationHandler

	nextID atomic.Int64
	closed atomic.Bool
	done   chan struct{}

	logger zerolog.Logger
}

// NotificationHandler receives a server notification. Params is the raw
// payload and may be nil.
type NotificationHandler func(method string, params json.RawMessage)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type rpcIncoming struct {
	ID     *int64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// NewTransport creates a transport reading server output from r and writing
// client messages to w.
func NewTransport(r io.Reader, w io.Writer, logger zerolog.Logger) *Transport {
	return &Transport{
		reader:   bufio.NewReaderSize(r, 64*1024),
		writer:   w,
		pending:  make(map[int64]chan *rpcResponse),
		handlers: make(map[string]NotificationHandler),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Start begins the read loop on its own goroutine.
func (t *Transport) Start(ctx context.Context) {
	go t.readLoop(ctx)
}

// Close shuts down the transport. Pending calls fail with ErrShutdown. Safe
// to call more than once.
func (t *Transport) Close() {
	if t.closed.Swap(true) {
		return
	}
	close(t.done)

	// Drop the pending map instead of closing the channels; waiters unblock
	// on t.done and late responses are discarded by handleResponse.
	t.mu.Lock()
	t.pending = make(map[int64]chan *rpcResponse)
	t.mu.Unlock()
}

// IsClosed reports whether Close has been called or the stream ended.
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}

// Call sends a request and waits for the matching response.
func (t *Transport) Call(ctx context.Context, method string, params any, result any) error {
	if t.closed.Load() {
		return ErrShutdown
	}

	id := t.nextID.Add(1)
	ch := make(chan *rpcResponse, 1)

	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if err := t.send(&rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return errors.Errorf("send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return ErrShutdown
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return errors.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	}
}

// Notify sends a one-way notification.
func (t *Transport) Notify(method string, params any) error {
	if t.closed.Load() {
		return ErrShutdown
	}
	return t.send(&rpcRequest{JSONRPC: "2.0", Method: method, Params: params})
}

// OnNotification registers the handler for a notification method. A second
// registration for the same method replaces the first.
func (t *Transport) OnNotification(method string, handler NotificationHandler) {
	t.mu.Lock()
	t.handlers[method] = handler
	t.mu.Unlock()
}

func (t *Transport) send(msg *rpcRequest) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Errorf("marshal message: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := io.WriteString(t.writer, "Content-Length: "+strconv.Itoa(len(data))+"\r\n\r\n"); err != nil {
		return errors.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(data); err != nil {
		return errors.Errorf("write body: %w", err)
	}
	return nil
}

func (t *Transport) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		default:
		}

		body, err := t.readMessage()
		if err != nil {
			if t.closed.Load() || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
				// Stream ended; unblock pending callers.
				t.Close()
				return
			}
			t.logger.Debug().Err(err).Msg("transport: skipping unreadable message")
			continue
		}
		t.dispatch(body)
	}
}

// readMessage reads one header-framed message body.
func (t *Transport) readMessage() (json.RawMessage, error) {
	contentLength := 0
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(name, "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, errors.Errorf("bad Content-Length %q: %w", value, err)
			}
			contentLength = n
		}
		// Content-Type and anything else is ignored.
	}

	if contentLength <= 0 {
		return nil, errors.New("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, errors.Errorf("read body: %w", err)
	}
	return body, nil
}

func (t *Transport) dispatch(data json.RawMessage) {
	var msg rpcIncoming
	if err := json.Unmarshal(data, &msg); err != nil {
		t.logger.Debug().Err(err).Msg("transport: dropping malformed message")
		return
	}

	// A message with an ID and a result or error is a response; anything
	// with a method is a notification (server-to-client requests are not
	// part of the MoZuku surface and are ignored).
	if msg.ID != nil && (msg.Result != nil || msg.Error != nil) {
		t.handleResponse(&rpcResponse{ID: *msg.ID, Result: msg.Result, Error: msg.Error})
		return
	}
	if msg.Method != "" && msg.ID == nil {
		t.handleNotification(msg.Method, msg.Params)
	}
}

func (t *Transport) handleResponse(resp *rpcResponse) {
	if t.closed.Load() {
		return
	}
	t.mu.Lock()
	ch, ok := t.pending[resp.ID]
	if ok {
		delete(t.pending, resp.ID)
	}
	t.mu.Unlock()

	if ok {
		select {
		case ch <- resp:
		default:
		}
	}
}

func (t *Transport) handleNotification(method string, params json.RawMessage) {
	t.mu.Lock()
	handler := t.handlers[method]
	t.mu.Unlock()

	if handler == nil {
		t.logger.Trace().Str("method", method).Msg("transport: unhandled notification")
		return
	}
	// Synchronous on purpose: delivery order per method must match arrival
	// order.
	handler(method, params)
}
