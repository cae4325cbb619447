package lsp

import (
	"fmt"

	"gitlab.com/tozd/go/errors"
)

// Standard errors returned by the MoZuku client.
var (
	// ErrServerUnavailable indicates discovery exhausted every strategy.
	ErrServerUnavailable = errors.New("mozuku server not found")

	// ErrAlreadyStarted indicates the session has already been started.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrNotRunning indicates the session is not in the Running state.
	ErrNotRunning = errors.New("session not running")

	// ErrShutdown indicates the transport has been closed.
	ErrShutdown = errors.New("transport shut down")

	// ErrHandshakeFailed indicates the initialize exchange did not complete.
	ErrHandshakeFailed = errors.New("server handshake failed")

	// ErrServerCrashed indicates the server process terminated unexpectedly.
	ErrServerCrashed = errors.New("server terminated unexpectedly")

	// ErrDocumentNotOpen indicates the document was never synced.
	ErrDocumentNotOpen = errors.New("document not open")

	// ErrDocumentAlreadyOpen indicates the document is already synced.
	ErrDocumentAlreadyOpen = errors.New("document already open")
)

// RPCError represents a JSON-RPC error object from the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// LSP-specific errors
	CodeServerNotInitialized = -32002
	CodeRequestCancelled     = -32800
)
