package highlight

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/dshills/mozuku-client/internal/lsp"
)

// Subscription is an explicit registration with an event source.
// Cancellation is Unsubscribe, never silent garbage collection.
type Subscription interface {
	Unsubscribe()
}

// EditorEvents is the host editor's lifecycle event surface. Handlers run on
// the host's dispatch goroutine, one at a time.
type EditorEvents interface {
	// OnDocumentOpened fires with the view presenting a newly opened
	// document.
	OnDocumentOpened(func(View)) Subscription

	// OnActiveViewChanged fires when the user switches views. The view may
	// be nil when focus leaves the editor area.
	OnActiveViewChanged(func(View)) Subscription

	// OnVisibleViewsChanged fires when the set of visible views changes.
	OnVisibleViewsChanged(func()) Subscription

	// OnDocumentClosed fires with the URI of a closed document.
	OnDocumentClosed(func(lsp.DocumentURI)) Subscription
}

// NotificationSource delivers server notifications by method. The session
// satisfies this.
type NotificationSource interface {
	OnNotification(method string, handler lsp.NotificationHandler)
}

// Coordinator wires the highlight subsystem together: it feeds server
// highlight notifications into the store and triggers reconciliation from
// both notification arrival and editor lifecycle events.
//
// Store mutation and the reconciliation that follows happen inside the
// notification handler itself, so per-document state is always committed
// before anything is drawn and no reconciliation observes a half-applied
// update.
type Coordinator struct {
	store      *Store
	reconciler *Reconciler
	subs       []Subscription
	logger     zerolog.Logger
}

// NewCoordinator creates a coordinator over the store and reconciler.
func NewCoordinator(store *Store, reconciler *Reconciler, logger zerolog.Logger) *Coordinator {
	return &Coordinator{store: store, reconciler: reconciler, logger: logger}
}

// AttachNotifications registers handlers for the three MoZuku highlight
// streams.
func (c *Coordinator) AttachNotifications(source NotificationSource) {
	source.OnNotification(lsp.MethodCommentHighlights, c.handleCommentHighlights)
	source.OnNotification(lsp.MethodContentHighlights, c.handleContentHighlights)
	source.OnNotification(lsp.MethodSemanticHighlights, c.handleSemanticHighlights)
}

// Bind subscribes to the host's lifecycle events. Call Close to
// unsubscribe.
func (c *Coordinator) Bind(events EditorEvents) {
	c.subs = append(c.subs,
		events.OnDocumentOpened(c.handleViewEvent),
		events.OnActiveViewChanged(c.handleViewEvent),
		events.OnVisibleViewsChanged(c.reconciler.ReconcileAllVisible),
		events.OnDocumentClosed(c.handleDocumentClosed),
	)
}

// Close unsubscribes from all bound event sources.
func (c *Coordinator) Close() {
	for _, sub := range c.subs {
		sub.Unsubscribe()
	}
	c.subs = nil
}

func (c *Coordinator) handleViewEvent(v View) {
	if v == nil {
		return
	}
	c.reconciler.ReconcileView(v)
}

func (c *Coordinator) handleDocumentClosed(uri lsp.DocumentURI) {
	c.store.ClearDocument(uri)
	// Any view still presenting the document goes blank.
	c.reconciler.ReconcileURI(uri)
}

// decodeParams unmarshals a notification payload. A missing payload degrades
// to the zero value, which downstream treats as "clear this channel"; it is
// never an error.
func (c *Coordinator) decodeParams(method string, params json.RawMessage, v any) bool {
	if len(params) == 0 {
		return true
	}
	if err := json.Unmarshal(params, v); err != nil {
		c.logger.Debug().Err(err).Str("method", method).Msg("malformed notification payload")
		return false
	}
	return true
}

func (c *Coordinator) handleCommentHighlights(method string, params json.RawMessage) {
	var p lsp.HighlightRangesParams
	if !c.decodeParams(method, params, &p) || p.URI == "" {
		return
	}
	c.store.ApplyCommentRanges(p.URI, p.Ranges)
	c.reconciler.ReconcileURI(p.URI)
}

func (c *Coordinator) handleContentHighlights(method string, params json.RawMessage) {
	var p lsp.HighlightRangesParams
	if !c.decodeParams(method, params, &p) || p.URI == "" {
		return
	}
	c.store.ApplyContentRanges(p.URI, p.Ranges)
	c.reconciler.ReconcileURI(p.URI)
}

func (c *Coordinator) handleSemanticHighlights(method string, params json.RawMessage) {
	var p lsp.SemanticHighlightsParams
	if !c.decodeParams(method, params, &p) || p.URI == "" {
		return
	}
	c.store.ApplySemanticTokens(p.URI, p.Tokens)
	c.reconciler.ReconcileURI(p.URI)
}
