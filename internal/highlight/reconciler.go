package highlight

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/dshills/mozuku-client/internal/lsp"
)

// DecorationKey identifies one decoration set on a view: a channel, plus the
// category for semantic decorations.
type DecorationKey struct {
	Channel  Channel
	Category string
}

// View is one visible presentation of a document in the host editor. The
// host owns view creation and destruction; this package only pushes
// decoration sets at it.
type View interface {
	// URI identifies the document the view displays.
	URI() lsp.DocumentURI

	// SetDecorations replaces the view's decoration set for a key. An empty
	// ranges slice clears the set.
	SetDecorations(key DecorationKey, style tcell.Style, ranges []lsp.Range)
}

// ViewSource enumerates the host's currently visible views. The visible set
// changes outside this subsystem's control, so it is queried fresh on every
// reconciliation rather than cached.
type ViewSource interface {
	// VisibleViews returns every currently visible view.
	VisibleViews() []View

	// ViewsFor returns the visible views displaying the given document.
	ViewsFor(uri lsp.DocumentURI) []View
}

// Reconciler maps stored highlight state onto visible views.
//
// Precedence: the content channel renders only while the document has no
// semantic entries. Semantic analysis is the richer annotation of the same
// text and suppresses the coarser content indicator once available. The
// comment channel is independent of both and always renders.
//
// A pass is idempotent and performs no incremental diffing: every key that
// could carry stale marks (comment, content, and every semantic category
// ever materialized this session) is explicitly set, to ranges or to empty.
type Reconciler struct {
	store  *Store
	styles *StyleCache
	views  ViewSource
	logger zerolog.Logger
}

// NewReconciler creates a reconciler over the given collaborators.
func NewReconciler(store *Store, styles *StyleCache, views ViewSource, logger zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, styles: styles, views: views, logger: logger}
}

// ReconcileView redraws a single view from stored state.
func (r *Reconciler) ReconcileView(v View) {
	uri := v.URI()
	state := r.store.Get(uri)

	// Comment renders regardless of the other channels.
	v.SetDecorations(DecorationKey{Channel: ChannelComment}, r.styles.Comment(), state.CommentRanges)

	contentRanges := state.ContentRanges
	if state.HasSemantic() {
		contentRanges = nil
	}
	v.SetDecorations(DecorationKey{Channel: ChannelContent}, r.styles.Content(), contentRanges)

	for category, ranges := range state.SemanticByCategory {
		v.SetDecorations(
			DecorationKey{Channel: ChannelSemantic, Category: category},
			r.styles.ForCategory(category),
			ranges,
		)
	}

	// Clear every previously materialized category absent from the current
	// state so removed categories leave no stale marks.
	for _, category := range r.styles.Categories() {
		if _, ok := state.SemanticByCategory[category]; ok {
			continue
		}
		v.SetDecorations(
			DecorationKey{Channel: ChannelSemantic, Category: category},
			r.styles.ForCategory(category),
			nil,
		)
	}

	r.logger.Trace().
		Str("uri", string(uri)).
		Int("comment", len(state.CommentRanges)).
		Int("content", len(contentRanges)).
		Int("semantic_categories", len(state.SemanticByCategory)).
		Msg("reconciled view")
}

// ReconcileURI redraws every visible view displaying the document.
func (r *Reconciler) ReconcileURI(uri lsp.DocumentURI) {
	for _, v := range r.views.ViewsFor(uri) {
		r.ReconcileView(v)
	}
}

// ReconcileAllVisible redraws every currently visible view.
func (r *Reconciler) ReconcileAllVisible() {
	for _, v := range r.views.VisibleViews() {
		r.ReconcileView(v)
	}
}
