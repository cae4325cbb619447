package highlight

import (
	"sync"

	"github.com/dshills/mozuku-client/internal/lsp"
)

// Channel identifies one of the three independently-updated highlight
// streams.
type Channel int

const (
	// ChannelComment marks natural-language spans inside code comments.
	ChannelComment Channel = iota
	// ChannelContent marks spans of Japanese prose content.
	ChannelContent
	// ChannelSemantic marks part-of-speech tokens, subdivided by category.
	ChannelSemantic
)

// String returns the channel name.
func (c Channel) String() string {
	switch c {
	case ChannelComment:
		return "comment"
	case ChannelContent:
		return "content"
	case ChannelSemantic:
		return "semantic"
	default:
		return "unknown"
	}
}

// DocumentState is a snapshot of every highlight channel for one document.
// Slices and the map are copies; mutating them does not affect the store.
type DocumentState struct {
	CommentRanges      []lsp.Range
	ContentRanges      []lsp.Range
	SemanticByCategory map[string][]lsp.Range
}

// IsEmpty reports whether no channel holds any ranges.
func (d DocumentState) IsEmpty() bool {
	return len(d.CommentRanges) == 0 && len(d.ContentRanges) == 0 && len(d.SemanticByCategory) == 0
}

// HasSemantic reports whether any semantic category holds ranges.
func (d DocumentState) HasSemantic() bool {
	return len(d.SemanticByCategory) > 0
}

// documentState is the mutable store entry. At most one exists per URI.
type documentState struct {
	commentRanges      []lsp.Range
	contentRanges      []lsp.Range
	semanticByCategory map[string][]lsp.Range
}

func (d *documentState) empty() bool {
	return len(d.commentRanges) == 0 && len(d.contentRanges) == 0 && len(d.semanticByCategory) == 0
}

// Store holds per-document highlight state keyed by URI. Each channel
// carries the payload of the most recently received notification for that
// (URI, channel) pair; channels never overwrite each other. An empty payload
// deletes the channel, and a document entry whose channels are all gone is
// removed entirely, so absence of an entry and "no highlights" are the same
// thing.
//
// Store is safe for concurrent use, though the subsystem's scheduling keeps
// mutations serialized: notification handlers run one at a time on the
// transport read goroutine.
type Store struct {
	mu   sync.RWMutex
	docs map[lsp.DocumentURI]*documentState
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{docs: make(map[lsp.DocumentURI]*documentState)}
}

// ApplyCommentRanges replaces the comment channel for a document wholesale.
// An empty payload deletes the channel.
func (s *Store) ApplyCommentRanges(uri lsp.DocumentURI, ranges []lsp.Range) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ranges) == 0 {
		if doc, ok := s.docs[uri]; ok {
			doc.commentRanges = nil
			s.dropIfEmpty(uri, doc)
		}
		return
	}
	s.entry(uri).commentRanges = cloneRanges(ranges)
}

// ApplyContentRanges replaces the content channel for a document wholesale.
// An empty payload deletes the channel.
func (s *Store) ApplyContentRanges(uri lsp.DocumentURI, ranges []lsp.Range) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ranges) == 0 {
		if doc, ok := s.docs[uri]; ok {
			doc.contentRanges = nil
			s.dropIfEmpty(uri, doc)
		}
		return
	}
	s.entry(uri).contentRanges = cloneRanges(ranges)
}

// ApplySemanticTokens replaces the document's entire semantic picture. The
// tokens are grouped by category; an empty payload deletes every category,
// not just some of them. A semantic update is all-or-nothing per document.
func (s *Store) ApplySemanticTokens(uri lsp.DocumentURI, tokens []lsp.SemanticToken) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(tokens) == 0 {
		if doc, ok := s.docs[uri]; ok {
			doc.semanticByCategory = nil
			s.dropIfEmpty(uri, doc)
		}
		return
	}

	byCategory := make(map[string][]lsp.Range)
	for _, tok := range tokens {
		byCategory[tok.Type] = append(byCategory[tok.Type], tok.Range)
	}
	s.entry(uri).semanticByCategory = byCategory
}

// ClearDocument removes all three channels for a document unconditionally.
// Used on document close.
func (s *Store) ClearDocument(uri lsp.DocumentURI) {
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()
}

// Reset removes every document. Used at session teardown.
func (s *Store) Reset() {
	s.mu.Lock()
	s.docs = make(map[lsp.DocumentURI]*documentState)
	s.mu.Unlock()
}

// Get returns a snapshot of the document's highlight state. A URI with no
// entry yields the zero state.
func (s *Store) Get(uri lsp.DocumentURI) DocumentState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[uri]
	if !ok {
		return DocumentState{}
	}

	state := DocumentState{
		CommentRanges: cloneRanges(doc.commentRanges),
		ContentRanges: cloneRanges(doc.contentRanges),
	}
	if len(doc.semanticByCategory) > 0 {
		state.SemanticByCategory = make(map[string][]lsp.Range, len(doc.semanticByCategory))
		for cat, ranges := range doc.semanticByCategory {
			state.SemanticByCategory[cat] = cloneRanges(ranges)
		}
	}
	return state
}

// URIs returns every document with stored highlights.
func (s *Store) URIs() []lsp.DocumentURI {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uris := make([]lsp.DocumentURI, 0, len(s.docs))
	for uri := range s.docs {
		uris = append(uris, uri)
	}
	return uris
}

// entry returns the store entry for a URI, creating it on first use.
// Callers hold s.mu.
func (s *Store) entry(uri lsp.DocumentURI) *documentState {
	doc, ok := s.docs[uri]
	if !ok {
		doc = &documentState{}
		s.docs[uri] = doc
	}
	return doc
}

// dropIfEmpty removes the entry once every channel is gone. Callers hold
// s.mu.
func (s *Store) dropIfEmpty(uri lsp.DocumentURI, doc *documentState) {
	if doc.empty() {
		delete(s.docs, uri)
	}
}

func cloneRanges(ranges []lsp.Range) []lsp.Range {
	if len(ranges) == 0 {
		return nil
	}
	out := make([]lsp.Range, len(ranges))
	copy(out, ranges)
	return out
}
