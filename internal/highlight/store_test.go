package highlight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/mozuku-client/internal/lsp"
)

func rng(line, start, end int) lsp.Range {
	return lsp.Range{
		Start: lsp.Position{Line: line, Character: start},
		End:   lsp.Position{Line: line, Character: end},
	}
}

func tok(category string, line, start, end int) lsp.SemanticToken {
	return lsp.SemanticToken{Range: rng(line, start, end), Type: category}
}

const docA = lsp.DocumentURI("file:///a.ja.txt")
const docB = lsp.DocumentURI("file:///b.ja.txt")

func TestStoreChannelsIndependent(t *testing.T) {
	s := NewStore()

	s.ApplyCommentRanges(docA, []lsp.Range{rng(1, 0, 4)})
	s.ApplyContentRanges(docA, []lsp.Range{rng(2, 0, 8)})
	s.ApplySemanticTokens(docA, []lsp.SemanticToken{tok("noun", 3, 0, 2)})

	state := s.Get(docA)
	assert.Equal(t, []lsp.Range{rng(1, 0, 4)}, state.CommentRanges)
	assert.Equal(t, []lsp.Range{rng(2, 0, 8)}, state.ContentRanges)
	assert.Equal(t, []lsp.Range{rng(3, 0, 2)}, state.SemanticByCategory["noun"])

	// Updating one channel leaves the others alone.
	s.ApplyCommentRanges(docA, []lsp.Range{rng(5, 0, 1)})
	state = s.Get(docA)
	assert.Equal(t, []lsp.Range{rng(5, 0, 1)}, state.CommentRanges)
	assert.Equal(t, []lsp.Range{rng(2, 0, 8)}, state.ContentRanges)
	assert.True(t, state.HasSemantic())
}

func TestStoreLastWriteWins(t *testing.T) {
	s := NewStore()

	s.ApplyContentRanges(docA, []lsp.Range{rng(1, 0, 4), rng(2, 0, 4)})
	s.ApplyContentRanges(docA, []lsp.Range{rng(9, 0, 1)})

	state := s.Get(docA)
	assert.Equal(t, []lsp.Range{rng(9, 0, 1)}, state.ContentRanges,
		"a newer payload replaces the channel wholesale, no merging")
}

func TestStoreEmptyPayloadClearsChannel(t *testing.T) {
	s := NewStore()

	s.ApplyCommentRanges(docA, []lsp.Range{rng(1, 0, 4)})
	s.ApplyContentRanges(docA, []lsp.Range{rng(2, 0, 8)})

	s.ApplyCommentRanges(docA, nil)

	state := s.Get(docA)
	assert.Empty(t, state.CommentRanges)
	assert.Equal(t, []lsp.Range{rng(2, 0, 8)}, state.ContentRanges,
		"clearing one channel must not touch another")
}

func TestStoreSemanticAllOrNothing(t *testing.T) {
	s := NewStore()

	s.ApplySemanticTokens(docA, []lsp.SemanticToken{
		tok("noun", 1, 0, 2),
		tok("verb", 1, 3, 5),
		tok("noun", 2, 0, 2),
	})

	state := s.Get(docA)
	require.Len(t, state.SemanticByCategory, 2)
	assert.Len(t, state.SemanticByCategory["noun"], 2)
	assert.Len(t, state.SemanticByCategory["verb"], 1)

	// A new payload mentioning only one category still replaces everything.
	s.ApplySemanticTokens(docA, []lsp.SemanticToken{tok("particle", 3, 0, 1)})
	state = s.Get(docA)
	require.Len(t, state.SemanticByCategory, 1)
	assert.Contains(t, state.SemanticByCategory, "particle")

	// An empty payload clears every category at once.
	s.ApplySemanticTokens(docA, nil)
	assert.False(t, s.Get(docA).HasSemantic())
}

func TestStoreClearDocument(t *testing.T) {
	s := NewStore()

	s.ApplyCommentRanges(docA, []lsp.Range{rng(1, 0, 4)})
	s.ApplySemanticTokens(docA, []lsp.SemanticToken{tok("noun", 1, 0, 2)})
	s.ApplyContentRanges(docB, []lsp.Range{rng(1, 0, 4)})

	s.ClearDocument(docA)

	assert.True(t, s.Get(docA).IsEmpty())
	assert.False(t, s.Get(docB).IsEmpty(), "other documents are unaffected")
	assert.Equal(t, []lsp.DocumentURI{docB}, s.URIs())
}

func TestStoreReset(t *testing.T) {
	s := NewStore()
	s.ApplyCommentRanges(docA, []lsp.Range{rng(1, 0, 4)})
	s.ApplyContentRanges(docB, []lsp.Range{rng(1, 0, 4)})

	s.Reset()

	assert.Empty(t, s.URIs())
}

func TestStoreEmptyEntriesPruned(t *testing.T) {
	s := NewStore()

	s.ApplyCommentRanges(docA, []lsp.Range{rng(1, 0, 4)})
	s.ApplyCommentRanges(docA, nil)

	assert.Empty(t, s.URIs(), "a document with no channels left has no entry")

	// Clearing a channel that was never set is a no-op, not an entry.
	s.ApplyContentRanges(docB, nil)
	s.ApplySemanticTokens(docB, nil)
	assert.Empty(t, s.URIs())
}

func TestStoreSnapshotIsolation(t *testing.T) {
	s := NewStore()
	s.ApplyCommentRanges(docA, []lsp.Range{rng(1, 0, 4)})
	s.ApplySemanticTokens(docA, []lsp.SemanticToken{tok("noun", 1, 0, 2)})

	state := s.Get(docA)
	state.CommentRanges[0] = rng(99, 0, 1)
	state.SemanticByCategory["noun"][0] = rng(99, 0, 1)
	delete(state.SemanticByCategory, "noun")

	fresh := s.Get(docA)
	assert.Equal(t, []lsp.Range{rng(1, 0, 4)}, fresh.CommentRanges)
	assert.Equal(t, []lsp.Range{rng(1, 0, 2)}, fresh.SemanticByCategory["noun"])
}

func TestStoreUnknownCategoryKept(t *testing.T) {
	s := NewStore()
	s.ApplySemanticTokens(docA, []lsp.SemanticToken{tok("brand-new-pos", 1, 0, 2)})

	state := s.Get(docA)
	assert.Contains(t, state.SemanticByCategory, "brand-new-pos",
		"categories outside the legend are stored verbatim")
}
