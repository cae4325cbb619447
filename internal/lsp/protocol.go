package lsp

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"unicode/utf16"
)

// DocumentURI identifies an open document. It is opaque to this package and
// keys all per-document state.
type DocumentURI string

// Position is a zero-based document position. Character offsets count UTF-16
// code units, matching the host editor convention.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open interval of document text with Start <= End.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// IsEmpty reports whether the range covers no text.
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// Before reports whether p precedes q in document order.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Character < q.Character
}

// SemanticToken is one analyzed span from the semantic highlight stream.
// Type names a part of speech from TokenTypes; unknown names are legal on
// the wire and fall back to the default render style. Modifiers is a bitmask
// over TokenModifiers.
type SemanticToken struct {
	Range     Range  `json:"range"`
	Type      string `json:"type"`
	Modifiers int    `json:"modifiers"`
}

// Notification methods pushed by the MoZuku server.
const (
	MethodCommentHighlights  = "mozuku/commentHighlights"
	MethodContentHighlights  = "mozuku/contentHighlights"
	MethodSemanticHighlights = "mozuku/semanticHighlights"
)

// TokenTypes is the part-of-speech vocabulary the server legend declares.
// The render palette recognizes exactly these; anything else gets the
// default style.
var TokenTypes = []string{
	"noun",
	"verb",
	"adjective",
	"adverb",
	"particle",
	"aux",
	"conjunction",
	"symbol",
	"interj",
	"prefix",
	"suffix",
	"unknown",
}

// Token modifier bits, in legend order.
const (
	ModifierProper = 1 << iota
	ModifierNumeric
	ModifierKana
	ModifierKanji
)

// TokenModifiers is the modifier legend, in bit order.
var TokenModifiers = []string{"proper", "numeric", "kana", "kanji"}

// HighlightRangesParams is the payload of commentHighlights and
// contentHighlights notifications. A missing or empty Ranges field clears
// that channel for the document.
type HighlightRangesParams struct {
	URI    DocumentURI `json:"uri"`
	Ranges []Range     `json:"ranges"`
}

// SemanticHighlightsParams is the payload of semanticHighlights
// notifications. A missing or empty Tokens field clears the entire semantic
// picture for the document.
type SemanticHighlightsParams struct {
	URI    DocumentURI     `json:"uri"`
	Tokens []SemanticToken `json:"tokens"`
}

// --- Initialize handshake ---

// InitializeParams is the initialize request payload. Only the fields the
// MoZuku server reads are carried.
type InitializeParams struct {
	ProcessID             int         `json:"processId"`
	RootURI               DocumentURI `json:"rootUri,omitempty"`
	Capabilities          any         `json:"capabilities"`
	InitializationOptions any         `json:"initializationOptions,omitempty"`
}

// InitializeResult is the initialize response payload.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// ServerCapabilities carries the subset of server capabilities this client
// inspects.
type ServerCapabilities struct {
	TextDocumentSync       any `json:"textDocumentSync,omitempty"`
	SemanticTokensProvider any `json:"semanticTokensProvider,omitempty"`
	HoverProvider          any `json:"hoverProvider,omitempty"`
}

// ServerInfo identifies the server implementation.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// --- Document synchronization ---

// TextDocumentItem describes a document being opened.
type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}

// TextDocumentIdentifier names a synced document.
type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

// VersionedTextDocumentIdentifier names a synced document at a version.
type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int `json:"version"`
}

// DidOpenTextDocumentParams is the textDocument/didOpen payload.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidCloseTextDocumentParams is the textDocument/didClose payload.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// TextDocumentContentChangeEvent carries one full-text replacement. The
// client syncs whole documents; incremental edits are collapsed by the
// caller before they reach the session.
type TextDocumentContentChangeEvent struct {
	Text string `json:"text"`
}

// DidChangeTextDocumentParams is the textDocument/didChange payload.
type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// DidSaveTextDocumentParams is the textDocument/didSave payload.
type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// --- Document selector ---

// recognizedLanguageIDs are the content categories the client activates for:
// prose and markup categories plus the languages the server can extract
// comments from.
var recognizedLanguageIDs = map[string]bool{
	"japanese":        true,
	"plaintext":       true,
	"markdown":        true,
	"latex":           true,
	"html":            true,
	"css":             true,
	"python":          true,
	"javascript":      true,
	"javascriptreact": true,
	"typescript":      true,
	"typescriptreact": true,
	"c":               true,
	"cpp":             true,
	"rust":            true,
	"go":              true,
	"java":            true,
}

// suffixPatterns match Japanese prose files regardless of language ID.
var suffixPatterns = []string{"*.ja.txt", "*.ja.md"}

// DocumentMatches reports whether the client should activate for a document
// with the given language ID and file path.
func DocumentMatches(languageID, path string) bool {
	if recognizedLanguageIDs[languageID] {
		return true
	}
	base := strings.ToLower(filepath.Base(path))
	for _, pattern := range suffixPatterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// RecognizedLanguageIDs returns the activation language IDs, for callers
// that register document selectors with the host.
func RecognizedLanguageIDs() []string {
	ids := make([]string, 0, len(recognizedLanguageIDs))
	for id := range recognizedLanguageIDs {
		ids = append(ids, id)
	}
	return ids
}

// --- URI helpers ---

// FilePathToURI converts a file path to a file:// URI.
func FilePathToURI(path string) DocumentURI {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	abs = filepath.ToSlash(abs)
	if runtime.GOOS == "windows" && !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	u := url.URL{Scheme: "file", Path: abs}
	return DocumentURI(u.String())
}

// URIToFilePath converts a file:// URI back to a file path. Non-file URIs
// are returned unchanged.
func URIToFilePath(uri DocumentURI) string {
	u, err := url.Parse(string(uri))
	if err != nil || u.Scheme != "file" {
		return string(uri)
	}
	path := u.Path
	if runtime.GOOS == "windows" {
		path = strings.TrimPrefix(path, "/")
	}
	return filepath.FromSlash(path)
}

// UTF16Len returns the length of s in UTF-16 code units. Highlight ranges
// from the server count columns this way.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += len(utf16.Encode([]rune{r}))
	}
	return n
}
