// Package highlight maintains render-ready highlight state for documents
// analyzed by the MoZuku server and reconciles it onto visible views.
//
// Three independently-sourced channels exist per document: comment
// (natural-language spans inside code comments), content (spans of Japanese
// prose), and semantic (part-of-speech tokens, subdivided by category). The
// Store is the single source of truth for what should currently be drawn;
// the Reconciler maps stored state onto whatever views the host currently
// shows, and the Coordinator drives both from editor lifecycle events and
// incoming server notifications.
//
// Channel precedence: semantic, when present for a document, fully
// suppresses content styling, being the richer annotation of the same
// text. Comment highlighting is structurally distinct and always renders
// alongside whichever of the other two is active.
//
// Render styles are memoized per semantic category for the lifetime of a
// session and disposed with the StyleCache at session end.
package highlight
