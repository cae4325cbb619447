package highlight

import (
	"sync"

	"github.com/gdamore/tcell/v2"
)

// categoryPalette maps the server's part-of-speech vocabulary to terminal
// styles. Categories outside the palette render with the fallback style.
var categoryPalette = map[string]tcell.Style{
	"noun":        tcell.StyleDefault.Foreground(tcell.NewRGBColor(140, 190, 255)),
	"verb":        tcell.StyleDefault.Foreground(tcell.NewRGBColor(150, 220, 140)),
	"adjective":   tcell.StyleDefault.Foreground(tcell.NewRGBColor(240, 180, 100)),
	"adverb":      tcell.StyleDefault.Foreground(tcell.NewRGBColor(120, 210, 200)),
	"particle":    tcell.StyleDefault.Foreground(tcell.NewRGBColor(150, 150, 160)),
	"aux":         tcell.StyleDefault.Foreground(tcell.NewRGBColor(130, 130, 140)),
	"conjunction": tcell.StyleDefault.Foreground(tcell.NewRGBColor(190, 140, 230)),
	"symbol":      tcell.StyleDefault.Foreground(tcell.NewRGBColor(110, 110, 110)),
	"interj":      tcell.StyleDefault.Foreground(tcell.NewRGBColor(230, 130, 190)),
	"prefix":      tcell.StyleDefault.Foreground(tcell.NewRGBColor(130, 200, 230)),
	"suffix":      tcell.StyleDefault.Foreground(tcell.NewRGBColor(130, 200, 230)),
	"unknown":     tcell.StyleDefault,
}

// StyleCache materializes render styles lazily and memoizes them for the
// lifetime of one session. A category's style is created at most once and
// never recreated while the session is live; Dispose releases everything at
// session end. The set of categories ever materialized is what the
// reconciler clears when a category disappears from a document's state.
type StyleCache struct {
	mu       sync.Mutex
	byCat    map[string]tcell.Style
	comment  tcell.Style
	content  tcell.Style
	fallback tcell.Style
	disposed bool
}

// NewStyleCache creates an empty cache.
func NewStyleCache() *StyleCache {
	return &StyleCache{
		byCat:    make(map[string]tcell.Style),
		comment:  tcell.StyleDefault.Underline(true).Foreground(tcell.NewRGBColor(180, 220, 160)),
		content:  tcell.StyleDefault.Background(tcell.NewRGBColor(45, 45, 60)),
		fallback: tcell.StyleDefault.Underline(true),
	}
}

// ForCategory returns the memoized style for a semantic category,
// materializing it on first use. Unknown categories get the fallback style.
func (c *StyleCache) ForCategory(category string) tcell.Style {
	c.mu.Lock()
	defer c.mu.Unlock()

	if style, ok := c.byCat[category]; ok {
		return style
	}
	style, ok := categoryPalette[category]
	if !ok {
		style = c.fallback
	}
	if !c.disposed {
		c.byCat[category] = style
	}
	return style
}

// Comment returns the style for the comment channel.
func (c *StyleCache) Comment() tcell.Style {
	return c.comment
}

// Content returns the style for the content channel.
func (c *StyleCache) Content() tcell.Style {
	return c.content
}

// Categories returns every semantic category materialized so far this
// session.
func (c *StyleCache) Categories() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	cats := make([]string, 0, len(c.byCat))
	for cat := range c.byCat {
		cats = append(cats, cat)
	}
	return cats
}

// Dispose releases all materialized styles. The cache must not be used for
// rendering after Dispose; a new session creates a new cache.
func (c *StyleCache) Dispose() {
	c.mu.Lock()
	c.byCat = make(map[string]tcell.Style)
	c.disposed = true
	c.mu.Unlock()
}

// Disposed reports whether Dispose has been called.
func (c *StyleCache) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}
