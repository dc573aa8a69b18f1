// internal/shell/builder.go
//
// Application-shell document builder.
//
// Context
// -------
// Human browsers (and every request under an admin prefix) receive a
// lightweight shell document; the client-side storefront application boots
// from it and takes over routing.  The Builder collects <head> material —
// title, meta, link, and script tags with deduplication — and Render wraps
// it into a complete HTML document around the application mount point.
//
// The same builder backs the minimal 404 and 503 documents so every
// outward-facing error is well-formed HTML, never a raw stack trace.
package shell

import (
	"html/template"
	"strings"
	"sync"
)

// Builder collects head tags for one response.  Typical use is one
// goroutine per request; the mutex covers incidental sharing.
type Builder struct {
	mu sync.Mutex

	title   string
	metas   []string
	links   []string
	scripts []string

	seen map[string]struct{}
}

func New() *Builder {
	b := &Builder{seen: make(map[string]struct{})}
	b.Meta(`<meta charset="utf-8">`)
	b.Meta(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	return b
}

// SetTitle overrides the document <title>.  The last caller wins.
func (b *Builder) SetTitle(t string) {
	b.mu.Lock()
	b.title = t
	b.mu.Unlock()
}

// Meta, Link, and Script append pre-formed tags, dropping duplicates.
func (b *Builder) Meta(tag string)   { b.add("meta:"+tag, &b.metas, tag) }
func (b *Builder) Link(tag string)   { b.add("link:"+tag, &b.links, tag) }
func (b *Builder) Script(tag string) { b.add("script:"+tag, &b.scripts, tag) }

func (b *Builder) add(key string, tgt *[]string, tag string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.seen[key]; dup {
		return
	}
	b.seen[key] = struct{}{}
	*tgt = append(*tgt, tag)
}

// Render produces the complete shell document.  body is trusted, pre-formed
// markup placed inside the application mount point (empty for the normal
// shell; a short message for error documents).
func (b *Builder) Render(body template.HTML) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("<!doctype html>\n<html lang=\"en\">\n<head>\n")
	if b.title != "" {
		sb.WriteString("<title>")
		sb.WriteString(template.HTMLEscapeString(b.title))
		sb.WriteString("</title>\n")
	}
	for _, t := range b.metas {
		sb.WriteString(t)
		sb.WriteByte('\n')
	}
	for _, t := range b.links {
		sb.WriteString(t)
		sb.WriteByte('\n')
	}
	sb.WriteString("</head>\n<body>\n<div id=\"app\">")
	sb.WriteString(string(body))
	sb.WriteString("</div>\n")
	for _, t := range b.scripts {
		sb.WriteString(t)
		sb.WriteByte('\n')
	}
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

//
// Canned documents
//

// App returns the standard shell that boots the storefront client.
func App(title, bundleURL string) string {
	b := New()
	b.SetTitle(title)
	if bundleURL != "" {
		b.Script(`<script type="module" src="` +
			template.HTMLEscapeString(bundleURL) + `"></script>`)
	}
	return b.Render("")
}

// NotFound returns the minimal 404 document.
func NotFound() string {
	b := New()
	b.SetTitle("Page not found")
	return b.Render(template.HTML("<h1>404</h1><p>This page could not be found.</p>"))
}

// Unavailable returns the minimal 503 document served when generation
// fails; fetchers should retry later rather than index an error page.
func Unavailable() string {
	b := New()
	b.SetTitle("Temporarily unavailable")
	return b.Render(template.HTML("<h1>503</h1><p>This page is temporarily unavailable. Please try again shortly.</p>"))
}

// Error returns the generic 500 document.
func Error() string {
	b := New()
	b.SetTitle("Something went wrong")
	return b.Render(template.HTML("<h1>500</h1><p>Something went wrong serving this page.</p>"))
}
