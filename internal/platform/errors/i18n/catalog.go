// Package i18n renders localized error messages from the embedded catalogs.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	i18ncatalog "github.com/mdproctor/casemgmt/internal/platform/i18n/catalog"
)

// Code is a machine-readable error code (string form to avoid an import cycle
// with the errors package).
type Code = string

// message is a single catalog entry. The template is parsed once at
// catalog construction; raw keeps the source text as a fallback when
// parsing or execution fails.
type message struct {
	raw  string
	tmpl *template.Template
}

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]message
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{}
)

// GetCatalog returns the error-message catalog for the given locale, falling
// back to the base locale when the requested one is unknown.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = i18ncatalog.BaseLocale
	}

	if c, ok := lookupCatalog(requested); ok {
		return c
	}

	resolvedLocale, messages := i18ncatalog.Default().NamespaceMessages(requested, "errors")
	if c, ok := lookupCatalog(resolvedLocale); ok {
		return c
	}
	return storeCatalogIfAbsent(resolvedLocale, NewCatalog(resolvedLocale, messages))
}

// NewCatalog creates a catalog with the given locale and messages.
func NewCatalog(locale string, templates map[Code]string) *Catalog {
	messages := make(map[Code]message, len(templates))
	for code, raw := range templates {
		msg := message{raw: raw}
		// missingkey=zero renders absent metadata keys as the map's zero
		// value, the empty string, instead of "<no value>".
		if t, err := template.New(code).Option("missingkey=zero").Parse(raw); err == nil {
			msg.tmpl = t
		}
		messages[code] = msg
	}
	return &Catalog{locale: locale, messages: messages}
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template for code with the given metadata.
// Unknown codes render as the code itself; a template that fails to
// execute renders as its source text. Missing metadata keys render
// empty, so output stays consistent with nil metadata.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	msg, ok := c.messages[code]
	if !ok {
		return code
	}
	if msg.tmpl == nil {
		return msg.raw
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	var buf bytes.Buffer
	if err := msg.tmpl.Execute(&buf, metadata); err != nil {
		return msg.raw
	}
	return buf.String()
}

func lookupCatalog(locale string) (*Catalog, bool) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	cat, ok := catalogs[locale]
	return cat, ok
}

func storeCatalogIfAbsent(locale string, candidate *Catalog) *Catalog {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	if existing, ok := catalogs[locale]; ok {
		return existing
	}
	catalogs[locale] = candidate
	return candidate
}
