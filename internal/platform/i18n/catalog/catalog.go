// Package catalog loads locale message catalogs embedded as YAML files.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the canonical source locale for catalogs.
const BaseLocale = "en-US"

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// LocaleCatalog stores all messages for one locale, grouped by namespace.
type LocaleCatalog struct {
	Locale     string
	Namespaces map[string]map[string]string
}

// Bundle contains all locale catalogs loaded from the embedded filesystem.
type Bundle struct {
	locales []string
	tags    []language.Tag
	ordered []language.Tag
	matcher language.Matcher
	byTag   map[language.Tag]*LocaleCatalog
	byName  map[string]*LocaleCatalog
}

//go:embed locales/*/*.yaml
var embeddedCatalogFS embed.FS

var defaultBundle = mustLoadEmbedded()

// Default returns the process-wide embedded catalog bundle.
func Default() *Bundle {
	return defaultBundle
}

func mustLoadEmbedded() *Bundle {
	bundle, err := LoadFromFS(embeddedCatalogFS)
	if err != nil {
		panic(fmt.Sprintf("load embedded locale catalogs: %v", err))
	}
	return bundle
}

// LoadFromFS loads catalog files matching locales/<locale>/<namespace>.yaml.
func LoadFromFS(catalogFS fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(catalogFS, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	bundle := &Bundle{
		byTag:  map[language.Tag]*LocaleCatalog{},
		byName: map[string]*LocaleCatalog{},
	}
	for _, path := range paths {
		data, err := fs.ReadFile(catalogFS, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var parsed catalogFile
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		if err := bundle.addFile(path, parsed); err != nil {
			return nil, err
		}
	}

	if _, ok := bundle.byName[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}

	// The matcher prefers the base locale when nothing else fits.
	ordered := dedupeTags(append([]language.Tag{language.MustParse(BaseLocale)}, bundle.tags...))
	bundle.ordered = ordered
	bundle.matcher = language.NewMatcher(ordered)
	return bundle, nil
}

func (b *Bundle) addFile(path string, file catalogFile) error {
	localeFromPath := filepath.Base(filepath.Dir(path))
	namespaceFromPath := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	locale := strings.TrimSpace(file.Locale)
	if locale == "" {
		return fmt.Errorf("catalog %s: locale is required", path)
	}
	if locale != localeFromPath {
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", path, locale, localeFromPath)
	}
	namespace := strings.TrimSpace(file.Namespace)
	if namespace != namespaceFromPath {
		return fmt.Errorf("catalog %s: namespace %q must match filename namespace %q", path, namespace, namespaceFromPath)
	}
	if len(file.Messages) == 0 {
		return fmt.Errorf("catalog %s: messages map is required", path)
	}

	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("catalog %s: parse locale: %w", path, err)
	}

	localeCatalog, ok := b.byName[locale]
	if !ok {
		localeCatalog = &LocaleCatalog{
			Locale:     locale,
			Namespaces: map[string]map[string]string{},
		}
		b.byName[locale] = localeCatalog
		b.byTag[tag] = localeCatalog
		b.locales = append(b.locales, locale)
		b.tags = append(b.tags, tag)
	}
	if _, exists := localeCatalog.Namespaces[namespace]; exists {
		return fmt.Errorf("catalog %s: namespace %q already defined for locale %q", path, namespace, locale)
	}

	messages := make(map[string]string, len(file.Messages))
	for key, value := range file.Messages {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", path)
		}
		messages[trimmed] = value
	}
	localeCatalog.Namespaces[namespace] = messages
	return nil
}

// Locales returns all available locale identifiers.
func (b *Bundle) Locales() []string {
	if b == nil {
		return nil
	}
	out := append([]string(nil), b.locales...)
	sort.Strings(out)
	return out
}

// NamespaceMessages resolves the requested locale against available catalogs
// and returns the matched locale plus its messages for the namespace. Unknown
// locales fall back to the base locale.
func (b *Bundle) NamespaceMessages(locale, namespace string) (string, map[string]string) {
	if b == nil {
		return BaseLocale, nil
	}
	resolved := b.byName[BaseLocale]
	if tag, err := language.Parse(strings.TrimSpace(locale)); err == nil {
		// Match reports the index into the ordered tag list; the returned tag
		// may carry request extensions, so index back into our own tags.
		_, idx, conf := b.matcher.Match(tag)
		if conf > language.No && idx >= 0 && idx < len(b.ordered) {
			if cat, ok := b.byTag[b.ordered[idx]]; ok {
				resolved = cat
			}
		}
	}
	if resolved == nil {
		return BaseLocale, nil
	}
	return resolved.Locale, resolved.Namespaces[namespace]
}

func dedupeTags(tags []language.Tag) []language.Tag {
	seen := make(map[language.Tag]struct{}, len(tags))
	out := make([]language.Tag, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
