package casefile

import "regexp"

// placeholderPattern matches #{name} variable expressions in string
// attributes of dynamic task specifications.
var placeholderPattern = regexp.MustCompile(`#\{([^{}]+)\}`)

// ResolvePlaceholders substitutes #{name} expressions in s with the rendered
// value from the file snapshot. Unknown names resolve to the empty string so
// that resolution is total; resolution happens once, against the snapshot
// passed in, and is never re-evaluated later.
func ResolvePlaceholders(s string, file *File) string {
	if s == "" || !placeholderPattern.MatchString(s) {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := file.Get(name)
		if !ok {
			return ""
		}
		return value.Render()
	})
}

// ContainsPlaceholder reports whether s holds at least one #{name} expression.
func ContainsPlaceholder(s string) bool {
	return placeholderPattern.MatchString(s)
}
