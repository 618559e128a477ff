package linkpreview

import (
	"regexp"
	"strings"
	"sync"
)

// Fallback chains, tried in order.
var (
	titleNames       = []string{"og:title", "twitter:title"}
	descriptionNames = []string{"og:description", "twitter:description", "description"}
	imageNames       = []string{"og:image", "twitter:image", "twitter:image:src"}
	siteNameNames    = []string{"og:site_name"}
)

var titleElementPattern = regexp.MustCompile(`(?is)<title(?:\s[^>]*)?>([^<]+)</title>`)

// metaPatterns holds the compiled patterns for one meta name: the key
// attribute before content, and content before the key attribute.
type metaPatterns [2]*regexp.Regexp

var metaPatternCache sync.Map // name -> metaPatterns

const contentValue = `\scontent\s*=\s*(?:"([^"]*)"|'([^']*)')`

func patternsFor(name string) metaPatterns {
	if p, ok := metaPatternCache.Load(name); ok {
		return p.(metaPatterns)
	}

	key := `\s(?:property|name)\s*=\s*["']` + regexp.QuoteMeta(name) + `["']`
	p := metaPatterns{
		regexp.MustCompile(`(?is)<meta(?:\s[^>]*?)?` + key + `[^>]*?` + contentValue),
		regexp.MustCompile(`(?is)<meta(?:\s[^>]*?)?` + contentValue + `[^>]*?` + key),
	}
	actual, _ := metaPatternCache.LoadOrStore(name, p)
	return actual.(metaPatterns)
}

func init() {
	for _, chain := range [][]string{titleNames, descriptionNames, imageNames, siteNameNames} {
		for _, name := range chain {
			patternsFor(name)
		}
	}
}

// ExtractField returns the content of the first <meta> tag whose property or
// name attribute matches one of names, tried in order. The value is trimmed
// and entity-decoded; blank values do not count as a match. Returns nil when
// nothing matches.
func ExtractField(html string, names ...string) *string {
	for _, name := range names {
		for _, re := range patternsFor(name) {
			m := re.FindStringSubmatch(html)
			if m == nil {
				continue
			}
			if v := cleanValue(m[1] + m[2]); v != nil {
				return v
			}
		}
	}
	return nil
}

// Extract pulls title, description, image and site name out of an HTML document.
func Extract(html string) Metadata {
	title := ExtractField(html, titleNames...)
	if title == nil {
		title = extractTitleElement(html)
	}

	return Metadata{
		Title:       title,
		Description: ExtractField(html, descriptionNames...),
		Image:       ExtractField(html, imageNames...),
		SiteName:    ExtractField(html, siteNameNames...),
	}
}

func extractTitleElement(html string) *string {
	m := titleElementPattern.FindStringSubmatch(html)
	if m == nil {
		return nil
	}
	return cleanValue(m[1])
}

func cleanValue(raw string) *string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	v = DecodeEntities(v)
	return &v
}
