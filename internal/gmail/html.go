package gmail

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// HTMLExtractor turns an HTML body into readable plain text. The default
// implementation walks the DOM; hosts may inject their own.
type HTMLExtractor interface {
	Text(htmlBody string) (string, error)
}

// domExtractor extracts visible text from an HTML document, skipping
// script and style subtrees.
type domExtractor struct{}

// NewHTMLExtractor returns the default DOM-walking extractor.
func NewHTMLExtractor() HTMLExtractor {
	return domExtractor{}
}

func (domExtractor) Text(htmlBody string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "head":
				return
			case "br", "p", "div", "tr", "li":
				b.WriteByte('\n')
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return collapseWhitespace(b.String()), nil
}

// collapseWhitespace normalizes runs of whitespace into single spaces
// while preserving line breaks.
func collapseWhitespace(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteByte('\n')
			lastSpace = true
		case r == ' ' || r == '\t' || r == '\r':
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)

var domainPattern = regexp.MustCompile(`https?://([^\s/"'<>)\]]+)`)

// HarvestLinks collects the unique URLs and unique domains found in the
// given body texts.
func HarvestLinks(bodies ...string) Links {
	urlSet := map[string]struct{}{}
	domainSet := map[string]struct{}{}
	for _, body := range bodies {
		for _, u := range urlPattern.FindAllString(body, -1) {
			urlSet[u] = struct{}{}
		}
		for _, m := range domainPattern.FindAllStringSubmatch(body, -1) {
			domainSet[m[1]] = struct{}{}
		}
	}
	links := Links{}
	for u := range urlSet {
		links.URLs = append(links.URLs, u)
	}
	for d := range domainSet {
		links.Domains = append(links.Domains, d)
	}
	sort.Strings(links.URLs)
	sort.Strings(links.Domains)
	return links
}
