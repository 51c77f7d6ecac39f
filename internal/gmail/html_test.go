package gmail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLTextSkipsInvisibleContent(t *testing.T) {
	const doc = `<html><head><title>ignored</title><style>p{color:red}</style></head>
<body><p>Visible   text</p><script>alert(1)</script><div>More text</div></body></html>`

	text, err := NewHTMLExtractor().Text(doc)
	require.NoError(t, err)
	assert.Equal(t, "Visible text\nMore text", text)
}

func TestHTMLTextTableAndList(t *testing.T) {
	const doc = `<ul><li>one</li><li>two</li></ul><table><tr><td>a</td><td>b</td></tr></table>`

	text, err := NewHTMLExtractor().Text(doc)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nab", text)
}

func TestHarvestLinksDeduplicatesAndSorts(t *testing.T) {
	links := HarvestLinks(
		"go to https://example.com/a then https://example.com/a again",
		`<a href="http://other.example/b">b</a>`,
	)
	assert.Equal(t, []string{"http://other.example/b", "https://example.com/a"}, links.URLs)
	assert.Equal(t, []string{"example.com", "other.example"}, links.Domains)
}

func TestHarvestLinksEmptyBody(t *testing.T) {
	links := HarvestLinks("no links here")
	assert.Empty(t, links.URLs)
	assert.Empty(t, links.Domains)
}
