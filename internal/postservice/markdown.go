package postservice

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderContent converts post markdown to HTML. Script tags are stripped first and raw HTML is
// never passed through.
func RenderContent(content string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(sanitizeMarkdown(content)), &buf); err != nil {
		return "", err
	}

	return buf.String(), nil
}
