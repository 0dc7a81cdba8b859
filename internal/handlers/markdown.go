package handlers

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// answerMarkdown renders answers with GitHub flavoured tables and lists.
// Raw HTML in model output is not passed through.
var answerMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// RenderMarkdown converts a markdown answer to HTML
func RenderMarkdown(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := answerMarkdown.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
