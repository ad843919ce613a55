// Package extract pulls readable text out of fetched HTML for the
// insight pipeline.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// nonContentSelectors lists elements to strip before extracting body
// text.
const nonContentSelectors = "script, style, noscript, nav, header, footer, aside"

// Extractor turns raw HTML into normalized plain text.
type Extractor struct {
	maxChars int
}

// New creates an Extractor. maxChars caps the returned text length in
// runes; zero or negative means no cap.
func New(maxChars int) *Extractor {
	return &Extractor{maxChars: maxChars}
}

// Text extracts the main textual content of an HTML document. It
// prefers <article> or <main> regions and falls back to <body> with
// non-content elements stripped. Whitespace runs are collapsed.
func (e *Extractor) Text(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	text := regionText(doc)
	text = strings.Join(strings.Fields(text), " ")
	return e.truncate(text), nil
}

func regionText(doc *goquery.Document) string {
	for _, selector := range []string{"article", "main"} {
		region := doc.Find(selector).First()
		if region.Length() > 0 {
			region.Find(nonContentSelectors).Remove()
			return region.Text()
		}
	}

	body := doc.Find("body").First()
	if body.Length() > 0 {
		body.Find(nonContentSelectors).Remove()
		return body.Text()
	}
	return ""
}

func (e *Extractor) truncate(text string) string {
	if e.maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= e.maxChars {
		return text
	}
	return string(runes[:e.maxChars])
}
