package jira

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

var converter = md.NewConverter("", true, nil)

// htmlToMarkdown converts a rendered Jira description to markdown. Jira UI
// chrome (image wrappers, macro panels) is stripped first so the markdown
// holds only the author's content.
func htmlToMarkdown(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("span.image-wrap, .aui-icon, script, style").Remove()

	cleaned, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(cleaned) == "" {
		cleaned = html
	}

	markdown, err := converter.ConvertString(cleaned)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(markdown), nil
}
