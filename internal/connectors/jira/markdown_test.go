package jira

import (
	"strings"
	"testing"
)

func TestHTMLToMarkdown(t *testing.T) {
	got, err := htmlToMarkdown(`<p>Fixed the <b>login</b> flow. See <a href="https://example.com/docs">the docs</a>.</p>`)
	if err != nil {
		t.Fatalf("htmlToMarkdown failed: %v", err)
	}
	if !strings.Contains(got, "**login**") {
		t.Errorf("bold not converted: %q", got)
	}
	if !strings.Contains(got, "[the docs](https://example.com/docs)") {
		t.Errorf("link not converted: %q", got)
	}
}

func TestHTMLToMarkdown_StripsJiraChrome(t *testing.T) {
	got, err := htmlToMarkdown(`<p>Real content.</p><span class="image-wrap"><img src="x.png"/></span><span class="aui-icon">icon</span>`)
	if err != nil {
		t.Fatalf("htmlToMarkdown failed: %v", err)
	}
	if !strings.Contains(got, "Real content.") {
		t.Errorf("content lost: %q", got)
	}
	if strings.Contains(got, "x.png") || strings.Contains(got, "icon") {
		t.Errorf("UI chrome survived: %q", got)
	}
}

func TestHTMLToMarkdown_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t"} {
		got, err := htmlToMarkdown(input)
		if err != nil {
			t.Fatalf("htmlToMarkdown failed: %v", err)
		}
		if got != "" {
			t.Errorf("expected empty output for %q, got %q", input, got)
		}
	}
}

func TestTruncateBody(t *testing.T) {
	long := strings.Repeat("x", 600)
	got := truncateBody([]byte(long))
	if len(got) >= 600 {
		t.Errorf("body not truncated, len %d", len(got))
	}

	short := "unauthorized"
	if truncateBody([]byte(short)) != short {
		t.Error("short body must pass through unchanged")
	}
}
