package markdown

import (
	"strings"
	"testing"
)

func TestRenderEmpty(t *testing.T) {
	if got := Render(""); got != "" {
		t.Errorf("Render(\"\") = %q, want \"\"", got)
	}
}

func TestRenderBasicMarkdown(t *testing.T) {
	html := Render("**Living Room Light** is *on*")
	if !strings.Contains(html, "<strong>Living Room Light</strong>") {
		t.Errorf("Expected <strong>, got: %s", html)
	}
	if !strings.Contains(html, "<em>on</em>") {
		t.Errorf("Expected <em>on</em>, got: %s", html)
	}
}

func TestRenderGFMTable(t *testing.T) {
	html := Render("| Device | State |\n|---|---|\n| Front Door | locked |")
	if !strings.Contains(html, "<table>") {
		t.Errorf("Expected table HTML, got: %s", html)
	}
}

func TestRenderEscapesRawHTML(t *testing.T) {
	html := Render("<script>alert(1)</script>")
	if strings.Contains(html, "<script>") {
		t.Errorf("Raw HTML must not pass through, got: %s", html)
	}
}

func TestRenderJSONIndentsDocument(t *testing.T) {
	html := RenderJSON(`{"devices":{"front_door":{"state":"locked"}}}`)
	if !strings.Contains(html, "<pre") {
		t.Errorf("Expected <pre> block, got: %s", html)
	}
	if !strings.Contains(html, "front_door") || strings.Count(html, "\n") < 5 {
		t.Errorf("Expected indented document, got: %s", html)
	}
}

func TestRenderJSONKeepsInvalidInput(t *testing.T) {
	html := RenderJSON("offline")
	if !strings.Contains(html, "offline") {
		t.Errorf("Expected raw text in block, got: %s", html)
	}
}

func TestRendererCustomStyle(t *testing.T) {
	r := NewRenderer("github")
	html := r.Render("```go\nfunc main() {}\n```")
	if !strings.Contains(html, "<pre") {
		t.Errorf("Expected highlighted block, got: %s", html)
	}
	if NewRenderer("").Render("plain") == "" {
		t.Error("Empty style should fall back to the default")
	}
}

func TestRenderExternalLinks(t *testing.T) {
	html := Render("[docs](https://modelcontextprotocol.io)")
	if !strings.Contains(html, `target="_blank"`) {
		t.Errorf("Expected target=_blank on external link, got: %s", html)
	}
	internal := Render("[status](/api/status)")
	if strings.Contains(internal, `target="_blank"`) {
		t.Errorf("Internal link should NOT have target=_blank, got: %s", internal)
	}
}

func TestRenderHardWraps(t *testing.T) {
	html := Render("🎬 Scene 'evening' activated!\n✅ Light: on at 70%")
	if !strings.Contains(html, "<br") {
		t.Errorf("Expected hard wrap <br>, got: %s", html)
	}
}
