package assist

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// htmlShell wraps the rendered minutes into a standalone document.
const htmlShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s</body>
</html>
`

var minutesMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ExportMinutes writes markdown to <dir>/<base>_minutes.md and its HTML
// rendering to <dir>/<base>_minutes.html, returning both paths.
func ExportMinutes(dir, base, markdown string) (mdPath, htmlPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("assist: export minutes: %w", err)
	}

	var body bytes.Buffer
	if err := minutesMarkdown.Convert([]byte(markdown), &body); err != nil {
		return "", "", fmt.Errorf("assist: export minutes: render html: %w", err)
	}

	mdPath = filepath.Join(dir, base+"_minutes.md")
	htmlPath = filepath.Join(dir, base+"_minutes.html")
	if err := os.WriteFile(mdPath, []byte(markdown), 0o644); err != nil {
		return "", "", fmt.Errorf("assist: export minutes: %w", err)
	}
	doc := fmt.Sprintf(htmlShell, html.EscapeString(base+" minutes"), body.String())
	if err := os.WriteFile(htmlPath, []byte(doc), 0o644); err != nil {
		return "", "", fmt.Errorf("assist: export minutes: %w", err)
	}
	return mdPath, htmlPath, nil
}
