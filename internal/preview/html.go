package preview

import (
	"bytes"
	"embed"
	"html/template"

	"cv-backend/internal/document"
)

//go:embed templates/cv.html.tmpl
var templateFS embed.FS

var page = template.Must(template.New("cv.html.tmpl").ParseFS(templateFS, "templates/cv.html.tmpl"))

type pageData struct {
	Title string
	Tree  Node
}

// HTML realizes the display tree of doc as a standalone printable page.
func HTML(doc document.CVDocument) (string, error) {
	title := "CV"
	if name := doc.PersonalInfo.FullName; name != "" {
		title = name + " - CV"
	}
	var buf bytes.Buffer
	if err := page.Execute(&buf, pageData{Title: title, Tree: Render(doc)}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
