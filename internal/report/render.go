package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
)

//go:embed templates/report.html
var templateFS embed.FS

var reportTemplate = template.Must(template.New("report.html").
	Funcs(template.FuncMap{"join": strings.Join}).
	ParseFS(templateFS, "templates/report.html"))

// Render writes the report HTML for the view.
func Render(w io.Writer, view View) error {
	if err := reportTemplate.Execute(w, view); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// RenderString renders the report into memory.
func RenderString(view View) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
