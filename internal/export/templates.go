package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}
	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(reportTemplateHTML))
}

// TemplateData holds data for citation report rendering
type TemplateData struct {
	FormName     string
	TemplateName string
	Creator      string
	GeneratedAt  time.Time
	Questions    []TemplateQuestion
}

// TemplateQuestion holds one question block for the report
type TemplateQuestion struct {
	Prefix    string
	Text      string
	Answer    string
	Citations []ReportCitation
}

// RenderReportHTML renders the citation report template with provided data
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reportTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.FormName}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .question { margin: 1.5rem 0; }
    .question h3 { margin-bottom: 0.25rem; }
    .answer { margin: 0.5rem 0 0.75rem; }
    .citation { background: #f5f5f5; padding: 0.75rem 1rem; margin: 0.5rem 0; border-left: 3px solid #333; }
    .citation .source { color: #666; font-size: 0.85em; }
    .review { font-weight: bold; }
    .review.rejected { color: #a33; }
    .review.accepted { color: #373; }
  </style>
</head>
<body>
  <h1>{{.FormName}}</h1>
  <div class="meta">{{.TemplateName}} | {{.Creator}} | {{.GeneratedAt.Format "Jan 2, 2006"}}</div>
  {{range .Questions}}
  <div class="question">
    <h3>{{.Prefix}} {{.Text}}</h3>
    {{if .Answer}}<div class="answer">{{.Answer}}</div>{{end}}
    {{range .Citations}}
    <div class="citation">
      <span class="review {{lower .Review}}">{{.Review}}</span>
      {{if .Excerpt}}<div>{{.Excerpt}}</div>{{end}}
      <div class="source">{{.Document}}{{if .Pages}}, {{.Pages}}{{end}}</div>
    </div>
    {{end}}
  </div>
  {{end}}
</body>
</html>`
