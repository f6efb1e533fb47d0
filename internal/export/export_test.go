package export

import (
	"strings"
	"testing"
	"time"

	"formcite/api/internal/store"
)

func TestRenderReportHTML(t *testing.T) {
	data := TemplateData{
		FormName:     "Loan 4412",
		TemplateName: "Loan Review",
		Creator:      "Avery",
		GeneratedAt:  time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Questions: []TemplateQuestion{
			{
				Prefix: "1.a",
				Text:   "What is the borrower's legal name?",
				Answer: "Acme Holdings LLC",
				Citations: []ReportCitation{
					{
						ID:       "12-avery-1700000000000",
						Document: "credit-agreement.pdf",
						Pages:    "pp. 3-5",
						Review:   store.ReviewAccepted,
						Excerpt:  "Acme Holdings LLC, a Delaware limited liability company",
					},
				},
			},
			{
				Prefix: "1.b",
				Text:   "What is the principal amount?",
			},
		},
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		t.Fatalf("RenderReportHTML() error = %v", err)
	}

	for _, want := range []string{
		"Loan 4412",
		"Loan Review",
		"1.a What is the borrower&#39;s legal name?",
		"Acme Holdings LLC, a Delaware limited liability company",
		"credit-agreement.pdf, pp. 3-5",
		"class=\"review accepted\"",
		"1.b What is the principal amount?",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
}

func TestRenderReportHTMLEscapesContent(t *testing.T) {
	data := TemplateData{
		FormName:    "<script>alert(1)</script>",
		GeneratedAt: time.Now(),
	}
	html, err := RenderReportHTML(data)
	if err != nil {
		t.Fatalf("RenderReportHTML() error = %v", err)
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Fatal("form name not escaped")
	}
}

func TestFormatPages(t *testing.T) {
	tests := []struct {
		name   string
		bounds []store.Bound
		want   string
	}{
		{"no bounds", nil, ""},
		{"single page", []store.Bound{{PageNumber: 3}}, "p. 3"},
		{"same page twice", []store.Bound{{PageNumber: 3}, {PageNumber: 3}}, "p. 3"},
		{"page span", []store.Bound{{PageNumber: 5}, {PageNumber: 2}, {PageNumber: 4}}, "pp. 2-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatPages(tt.bounds); got != tt.want {
				t.Errorf("formatPages() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Loan 4412", "Loan-4412"},
		{"a/b\\c:d", "abcd"},
		{"", "report"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
