package export

import (
	"context"
	"fmt"
	"time"

	"formcite/api/internal/store"
)

// DataStore defines the data access the exporter needs.
type DataStore interface {
	GetForm(ctx context.Context, id int64) (store.Form, error)
	ListTemplateQuestions(ctx context.Context, templateID int64) ([]store.Question, error)
	ListFormDocuments(ctx context.Context, formID int64) ([]store.Document, error)
	ListFormCitations(ctx context.Context, formID int64) ([]store.Citation, error)
	ListFormAnswers(ctx context.Context, formID int64) ([]store.Answer, error)
}

// Service provides citation report export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates a citation report in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	form, err := s.store.GetForm(ctx, req.FormID)
	if err != nil {
		return nil, fmt.Errorf("get form: %w", err)
	}

	questions, err := s.store.ListTemplateQuestions(ctx, form.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	documents, err := s.store.ListFormDocuments(ctx, form.ID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	docNames := make(map[int64]string, len(documents))
	for _, d := range documents {
		docNames[d.ID] = d.Name
	}

	citations, err := s.store.ListFormCitations(ctx, form.ID)
	if err != nil {
		return nil, fmt.Errorf("list citations: %w", err)
	}
	byQuestion := make(map[int64][]ReportCitation)
	for _, c := range citations {
		if !req.IncludeRejected && c.Review == store.ReviewRejected {
			continue
		}
		byQuestion[c.QuestionID] = append(byQuestion[c.QuestionID], ReportCitation{
			ID:        c.ID,
			Document:  docNames[c.DocumentID],
			Pages:     formatPages(c.Bounds),
			Review:    c.Review,
			Excerpt:   c.Excerpt,
			Creator:   c.Creator,
			CreatedAt: c.CreatedAt,
		})
	}

	answers, err := s.store.ListFormAnswers(ctx, form.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	answerByQuestion := make(map[int64]string, len(answers))
	for _, a := range answers {
		answerByQuestion[a.QuestionID] = a.Text
	}

	data := TemplateData{
		FormName:     form.Name,
		TemplateName: form.TemplateName,
		Creator:      form.Creator,
		GeneratedAt:  time.Now(),
		Questions:    make([]TemplateQuestion, 0, len(questions)),
	}
	for _, q := range questions {
		data.Questions = append(data.Questions, TemplateQuestion{
			Prefix:    q.Prefix,
			Text:      q.Text,
			Answer:    answerByQuestion[q.ID],
			Citations: byQuestion[q.ID],
		})
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, form.Name)
	case FormatDOCX:
		return exportDOCX(html, form.Name)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

// formatPages renders the page span of a citation's bounds.
func formatPages(bounds []store.Bound) string {
	if len(bounds) == 0 {
		return ""
	}
	first, last := bounds[0].PageNumber, bounds[0].PageNumber
	for _, b := range bounds[1:] {
		if b.PageNumber < first {
			first = b.PageNumber
		}
		if b.PageNumber > last {
			last = b.PageNumber
		}
	}
	if first == last {
		return fmt.Sprintf("p. %d", first)
	}
	return fmt.Sprintf("pp. %d-%d", first, last)
}
