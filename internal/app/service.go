package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"formcite/api/internal/auth"
	"formcite/api/internal/authpw"
	"formcite/api/internal/config"
	"formcite/api/internal/docstore"
	"formcite/api/internal/export"
	"formcite/api/internal/grouping"
	"formcite/api/internal/search"
	"formcite/api/internal/store"
	"formcite/api/internal/tmplrepo"
	"formcite/api/internal/util"

	"go.uber.org/zap"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	CreateCitation(context.Context, store.Citation) (store.Citation, store.Event, error)
	ApplyReview(context.Context, string, string, string) (store.Event, error)
	ApplyBounds(context.Context, string, []store.Bound, string) (store.Event, error)
	GetCitation(context.Context, string) (store.Citation, error)
	ListCitationEvents(context.Context, string) ([]store.Event, error)
	ListFormCitations(context.Context, int64) ([]store.Citation, error)
	ListQuestionCitations(context.Context, int64, int64) ([]store.Citation, error)
	InsertTemplate(context.Context, string, string, []store.Question) (store.Template, []store.Question, error)
	GetTemplate(context.Context, int64) (store.Template, error)
	ListTemplateQuestions(context.Context, int64) ([]store.Question, error)
	UpsertTemplateQuestions(context.Context, int64, []store.Question) ([]store.Question, error)
	InsertForm(context.Context, int64, string, string) (store.Form, error)
	GetForm(context.Context, int64) (store.Form, error)
	InsertDocument(context.Context, store.Document) (store.Document, error)
	GetDocument(context.Context, int64) (store.Document, error)
	ListFormDocuments(context.Context, int64) ([]store.Document, error)
	UpsertAnswer(context.Context, store.Answer) (store.Answer, error)
	ListFormAnswers(context.Context, int64) ([]store.Answer, error)
	Ping(ctx context.Context) error
}

// refreshStore holds refresh sessions. Backed by Redis when configured,
// otherwise by the Postgres refresh_sessions table.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type templateRepo interface {
	EnsureTemplateRepo(templateID int64, initial tmplrepo.Content, author string) error
	CommitContent(templateID int64, content tmplrepo.Content, author, message string) (store.CommitInfo, error)
	GetHeadContent(templateID int64) (tmplrepo.Content, store.CommitInfo, error)
	History(templateID int64, limit int) ([]store.CommitInfo, error)
	GetContentByHash(templateID int64, hash string) (tmplrepo.Content, error)
}

// pgRefreshStore adapts the Postgres store to the refreshStore interface;
// only the user id is persisted, the rest is re-read on lookup.
type pgRefreshStore struct {
	s *store.PostgresStore
}

func (p pgRefreshStore) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	return p.s.SaveRefreshSession(ctx, tokenHash, user.ID, expiresAt)
}

func (p pgRefreshStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	return p.s.LookupRefreshSession(ctx, tokenHash)
}

func (p pgRefreshStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return p.s.RevokeRefreshSession(ctx, tokenHash)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	refresh  refreshStore
	tmpl     templateRepo
	authpw   *authpw.Service
	search   *search.Service
	docs     *docstore.Service
	exporter *export.Service
	log      *zap.Logger
}

func New(cfg config.Config, dataStore *store.PostgresStore, tmplService *tmplrepo.Service, log *zap.Logger) *Service {
	return &Service{
		cfg:     cfg,
		store:   dataStore,
		refresh: pgRefreshStore{s: dataStore},
		tmpl:    tmplService,
		authpw:  authpw.NewService(dataStore),
		log:     log,
	}
}

// SetRefreshStore replaces the Postgres-backed refresh session store,
// typically with the Redis one.
func (s *Service) SetRefreshStore(rs refreshStore) { s.refresh = rs }

// SetSearch wires the optional search service.
func (s *Service) SetSearch(sv *search.Service) { s.search = sv }

// SetDocStore wires the optional object storage for document PDFs.
func (s *Service) SetDocStore(ds *docstore.Service) { s.docs = ds }

// SetExporter wires the citation report exporter.
func (s *Service) SetExporter(e *export.Service) { s.exporter = e }

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ---------------------------------------------------------------------------
// sessions

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (Session, error) {
	user, err := s.authpw.SignUp(ctx, authpw.SignUpRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		if errors.Is(err, authpw.ErrEmailTaken) {
			return Session{}, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
		}
		return Session{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.authpw.SignIn(ctx, authpw.SignInRequest{Email: email, Password: password})
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.refresh.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	// Rotate: the presented token is single-use.
	if err := s.refresh.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.refresh.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.DisplayName, user.Role, jti, s.cfg.AccessTTL)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	if err := s.refresh.SaveRefreshSession(ctx, auth.HashToken(refresh), user, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Subject,
		UserName:  claims.Name,
		Role:      claims.Role,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ---------------------------------------------------------------------------
// templates

type QuestionInput struct {
	ID     int64  `json:"questionId"`
	Prefix string `json:"prefix"`
	Text   string `json:"text"`
}

type questionPayload struct {
	ID     int64  `json:"questionId"`
	Prefix string `json:"prefix"`
	Text   string `json:"text"`
}

func (s *Service) CreateTemplate(ctx context.Context, session Session, name string, questions []QuestionInput) (map[string]any, error) {
	if name == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "name is required", nil)
	}
	if len(questions) == 0 {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "at least one question is required", nil)
	}
	rows := make([]store.Question, 0, len(questions))
	for i, q := range questions {
		if q.Text == "" {
			return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("question %d has no text", i), nil)
		}
		rows = append(rows, store.Question{Prefix: q.Prefix, Text: q.Text})
	}

	tpl, inserted, err := s.store.InsertTemplate(ctx, name, session.UserName, rows)
	if err != nil {
		return nil, mapStoreError(err)
	}

	if err := s.tmpl.EnsureTemplateRepo(tpl.ID, templateContent(tpl.Name, inserted), session.UserName); err != nil {
		s.log.Error("init template repo failed", zap.Int64("templateId", tpl.ID), zap.Error(err))
	}

	if s.search != nil {
		for _, q := range inserted {
			s.search.IndexQuestion(search.QuestionRecord{
				ID:         strconv.FormatInt(q.ID, 10),
				Prefix:     q.Prefix,
				Text:       q.Text,
				TemplateID: q.TemplateID,
			})
		}
	}

	return map[string]any{
		"templateId":   tpl.ID,
		"templateName": tpl.Name,
		"creator":      tpl.Creator,
		"createdAt":    tpl.CreatedAt,
		"questions":    questionPayloads(inserted),
	}, nil
}

func (s *Service) UpdateTemplateQuestions(ctx context.Context, session Session, templateID int64, questions []QuestionInput) (map[string]any, error) {
	if len(questions) == 0 {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "at least one question is required", nil)
	}
	tpl, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	rows := make([]store.Question, 0, len(questions))
	for i, q := range questions {
		if q.Text == "" {
			return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("question %d has no text", i), nil)
		}
		rows = append(rows, store.Question{ID: q.ID, Prefix: q.Prefix, Text: q.Text})
	}

	updated, err := s.store.UpsertTemplateQuestions(ctx, templateID, rows)
	if err != nil {
		return nil, mapStoreError(err)
	}

	next := templateContent(tpl.Name, updated)
	if head, _, err := s.tmpl.GetHeadContent(templateID); err != nil || tmplrepo.HasChanges(head, next) {
		if _, err := s.tmpl.CommitContent(templateID, next, session.UserName, "Update questions"); err != nil {
			s.log.Error("commit template questions failed", zap.Int64("templateId", templateID), zap.Error(err))
		}
	}

	if s.search != nil {
		for _, q := range updated {
			s.search.IndexQuestion(search.QuestionRecord{
				ID:         strconv.FormatInt(q.ID, 10),
				Prefix:     q.Prefix,
				Text:       q.Text,
				TemplateID: q.TemplateID,
			})
		}
	}

	return map[string]any{
		"templateId": templateID,
		"questions":  questionPayloads(updated),
	}, nil
}

func (s *Service) TemplateHistory(ctx context.Context, templateID int64) (map[string]any, error) {
	if _, err := s.store.GetTemplate(ctx, templateID); err != nil {
		return nil, mapStoreError(err)
	}
	commits, err := s.tmpl.History(templateID, 50)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(commits))
	for _, c := range commits {
		items = append(items, map[string]any{
			"hash":      c.Hash,
			"message":   c.Message,
			"author":    c.Author,
			"createdAt": c.CreatedAt,
		})
	}
	return map[string]any{"templateId": templateID, "commits": items}, nil
}

func templateContent(name string, questions []store.Question) tmplrepo.Content {
	content := tmplrepo.Content{Name: name, Questions: make([]tmplrepo.QuestionContent, 0, len(questions))}
	for _, q := range questions {
		content.Questions = append(content.Questions, tmplrepo.QuestionContent{Prefix: q.Prefix, Text: q.Text})
	}
	return content
}

func questionPayloads(questions []store.Question) []questionPayload {
	out := make([]questionPayload, 0, len(questions))
	for _, q := range questions {
		out = append(out, questionPayload{ID: q.ID, Prefix: q.Prefix, Text: q.Text})
	}
	return out
}

// ---------------------------------------------------------------------------
// forms

func (s *Service) CreateForm(ctx context.Context, session Session, templateID int64, name string) (map[string]any, error) {
	if name == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "name is required", nil)
	}
	if templateID == 0 {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "templateId is required", nil)
	}
	form, err := s.store.InsertForm(ctx, templateID, name, session.UserName)
	if err != nil {
		if errors.Is(err, store.ErrInvalidReference) {
			return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "unknown template", nil)
		}
		return nil, mapStoreError(err)
	}
	return map[string]any{
		"formId":     form.ID,
		"formName":   form.Name,
		"templateId": form.TemplateID,
		"creator":    form.Creator,
		"createdAt":  form.CreatedAt,
	}, nil
}

type citationPayload struct {
	ID              string        `json:"citationId"`
	FormID          int64         `json:"formId"`
	QuestionID      int64         `json:"questionId"`
	DocumentID      int64         `json:"documentId"`
	Excerpt         string        `json:"excerpt"`
	Bounds          []store.Bound `json:"bounds,omitempty"`
	Review          string        `json:"review"`
	Creator         string        `json:"creator"`
	CreatedAt       time.Time     `json:"createdAt"`
	BoundsUpdatedAt time.Time     `json:"boundsUpdatedAt"`
}

type documentPayload struct {
	ID     int64  `json:"documentId"`
	Name   string `json:"name"`
	PDFURL string `json:"pdfUrl,omitempty"`
	DIURL  string `json:"diUrl,omitempty"`
	Stored bool   `json:"stored"`
}

type formQuestionPayload struct {
	ID        int64             `json:"questionId"`
	Prefix    string            `json:"prefix"`
	Text      string            `json:"text"`
	Answer    string            `json:"answer,omitempty"`
	Citations []citationPayload `json:"citations"`
}

// FormView assembles everything the review screen needs in one response:
// form metadata, the document catalog, and the questions with their citations
// in document order plus any recorded answers.
func (s *Service) FormView(ctx context.Context, formID int64) (map[string]any, error) {
	form, err := s.store.GetForm(ctx, formID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	documents, err := s.store.ListFormDocuments(ctx, formID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	questions, err := s.store.ListTemplateQuestions(ctx, form.TemplateID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	citations, err := s.store.ListFormCitations(ctx, formID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	byQuestion := make(map[int64][]citationPayload)
	for _, c := range citations {
		byQuestion[c.QuestionID] = append(byQuestion[c.QuestionID], citationToPayload(c))
	}

	answers, err := s.store.ListFormAnswers(ctx, formID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	answerByQuestion := make(map[int64]string, len(answers))
	for _, a := range answers {
		answerByQuestion[a.QuestionID] = a.Text
	}

	questionViews := make([]formQuestionPayload, 0, len(questions))
	for _, q := range questions {
		cits := byQuestion[q.ID]
		if cits == nil {
			cits = []citationPayload{}
		}
		questionViews = append(questionViews, formQuestionPayload{
			ID:        q.ID,
			Prefix:    q.Prefix,
			Text:      q.Text,
			Answer:    answerByQuestion[q.ID],
			Citations: cits,
		})
	}

	return map[string]any{
		"formId":       form.ID,
		"formName":     form.Name,
		"templateId":   form.TemplateID,
		"templateName": form.TemplateName,
		"creator":      form.Creator,
		"createdAt":    form.CreatedAt,
		"documents":    documentPayloads(documents),
		"questions":    questionViews,
	}, nil
}

func citationToPayload(c store.Citation) citationPayload {
	return citationPayload{
		ID:              c.ID,
		FormID:          c.FormID,
		QuestionID:      c.QuestionID,
		DocumentID:      c.DocumentID,
		Excerpt:         c.Excerpt,
		Bounds:          c.Bounds,
		Review:          c.Review,
		Creator:         c.Creator,
		CreatedAt:       c.CreatedAt,
		BoundsUpdatedAt: c.BoundsUpdatedAt,
	}
}

func documentPayloads(documents []store.Document) []documentPayload {
	out := make([]documentPayload, 0, len(documents))
	for _, d := range documents {
		out = append(out, documentPayload{
			ID:     d.ID,
			Name:   d.Name,
			PDFURL: d.PDFURL,
			DIURL:  d.DIURL,
			Stored: d.ObjectKey != "",
		})
	}
	return out
}

// SidebarView computes the grouped citation view model for one question:
// per catalog document, its citations as sorted page ranges with selection
// and adjacency flags.
func (s *Service) SidebarView(ctx context.Context, formID, questionID, documentID int64, page int, citationID string) (map[string]any, error) {
	if _, err := s.store.GetForm(ctx, formID); err != nil {
		return nil, mapStoreError(err)
	}

	citations, err := s.store.ListQuestionCitations(ctx, formID, questionID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	documents, err := s.store.ListFormDocuments(ctx, formID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	input := make([]grouping.Citation, 0, len(citations))
	for _, c := range citations {
		input = append(input, grouping.Citation{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Pages:      citationPages(c.Bounds),
		})
	}

	catalog := make([]grouping.Document, 0, len(documents))
	for _, d := range documents {
		catalog = append(catalog, grouping.Document{ID: d.ID, Name: d.Name, PDFURL: d.PDFURL})
	}

	groups := grouping.Group(input, grouping.Selection{
		CitationID: citationID,
		Page:       page,
		DocumentID: documentID,
	}, catalog)

	return map[string]any{
		"formId":         formID,
		"questionId":     questionID,
		"documentGroups": groups,
	}, nil
}

func citationPages(bounds []store.Bound) []int {
	pages := make([]int, 0, len(bounds))
	for _, b := range bounds {
		pages = append(pages, b.PageNumber)
	}
	return pages
}

// ---------------------------------------------------------------------------
// documents

func (s *Service) AddDocument(ctx context.Context, formID int64, name, pdfURL, diURL string) (map[string]any, error) {
	if name == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "name is required", nil)
	}
	doc, err := s.store.InsertDocument(ctx, store.Document{
		FormID: formID,
		Name:   name,
		PDFURL: pdfURL,
		DIURL:  diURL,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidReference) {
			return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "unknown form", nil)
		}
		return nil, mapStoreError(err)
	}
	return map[string]any{"document": documentPayloads([]store.Document{doc})[0]}, nil
}

// AddDocumentUpload stores the PDF in object storage and registers the
// catalog entry pointing at it.
func (s *Service) AddDocumentUpload(ctx context.Context, formID int64, name string, reader io.Reader, size int64) (map[string]any, error) {
	if s.docs == nil {
		return nil, domainError(http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Object storage not configured", nil)
	}
	if name == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "name is required", nil)
	}

	objectKey := fmt.Sprintf("forms/%d/%s.pdf", formID, util.NewID("doc"))
	if err := s.docs.PutPDF(ctx, objectKey, reader, size); err != nil {
		return nil, domainError(http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Could not store PDF", nil)
	}

	doc, err := s.store.InsertDocument(ctx, store.Document{
		FormID:    formID,
		Name:      name,
		ObjectKey: objectKey,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidReference) {
			return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "unknown form", nil)
		}
		return nil, mapStoreError(err)
	}
	return map[string]any{"document": documentPayloads([]store.Document{doc})[0]}, nil
}

// DocumentURL resolves where the document's PDF can be fetched: a presigned
// object storage URL for uploaded PDFs, the external URL otherwise.
func (s *Service) DocumentURL(ctx context.Context, documentID int64) (map[string]any, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if doc.ObjectKey != "" {
		if s.docs == nil {
			return nil, domainError(http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Object storage not configured", nil)
		}
		url, err := s.docs.PresignGet(ctx, doc.ObjectKey, doc.Name, 15*time.Minute)
		if err != nil {
			return nil, domainError(http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Could not sign PDF URL", nil)
		}
		return map[string]any{"documentId": doc.ID, "url": url, "expiresInSeconds": 900}, nil
	}
	if doc.PDFURL == "" {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Document has no PDF", nil)
	}
	return map[string]any{"documentId": doc.ID, "url": doc.PDFURL}, nil
}

// ---------------------------------------------------------------------------
// answers

func (s *Service) SaveAnswer(ctx context.Context, session Session, formID, questionID int64, text string) (map[string]any, error) {
	answer, err := s.store.UpsertAnswer(ctx, store.Answer{
		FormID:     formID,
		QuestionID: questionID,
		Text:       text,
		UpdatedBy:  session.UserName,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidReference) {
			return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "unknown form or question", nil)
		}
		return nil, mapStoreError(err)
	}
	return map[string]any{
		"formId":     answer.FormID,
		"questionId": answer.QuestionID,
		"answer":     answer.Text,
		"updatedBy":  answer.UpdatedBy,
		"updatedAt":  answer.UpdatedAt,
	}, nil
}

// ---------------------------------------------------------------------------
// search and export

func (s *Service) Search(ctx context.Context, text, filterType string, formID int64, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{
		Text:         text,
		FilterType:   search.ResultType(filterType),
		FilterFormID: formID,
		Limit:        limit,
		Offset:       offset,
	}), nil
}

func (s *Service) Export(ctx context.Context, formID int64, format export.Format, includeRejected bool) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Export not configured", nil)
	}
	result, err := s.exporter.Export(ctx, export.Request{
		FormID:          formID,
		Format:          format,
		IncludeRejected: includeRejected,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Form not found", nil)
		}
		if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
			return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export dependencies missing", nil)
		}
		return nil, err
	}
	return result, nil
}

// mapStoreError translates the store sentinels to domain errors. Anything
// else is a store failure the caller cannot fix.
func mapStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	case errors.Is(err, store.ErrInvalidReference):
		return domainError(http.StatusBadRequest, "VALIDATION_ERROR", "Unknown reference", nil)
	default:
		return domainError(http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Store unavailable", nil)
	}
}
