package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mapWriteError translates foreign-key violations into ErrInvalidReference so
// callers can report them as validation failures rather than store failures.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("%w: %s", ErrInvalidReference, pgErr.ConstraintName)
	}
	return err
}

func marshalBounds(bounds []Bound) (any, error) {
	if bounds == nil {
		return nil, nil
	}
	data, err := json.Marshal(bounds)
	if err != nil {
		return nil, fmt.Errorf("marshal bounds: %w", err)
	}
	return data, nil
}

func unmarshalBounds(raw []byte) ([]Bound, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var bounds []Bound
	if err := json.Unmarshal(raw, &bounds); err != nil {
		return nil, fmt.Errorf("unmarshal bounds: %w", err)
	}
	return bounds, nil
}

// ---------------------------------------------------------------------------
// users and refresh sessions

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, created_at
		FROM users WHERE email = $1
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user by email: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, created_at
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email, u.role
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup refresh session: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// templates, questions, forms, documents

func (s *PostgresStore) InsertTemplate(ctx context.Context, name, creator string, questions []Question) (Template, []Question, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Template{}, nil, fmt.Errorf("begin template tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var tpl Template
	err = tx.QueryRowContext(ctx, `
		INSERT INTO templates (template_name, creator)
		VALUES ($1, $2)
		RETURNING template_id, template_name, creator, created_at, modified_at
	`, name, creator).Scan(&tpl.ID, &tpl.Name, &tpl.Creator, &tpl.CreatedAt, &tpl.ModifiedAt)
	if err != nil {
		return Template{}, nil, fmt.Errorf("insert template: %w", err)
	}

	inserted := make([]Question, 0, len(questions))
	for _, q := range questions {
		var row Question
		err := tx.QueryRowContext(ctx, `
			INSERT INTO questions (template_id, prefix, text)
			VALUES ($1, $2, $3)
			RETURNING question_id, template_id, prefix, text
		`, tpl.ID, q.Prefix, q.Text).Scan(&row.ID, &row.TemplateID, &row.Prefix, &row.Text)
		if err != nil {
			return Template{}, nil, fmt.Errorf("insert question: %w", err)
		}
		inserted = append(inserted, row)
	}

	if err := tx.Commit(); err != nil {
		return Template{}, nil, fmt.Errorf("commit template tx: %w", err)
	}
	return tpl, inserted, nil
}

func (s *PostgresStore) GetTemplate(ctx context.Context, templateID int64) (Template, error) {
	var tpl Template
	err := s.db.QueryRowContext(ctx, `
		SELECT template_id, template_name, creator, created_at, modified_at
		FROM templates WHERE template_id = $1
	`, templateID).Scan(&tpl.ID, &tpl.Name, &tpl.Creator, &tpl.CreatedAt, &tpl.ModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, ErrNotFound
	}
	if err != nil {
		return Template{}, fmt.Errorf("lookup template: %w", err)
	}
	return tpl, nil
}

func (s *PostgresStore) ListTemplateQuestions(ctx context.Context, templateID int64) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, template_id, prefix, text
		FROM questions
		WHERE template_id = $1
		ORDER BY prefix, question_id
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.TemplateID, &q.Prefix, &q.Text); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// UpsertTemplateQuestions updates questions that carry an id and inserts the
// rest. Existing questions are never deleted because citations reference them.
func (s *PostgresStore) UpsertTemplateQuestions(ctx context.Context, templateID int64, questions []Question) ([]Question, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin questions tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result := make([]Question, 0, len(questions))
	for _, q := range questions {
		var row Question
		if q.ID != 0 {
			err = tx.QueryRowContext(ctx, `
				UPDATE questions SET prefix = $3, text = $4
				WHERE question_id = $1 AND template_id = $2
				RETURNING question_id, template_id, prefix, text
			`, q.ID, templateID, q.Prefix, q.Text).Scan(&row.ID, &row.TemplateID, &row.Prefix, &row.Text)
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: question %d", ErrNotFound, q.ID)
			}
		} else {
			err = tx.QueryRowContext(ctx, `
				INSERT INTO questions (template_id, prefix, text)
				VALUES ($1, $2, $3)
				RETURNING question_id, template_id, prefix, text
			`, templateID, q.Prefix, q.Text).Scan(&row.ID, &row.TemplateID, &row.Prefix, &row.Text)
		}
		if err != nil {
			return nil, fmt.Errorf("upsert question: %w", err)
		}
		result = append(result, row)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE templates SET modified_at = NOW() WHERE template_id = $1`, templateID); err != nil {
		return nil, fmt.Errorf("touch template: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit questions tx: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) InsertForm(ctx context.Context, templateID int64, name, creator string) (Form, error) {
	var form Form
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO forms (template_id, form_name, creator)
		VALUES ($1, $2, $3)
		RETURNING form_id, template_id, form_name, creator, created_at, modified_at
	`, templateID, name, creator).Scan(&form.ID, &form.TemplateID, &form.Name, &form.Creator, &form.CreatedAt, &form.ModifiedAt)
	if err != nil {
		return Form{}, mapWriteError(fmt.Errorf("insert form: %w", err))
	}
	return form, nil
}

func (s *PostgresStore) GetForm(ctx context.Context, formID int64) (Form, error) {
	var form Form
	err := s.db.QueryRowContext(ctx, `
		SELECT f.form_id, f.template_id, t.template_name, f.form_name, f.creator, f.created_at, f.modified_at
		FROM forms f
		JOIN templates t ON t.template_id = f.template_id
		WHERE f.form_id = $1
	`, formID).Scan(&form.ID, &form.TemplateID, &form.TemplateName, &form.Name, &form.Creator, &form.CreatedAt, &form.ModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Form{}, ErrNotFound
	}
	if err != nil {
		return Form{}, fmt.Errorf("lookup form: %w", err)
	}
	return form, nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc Document) (Document, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (form_id, name, pdf_url, di_url, object_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING document_id
	`, doc.FormID, doc.Name, doc.PDFURL, doc.DIURL, doc.ObjectKey).Scan(&doc.ID)
	if err != nil {
		return Document{}, mapWriteError(fmt.Errorf("insert document: %w", err))
	}
	return doc, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID int64) (Document, error) {
	var doc Document
	err := s.db.QueryRowContext(ctx, `
		SELECT document_id, form_id, name, pdf_url, di_url, object_key
		FROM documents WHERE document_id = $1
	`, documentID).Scan(&doc.ID, &doc.FormID, &doc.Name, &doc.PDFURL, &doc.DIURL, &doc.ObjectKey)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("lookup document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListFormDocuments(ctx context.Context, formID int64) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, form_id, name, pdf_url, di_url, object_key
		FROM documents
		WHERE form_id = $1
		ORDER BY document_id
	`, formID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.FormID, &doc.Name, &doc.PDFURL, &doc.DIURL, &doc.ObjectKey); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ---------------------------------------------------------------------------
// citations and the event log

// CreateCitation inserts the projection row and appends the matching
// addCitation event in one transaction. A missing form/question/document
// reference surfaces as ErrInvalidReference.
func (s *PostgresStore) CreateCitation(ctx context.Context, cit Citation) (Citation, Event, error) {
	boundsArg, err := marshalBounds(cit.Bounds)
	if err != nil {
		return Citation{}, Event{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Citation{}, Event{}, fmt.Errorf("begin citation tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO citations (citation_id, form_id, question_id, document_id, excerpt, bounds, review, creator)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, bounds_updated_at
	`, cit.ID, cit.FormID, cit.QuestionID, cit.DocumentID, cit.Excerpt, boundsArg, cit.Review, cit.Creator).
		Scan(&cit.CreatedAt, &cit.BoundsUpdatedAt)
	if err != nil {
		return Citation{}, Event{}, mapWriteError(fmt.Errorf("insert citation: %w", err))
	}

	event, err := insertEvent(ctx, tx, Event{
		Type:       EventAddCitation,
		CitationID: cit.ID,
		FormID:     cit.FormID,
		QuestionID: cit.QuestionID,
		DocumentID: cit.DocumentID,
		Excerpt:    cit.Excerpt,
		Bounds:     cit.Bounds,
		Review:     cit.Review,
		Creator:    cit.Creator,
	})
	if err != nil {
		return Citation{}, Event{}, err
	}

	if err := tx.Commit(); err != nil {
		return Citation{}, Event{}, fmt.Errorf("commit citation tx: %w", err)
	}
	return cit, event, nil
}

// ApplyReview overwrites the projection's review field and appends the
// updateReview event in one transaction.
func (s *PostgresStore) ApplyReview(ctx context.Context, citationID, review, creator string) (Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Event{}, fmt.Errorf("begin review tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `UPDATE citations SET review = $2 WHERE citation_id = $1`, citationID, review)
	if err != nil {
		return Event{}, fmt.Errorf("update review: %w", err)
	}
	if affected, err := result.RowsAffected(); err != nil {
		return Event{}, fmt.Errorf("update review rows: %w", err)
	} else if affected == 0 {
		return Event{}, fmt.Errorf("%w: citation %s", ErrNotFound, citationID)
	}

	event, err := insertEvent(ctx, tx, Event{
		Type:       EventUpdateReview,
		CitationID: citationID,
		Review:     review,
		Creator:    creator,
	})
	if err != nil {
		return Event{}, err
	}

	if err := tx.Commit(); err != nil {
		return Event{}, fmt.Errorf("commit review tx: %w", err)
	}
	return event, nil
}

// ApplyBounds replaces the projection's bounds wholesale, refreshes the
// bounds timestamp, and appends the updateBounds event in one transaction.
func (s *PostgresStore) ApplyBounds(ctx context.Context, citationID string, bounds []Bound, creator string) (Event, error) {
	boundsArg, err := marshalBounds(bounds)
	if err != nil {
		return Event{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Event{}, fmt.Errorf("begin bounds tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE citations SET bounds = $2, bounds_updated_at = NOW() WHERE citation_id = $1
	`, citationID, boundsArg)
	if err != nil {
		return Event{}, fmt.Errorf("update bounds: %w", err)
	}
	if affected, err := result.RowsAffected(); err != nil {
		return Event{}, fmt.Errorf("update bounds rows: %w", err)
	} else if affected == 0 {
		return Event{}, fmt.Errorf("%w: citation %s", ErrNotFound, citationID)
	}

	event, err := insertEvent(ctx, tx, Event{
		Type:       EventUpdateBounds,
		CitationID: citationID,
		Bounds:     bounds,
		Creator:    creator,
	})
	if err != nil {
		return Event{}, err
	}

	if err := tx.Commit(); err != nil {
		return Event{}, fmt.Errorf("commit bounds tx: %w", err)
	}
	return event, nil
}

func insertEvent(ctx context.Context, q querier, event Event) (Event, error) {
	boundsArg, err := marshalBounds(event.Bounds)
	if err != nil {
		return Event{}, err
	}

	var formID, questionID, documentID any
	if event.Type == EventAddCitation {
		formID, questionID, documentID = event.FormID, event.QuestionID, event.DocumentID
	}
	var excerpt, review any
	if event.Excerpt != "" {
		excerpt = event.Excerpt
	}
	if event.Review != "" {
		review = event.Review
	}

	err = q.QueryRowContext(ctx, `
		INSERT INTO events (type, citation_id, form_id, question_id, document_id, excerpt, bounds, review, creator)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, event.Type, event.CitationID, formID, questionID, documentID, excerpt, boundsArg, review, event.Creator).
		Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

func (s *PostgresStore) GetCitation(ctx context.Context, citationID string) (Citation, error) {
	var cit Citation
	var rawBounds []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT citation_id, form_id, question_id, document_id, excerpt, bounds, review, creator, created_at, bounds_updated_at
		FROM citations WHERE citation_id = $1
	`, citationID).Scan(&cit.ID, &cit.FormID, &cit.QuestionID, &cit.DocumentID, &cit.Excerpt, &rawBounds, &cit.Review, &cit.Creator, &cit.CreatedAt, &cit.BoundsUpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Citation{}, ErrNotFound
	}
	if err != nil {
		return Citation{}, fmt.Errorf("lookup citation: %w", err)
	}
	if cit.Bounds, err = unmarshalBounds(rawBounds); err != nil {
		return Citation{}, err
	}
	return cit, nil
}

func (s *PostgresStore) scanCitations(rows *sql.Rows) ([]Citation, error) {
	var citations []Citation
	for rows.Next() {
		var cit Citation
		var rawBounds []byte
		if err := rows.Scan(&cit.ID, &cit.FormID, &cit.QuestionID, &cit.DocumentID, &cit.Excerpt, &rawBounds, &cit.Review, &cit.Creator, &cit.CreatedAt, &cit.BoundsUpdatedAt); err != nil {
			return nil, fmt.Errorf("scan citation: %w", err)
		}
		bounds, err := unmarshalBounds(rawBounds)
		if err != nil {
			return nil, err
		}
		cit.Bounds = bounds
		citations = append(citations, cit)
	}
	return citations, rows.Err()
}

func (s *PostgresStore) ListFormCitations(ctx context.Context, formID int64) ([]Citation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT citation_id, form_id, question_id, document_id, excerpt, bounds, review, creator, created_at, bounds_updated_at
		FROM citations
		WHERE form_id = $1
		ORDER BY document_id, citation_id
	`, formID)
	if err != nil {
		return nil, fmt.Errorf("list form citations: %w", err)
	}
	defer rows.Close()
	return s.scanCitations(rows)
}

func (s *PostgresStore) ListQuestionCitations(ctx context.Context, formID, questionID int64) ([]Citation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT citation_id, form_id, question_id, document_id, excerpt, bounds, review, creator, created_at, bounds_updated_at
		FROM citations
		WHERE form_id = $1 AND question_id = $2
		ORDER BY document_id, citation_id
	`, formID, questionID)
	if err != nil {
		return nil, fmt.Errorf("list question citations: %w", err)
	}
	defer rows.Close()
	return s.scanCitations(rows)
}

// ListCitationEvents returns the citation's history in application order.
func (s *PostgresStore) ListCitationEvents(ctx context.Context, citationID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, citation_id, COALESCE(form_id, 0), COALESCE(question_id, 0), COALESCE(document_id, 0),
			COALESCE(excerpt, ''), bounds, COALESCE(review, ''), creator, created_at
		FROM events
		WHERE citation_id = $1
		ORDER BY created_at, id
	`, citationID)
	if err != nil {
		return nil, fmt.Errorf("list citation events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var rawBounds []byte
		if err := rows.Scan(&event.ID, &event.Type, &event.CitationID, &event.FormID, &event.QuestionID, &event.DocumentID,
			&event.Excerpt, &rawBounds, &event.Review, &event.Creator, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		bounds, err := unmarshalBounds(rawBounds)
		if err != nil {
			return nil, err
		}
		event.Bounds = bounds
		events = append(events, event)
	}
	return events, rows.Err()
}

// ---------------------------------------------------------------------------
// answers

func (s *PostgresStore) UpsertAnswer(ctx context.Context, answer Answer) (Answer, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO answers (form_id, question_id, answer, updated_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (form_id, question_id) DO UPDATE SET answer=EXCLUDED.answer, updated_by=EXCLUDED.updated_by, updated_at=NOW()
		RETURNING updated_at
	`, answer.FormID, answer.QuestionID, answer.Text, answer.UpdatedBy).Scan(&answer.UpdatedAt)
	if err != nil {
		return Answer{}, mapWriteError(fmt.Errorf("upsert answer: %w", err))
	}
	return answer, nil
}

func (s *PostgresStore) ListFormAnswers(ctx context.Context, formID int64) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT form_id, question_id, answer, updated_by, updated_at
		FROM answers
		WHERE form_id = $1
		ORDER BY question_id
	`, formID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var answers []Answer
	for rows.Next() {
		var a Answer
		if err := rows.Scan(&a.FormID, &a.QuestionID, &a.Text, &a.UpdatedBy, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
