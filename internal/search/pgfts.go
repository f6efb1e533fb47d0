package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across citations and questions using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	// Citations sub-query
	if q.FilterType == "" || q.FilterType == ResultCitation {
		citWhere := "c.fts @@ " + tsQuery
		if q.FilterFormID != 0 {
			citWhere += fmt.Sprintf(" AND c.form_id = $%d", argN)
			args = append(args, q.FilterFormID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'citation'::text AS type, c.citation_id AS id, c.citation_id AS title,
				ts_headline('english', coalesce(c.excerpt, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.form_id, c.document_id, c.review,
				ts_rank(c.fts, %s) AS rank
			FROM citations c
			WHERE %s`, tsQuery, tsQuery, citWhere))
	}

	// Questions sub-query
	if q.FilterType == "" || q.FilterType == ResultQuestion {
		qWhere := "q.fts @@ " + tsQuery
		join := ""
		if q.FilterFormID != 0 {
			join = fmt.Sprintf(" JOIN forms f ON f.template_id = q.template_id AND f.form_id = $%d", argN)
			args = append(args, q.FilterFormID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'question'::text AS type, q.question_id::text AS id, q.prefix AS title,
				ts_headline('english', coalesce(q.text, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				0::bigint AS form_id, 0::bigint AS document_id, ''::text AS review,
				ts_rank(q.fts, %s) AS rank
			FROM questions q%s
			WHERE %s`, tsQuery, tsQuery, join, qWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, form_id, document_id, review
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.FormID, &r.DocumentID, &r.Review); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]CitationRecord, []QuestionRecord, error) {
	citRows, err := p.db.QueryContext(ctx, `
		SELECT citation_id, excerpt, review, form_id, question_id, document_id
		FROM citations
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load citations: %w", err)
	}
	defer citRows.Close()

	citations := make([]CitationRecord, 0)
	for citRows.Next() {
		var c CitationRecord
		if err := citRows.Scan(&c.ID, &c.Excerpt, &c.Review, &c.FormID, &c.QuestionID, &c.DocumentID); err != nil {
			return nil, nil, fmt.Errorf("scan citation: %w", err)
		}
		citations = append(citations, c)
	}
	if err := citRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate citations: %w", err)
	}

	qRows, err := p.db.QueryContext(ctx, `
		SELECT question_id::text, prefix, text, template_id
		FROM questions
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load questions: %w", err)
	}
	defer qRows.Close()

	questions := make([]QuestionRecord, 0)
	for qRows.Next() {
		var q QuestionRecord
		if err := qRows.Scan(&q.ID, &q.Prefix, &q.Text, &q.TemplateID); err != nil {
			return nil, nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := qRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate questions: %w", err)
	}

	return citations, questions, nil
}
