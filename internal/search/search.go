package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultCitation ResultType = "citation"
	ResultQuestion ResultType = "question"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	FormID     int64      `json:"formId,omitempty"`
	DocumentID int64      `json:"documentId,omitempty"`
	Review     string     `json:"review,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text         string
	FilterType   ResultType // empty = all types
	FilterFormID int64      // 0 = all forms
	Limit        int
	Offset       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexCitation(c CitationRecord) error
	IndexQuestion(q QuestionRecord) error
	DeleteCitation(id string) error
}

// CitationRecord is the data we index for a citation.
type CitationRecord struct {
	ID         string `json:"id"`
	Excerpt    string `json:"excerpt"`
	Review     string `json:"review"`
	FormID     int64  `json:"formId"`
	QuestionID int64  `json:"questionId"`
	DocumentID int64  `json:"documentId"`
}

// QuestionRecord is the data we index for a question.
type QuestionRecord struct {
	ID         string `json:"id"`
	Prefix     string `json:"prefix"`
	Text       string `json:"text"`
	TemplateID int64  `json:"templateId"`
}
