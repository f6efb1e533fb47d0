package store

import "time"

// Review states a citation moves through. Stored and serialized as-is.
const (
	ReviewUnreviewed = "Unreviewed"
	ReviewAccepted   = "Accepted"
	ReviewRejected   = "Rejected"
)

// Event types in the append-only log.
const (
	EventAddCitation  = "addCitation"
	EventUpdateReview = "updateReview"
	EventUpdateBounds = "updateBounds"
)

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type Template struct {
	ID         int64
	Name       string
	Creator    string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

type Question struct {
	ID         int64
	TemplateID int64
	Prefix     string
	Text       string
}

type Form struct {
	ID           int64
	TemplateID   int64
	TemplateName string
	Name         string
	Creator      string
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// Document is an entry in a form's document catalog. PDFURL points at an
// external PDF; ObjectKey is set instead when the PDF lives in object storage.
type Document struct {
	ID        int64
	FormID    int64
	Name      string
	PDFURL    string
	DIURL     string
	ObjectKey string
}

// Bound is one page-located region of a citation.
type Bound struct {
	PageNumber int       `json:"pageNumber"`
	Polygon    []float64 `json:"polygon,omitempty"`
}

// Citation is the mutable projection row. Bounds and review always equal the
// value of the most recently applied event for this citation id; the row is
// reconstructable by replaying the event log.
type Citation struct {
	ID              string
	FormID          int64
	QuestionID      int64
	DocumentID      int64
	Excerpt         string
	Bounds          []Bound
	Review          string
	Creator         string
	CreatedAt       time.Time
	BoundsUpdatedAt time.Time
}

// Event is one immutable record in the append-only log. FormID, QuestionID,
// DocumentID, Excerpt and the initial review are carried only on addCitation
// events; updateReview and updateBounds carry just their changed field.
type Event struct {
	ID         int64
	Type       string
	CitationID string
	FormID     int64
	QuestionID int64
	DocumentID int64
	Excerpt    string
	Bounds     []Bound
	Review     string
	Creator    string
	CreatedAt  time.Time
}

type Answer struct {
	FormID     int64
	QuestionID int64
	Text       string
	UpdatedBy  string
	UpdatedAt  time.Time
}

type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}
