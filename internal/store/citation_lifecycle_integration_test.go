package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// TestCitationLifecycleProjectionMatchesEventLog runs the full event flow
// against a real database: create a citation, review it, move its bounds,
// then verify the projection row equals what the event log describes.
func TestCitationLifecycleProjectionMatchesEventLog(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, err := Open(ctx, getTestDatabaseURL(t))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	s := NewPostgresStore(db)

	tpl, questions, err := s.InsertTemplate(ctx, "Lifecycle Template", "Test User", []Question{
		{Prefix: "1.a", Text: "Borrower name?"},
	})
	if err != nil {
		t.Fatalf("insert template: %v", err)
	}
	form, err := s.InsertForm(ctx, tpl.ID, "Lifecycle Form", "Test User")
	if err != nil {
		t.Fatalf("insert form: %v", err)
	}
	doc, err := s.InsertDocument(ctx, Document{FormID: form.ID, Name: "Credit Agreement"})
	if err != nil {
		t.Fatalf("insert document: %v", err)
	}

	citationID := fmt.Sprintf("%d-Test User-%d", form.ID, time.Now().UnixNano())
	created, addEvent, err := s.CreateCitation(ctx, Citation{
		ID:         citationID,
		FormID:     form.ID,
		QuestionID: questions[0].ID,
		DocumentID: doc.ID,
		Excerpt:    "Acme Corp",
		Bounds:     []Bound{{PageNumber: 2}},
		Review:     ReviewUnreviewed,
		Creator:    "Test User",
	})
	if err != nil {
		t.Fatalf("create citation: %v", err)
	}
	if addEvent.Type != EventAddCitation || addEvent.CitationID != citationID {
		t.Fatalf("unexpected add event: %+v", addEvent)
	}
	if created.Review != ReviewUnreviewed {
		t.Fatalf("expected new citation Unreviewed, got %s", created.Review)
	}

	if _, err := s.ApplyReview(ctx, citationID, ReviewAccepted, "Test User"); err != nil {
		t.Fatalf("apply review: %v", err)
	}
	if _, err := s.ApplyBounds(ctx, citationID, []Bound{{PageNumber: 3}, {PageNumber: 4}}, "Test User"); err != nil {
		t.Fatalf("apply bounds: %v", err)
	}

	projection, err := s.GetCitation(ctx, citationID)
	if err != nil {
		t.Fatalf("get citation: %v", err)
	}
	if projection.Review != ReviewAccepted {
		t.Fatalf("expected projection review Accepted, got %s", projection.Review)
	}
	if len(projection.Bounds) != 2 || projection.Bounds[0].PageNumber != 3 {
		t.Fatalf("expected projection bounds from last update, got %+v", projection.Bounds)
	}

	events, err := s.ListCitationEvents(ctx, citationID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Type != EventAddCitation || events[1].Type != EventUpdateReview || events[2].Type != EventUpdateBounds {
		t.Fatalf("expected events in submission order, got %s %s %s", events[0].Type, events[1].Type, events[2].Type)
	}
	if events[1].Review != ReviewAccepted {
		t.Fatalf("expected review event to carry Accepted, got %q", events[1].Review)
	}
	if events[2].Bounds == nil || events[2].Bounds[0].PageNumber != 3 {
		t.Fatalf("expected bounds event to carry new bounds, got %+v", events[2].Bounds)
	}
}

func TestApplyReviewUnknownCitationReturnsNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, err := Open(ctx, getTestDatabaseURL(t))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	s := NewPostgresStore(db)

	_, err = s.ApplyReview(ctx, "does-not-exist", ReviewAccepted, "Test User")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = s.ApplyBounds(ctx, "does-not-exist", []Bound{{PageNumber: 1}}, "Test User")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateCitationUnknownReferencesReturnInvalidReference(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, err := Open(ctx, getTestDatabaseURL(t))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	s := NewPostgresStore(db)

	_, _, err = s.CreateCitation(ctx, Citation{
		ID:         fmt.Sprintf("0-Test User-%d", time.Now().UnixNano()),
		FormID:     999999999,
		QuestionID: 999999999,
		DocumentID: 999999999,
		Review:     ReviewUnreviewed,
		Creator:    "Test User",
	})
	if !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
}
