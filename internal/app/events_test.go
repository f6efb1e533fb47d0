package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"formcite/api/internal/store"
)

func TestSubmitEventsAppliesBatchInOrder(t *testing.T) {
	citations := map[string]store.Citation{}
	var nextEventID int64
	fs := &fakeStore{
		createCitationFn: func(_ context.Context, cit store.Citation) (store.Citation, store.Event, error) {
			nextEventID++
			cit.CreatedAt = time.Now()
			citations[cit.ID] = cit
			return cit, store.Event{ID: nextEventID, Type: store.EventAddCitation, CitationID: cit.ID, CreatedAt: cit.CreatedAt}, nil
		},
		applyReviewFn: func(_ context.Context, citationID, review, creator string) (store.Event, error) {
			cit, ok := citations[citationID]
			if !ok {
				return store.Event{}, store.ErrNotFound
			}
			cit.Review = review
			citations[citationID] = cit
			nextEventID++
			return store.Event{ID: nextEventID, Type: store.EventUpdateReview, CitationID: citationID, Review: review, CreatedAt: time.Now()}, nil
		},
		applyBoundsFn: func(_ context.Context, citationID string, bounds []store.Bound, creator string) (store.Event, error) {
			cit, ok := citations[citationID]
			if !ok {
				return store.Event{}, store.ErrNotFound
			}
			cit.Bounds = bounds
			citations[citationID] = cit
			nextEventID++
			return store.Event{ID: nextEventID, Type: store.EventUpdateBounds, CitationID: citationID, Bounds: bounds, CreatedAt: time.Now()}, nil
		},
	}
	svc := newTestService(fs, &fakeTemplateRepo{})

	result, err := svc.SubmitEvents(context.Background(), testSession(), []EventInput{
		{Type: store.EventAddCitation, CitationID: "c-1", FormID: 1, QuestionID: 10, DocumentID: 5, Excerpt: "Acme Corp"},
		{Type: store.EventUpdateReview, CitationID: "c-1", Review: store.ReviewAccepted},
		{Type: store.EventUpdateBounds, CitationID: "c-1", Bounds: []store.Bound{{PageNumber: 3}}},
	})
	if err != nil {
		t.Fatalf("SubmitEvents() error = %v", err)
	}
	if result.Count != 3 || len(result.Applied) != 3 {
		t.Fatalf("expected 3 applied events, got %+v", result)
	}
	for i, applied := range result.Applied {
		if applied.Index != i {
			t.Fatalf("expected applied index %d, got %d", i, applied.Index)
		}
	}
	if result.Applied[1].Type != store.EventUpdateReview {
		t.Fatalf("expected second event type updateReview, got %s", result.Applied[1].Type)
	}
	if citations["c-1"].Review != store.ReviewAccepted {
		t.Fatalf("expected projection review Accepted, got %s", citations["c-1"].Review)
	}
}

func TestSubmitEventsStopsAtFirstFailure(t *testing.T) {
	created := 0
	fs := &fakeStore{
		createCitationFn: func(_ context.Context, cit store.Citation) (store.Citation, store.Event, error) {
			created++
			return cit, store.Event{ID: 1, Type: store.EventAddCitation, CitationID: cit.ID}, nil
		},
		applyReviewFn: func(context.Context, string, string, string) (store.Event, error) {
			return store.Event{}, store.ErrNotFound
		},
	}
	svc := newTestService(fs, &fakeTemplateRepo{})

	_, err := svc.SubmitEvents(context.Background(), testSession(), []EventInput{
		{Type: store.EventUpdateReview, CitationID: "missing", Review: store.ReviewAccepted},
		{Type: store.EventAddCitation, CitationID: "c-1", FormID: 1, QuestionID: 10, DocumentID: 5},
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Status != 404 || domainErr.Code != "NOT_FOUND" {
		t.Fatalf("expected 404 NOT_FOUND, got %d %s", domainErr.Status, domainErr.Code)
	}
	details, ok := domainErr.Details.(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", domainErr.Details)
	}
	if details["failedIndex"] != 0 {
		t.Fatalf("expected failedIndex 0, got %v", details["failedIndex"])
	}
	applied, ok := details["applied"].([]appliedEvent)
	if !ok || len(applied) != 0 {
		t.Fatalf("expected no applied events, got %v", details["applied"])
	}
	if created != 0 {
		t.Fatalf("expected later events to be skipped after the failure, got %d creations", created)
	}
}

func TestSubmitEventsReportsAppliedPrefixOnFailure(t *testing.T) {
	fs := &fakeStore{
		createCitationFn: func(_ context.Context, cit store.Citation) (store.Citation, store.Event, error) {
			return cit, store.Event{ID: 1, Type: store.EventAddCitation, CitationID: cit.ID, CreatedAt: time.Now()}, nil
		},
		applyBoundsFn: func(context.Context, string, []store.Bound, string) (store.Event, error) {
			return store.Event{}, store.ErrInvalidReference
		},
	}
	svc := newTestService(fs, &fakeTemplateRepo{})

	_, err := svc.SubmitEvents(context.Background(), testSession(), []EventInput{
		{Type: store.EventAddCitation, CitationID: "c-1", FormID: 1, QuestionID: 10, DocumentID: 5},
		{Type: store.EventUpdateBounds, CitationID: "c-1", Bounds: []store.Bound{{PageNumber: 2}}},
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Status != 400 {
		t.Fatalf("expected status 400, got %d", domainErr.Status)
	}
	details := domainErr.Details.(map[string]any)
	if details["failedIndex"] != 1 {
		t.Fatalf("expected failedIndex 1, got %v", details["failedIndex"])
	}
	applied := details["applied"].([]appliedEvent)
	if len(applied) != 1 || applied[0].CitationID != "c-1" {
		t.Fatalf("expected the committed first event in applied, got %+v", applied)
	}
}

func TestSubmitEventsGeneratesCitationID(t *testing.T) {
	var created store.Citation
	fs := &fakeStore{
		createCitationFn: func(_ context.Context, cit store.Citation) (store.Citation, store.Event, error) {
			created = cit
			return cit, store.Event{ID: 1, Type: store.EventAddCitation, CitationID: cit.ID}, nil
		},
	}
	svc := newTestService(fs, &fakeTemplateRepo{})

	_, err := svc.SubmitEvents(context.Background(), testSession(), []EventInput{
		{Type: store.EventAddCitation, FormID: 7, QuestionID: 10, DocumentID: 5, Excerpt: "Acme Corp"},
	})
	if err != nil {
		t.Fatalf("SubmitEvents() error = %v", err)
	}
	if !strings.HasPrefix(created.ID, "7-Avery-") {
		t.Fatalf("expected generated citation id with form and creator, got %q", created.ID)
	}
	if created.Review != store.ReviewUnreviewed {
		t.Fatalf("expected default review Unreviewed, got %q", created.Review)
	}
	if created.Creator != "Avery" {
		t.Fatalf("expected creator from session, got %q", created.Creator)
	}
}

func TestSubmitEventsValidatesInputs(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeTemplateRepo{})

	cases := []struct {
		name  string
		input EventInput
	}{
		{"unknown type", EventInput{Type: "deleteCitation", CitationID: "c-1"}},
		{"addCitation without references", EventInput{Type: store.EventAddCitation}},
		{"updateReview without citation", EventInput{Type: store.EventUpdateReview, Review: store.ReviewAccepted}},
		{"updateReview with bad value", EventInput{Type: store.EventUpdateReview, CitationID: "c-1", Review: "Maybe"}},
		{"updateBounds without citation", EventInput{Type: store.EventUpdateBounds}},
		{"bound page below one", EventInput{Type: store.EventUpdateBounds, CitationID: "c-1", Bounds: []store.Bound{{PageNumber: 0}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SubmitEvents(context.Background(), testSession(), []EventInput{tc.input})
			var domainErr *DomainError
			if !errors.As(err, &domainErr) {
				t.Fatalf("expected DomainError, got %v", err)
			}
			if domainErr.Code != "VALIDATION_ERROR" {
				t.Fatalf("expected VALIDATION_ERROR, got %s", domainErr.Code)
			}
		})
	}
}

func TestReplayCitationFoldsEventLog(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	events := []store.Event{
		{
			ID: 1, Type: store.EventAddCitation, CitationID: "c-1",
			FormID: 1, QuestionID: 10, DocumentID: 5,
			Excerpt: "Acme Corp", Bounds: []store.Bound{{PageNumber: 2}},
			Review: store.ReviewUnreviewed, Creator: "Avery", CreatedAt: base,
		},
		{ID: 2, Type: store.EventUpdateReview, CitationID: "c-1", Review: store.ReviewAccepted, CreatedAt: base.Add(time.Minute)},
		{ID: 3, Type: store.EventUpdateBounds, CitationID: "c-1", Bounds: []store.Bound{{PageNumber: 3}, {PageNumber: 4}}, CreatedAt: base.Add(2 * time.Minute)},
	}

	cit, err := replayCitation(events)
	if err != nil {
		t.Fatalf("replayCitation() error = %v", err)
	}
	if cit.Review != store.ReviewAccepted {
		t.Fatalf("expected review Accepted, got %s", cit.Review)
	}
	if len(cit.Bounds) != 2 || cit.Bounds[0].PageNumber != 3 {
		t.Fatalf("expected bounds from last updateBounds, got %+v", cit.Bounds)
	}
	if !cit.BoundsUpdatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("expected boundsUpdatedAt from last bounds event, got %v", cit.BoundsUpdatedAt)
	}
	if cit.Excerpt != "Acme Corp" || cit.Creator != "Avery" {
		t.Fatalf("expected addCitation fields to survive the fold, got %+v", cit)
	}
}

func TestReplayCitationRejectsMalformedLogs(t *testing.T) {
	if _, err := replayCitation(nil); err == nil {
		t.Fatalf("expected error for empty log")
	}
	if _, err := replayCitation([]store.Event{
		{ID: 1, Type: store.EventUpdateReview, CitationID: "c-1", Review: store.ReviewAccepted},
	}); err == nil {
		t.Fatalf("expected error when log does not start with addCitation")
	}
	if _, err := replayCitation([]store.Event{
		{ID: 1, Type: store.EventAddCitation, CitationID: "c-1"},
		{ID: 2, Type: store.EventAddCitation, CitationID: "c-1"},
	}); err == nil {
		t.Fatalf("expected error for addCitation past the first position")
	}
}

func TestCitationHistoryReturnsLogAndBothProjections(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fs := &fakeStore{
		getCitationFn: func(_ context.Context, citationID string) (store.Citation, error) {
			return store.Citation{ID: citationID, FormID: 1, QuestionID: 10, DocumentID: 5, Review: store.ReviewAccepted, CreatedAt: base}, nil
		},
		listCitationEventsFn: func(_ context.Context, citationID string) ([]store.Event, error) {
			return []store.Event{
				{ID: 1, Type: store.EventAddCitation, CitationID: citationID, FormID: 1, QuestionID: 10, DocumentID: 5, Review: store.ReviewUnreviewed, CreatedAt: base},
				{ID: 2, Type: store.EventUpdateReview, CitationID: citationID, Review: store.ReviewAccepted, CreatedAt: base.Add(time.Minute)},
			}, nil
		},
	}
	svc := newTestService(fs, &fakeTemplateRepo{})

	payload, err := svc.CitationHistory(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("CitationHistory() error = %v", err)
	}
	events, ok := payload["events"].([]eventPayload)
	if !ok || len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", payload["events"])
	}
	stored, ok := payload["citation"].(citationPayload)
	if !ok || stored.Review != store.ReviewAccepted {
		t.Fatalf("expected stored projection Accepted, got %v", payload["citation"])
	}
	replayed, ok := payload["replayed"].(citationPayload)
	if !ok || replayed.Review != store.ReviewAccepted {
		t.Fatalf("expected replayed projection Accepted, got %v", payload["replayed"])
	}
}

func TestCitationHistoryFlagsInconsistentLog(t *testing.T) {
	fs := &fakeStore{
		getCitationFn: func(_ context.Context, citationID string) (store.Citation, error) {
			return store.Citation{ID: citationID}, nil
		},
		listCitationEventsFn: func(_ context.Context, citationID string) ([]store.Event, error) {
			return []store.Event{
				{ID: 1, Type: store.EventUpdateReview, CitationID: citationID, Review: store.ReviewAccepted},
			}, nil
		},
	}
	svc := newTestService(fs, &fakeTemplateRepo{})

	_, err := svc.CitationHistory(context.Background(), "c-1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "SERVER_ERROR" {
		t.Fatalf("expected SERVER_ERROR, got %s", domainErr.Code)
	}
}
