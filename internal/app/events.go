package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"formcite/api/internal/search"
	"formcite/api/internal/store"
	"formcite/api/internal/util"
)

// EventInput is one element of the batch submitted to the events endpoint.
// addCitation carries the full citation; updateReview and updateBounds carry
// only the citation id and their changed field.
type EventInput struct {
	Type       string        `json:"type"`
	CitationID string        `json:"citationId"`
	FormID     int64         `json:"formId"`
	QuestionID int64         `json:"questionId"`
	DocumentID int64         `json:"documentId"`
	Excerpt    string        `json:"excerpt"`
	Bounds     []store.Bound `json:"bounds"`
	Review     string        `json:"review"`
}

type appliedEvent struct {
	Index      int       `json:"index"`
	Type       string    `json:"type"`
	CitationID string    `json:"citationId"`
	EventID    int64     `json:"eventId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SubmitResult reports the outcome of a fully applied batch.
type SubmitResult struct {
	Applied []appliedEvent `json:"applied"`
	Count   int            `json:"count"`
}

var allowedReviews = map[string]struct{}{
	store.ReviewUnreviewed: {},
	store.ReviewAccepted:   {},
	store.ReviewRejected:   {},
}

// SubmitEvents applies the batch strictly in submission order, one
// transaction per event. The first failing event aborts the remainder;
// events committed before it stay committed, and the returned error carries
// the failing index and everything applied so far.
func (s *Service) SubmitEvents(ctx context.Context, session Session, inputs []EventInput) (SubmitResult, error) {
	applied := make([]appliedEvent, 0, len(inputs))

	fail := func(index int, err error) (SubmitResult, error) {
		status, code, message := http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Store unavailable"
		var domainErr *DomainError
		switch {
		case errors.As(err, &domainErr):
			status, code, message = domainErr.Status, domainErr.Code, domainErr.Message
		case errors.Is(err, store.ErrNotFound):
			status, code, message = http.StatusNotFound, "NOT_FOUND", "Citation not found"
		case errors.Is(err, store.ErrInvalidReference):
			status, code, message = http.StatusBadRequest, "VALIDATION_ERROR", "Unknown form, question, or document"
		}
		return SubmitResult{}, domainError(status, code, message, map[string]any{
			"failedIndex": index,
			"applied":     applied,
		})
	}

	for i, input := range inputs {
		if err := validateEventInput(input); err != nil {
			return fail(i, err)
		}

		var (
			event store.Event
			err   error
		)
		switch input.Type {
		case store.EventAddCitation:
			citationID := input.CitationID
			if citationID == "" {
				citationID = util.NewCitationID(input.FormID, session.UserName)
			}
			review := input.Review
			if review == "" {
				review = store.ReviewUnreviewed
			}
			var cit store.Citation
			cit, event, err = s.store.CreateCitation(ctx, store.Citation{
				ID:         citationID,
				FormID:     input.FormID,
				QuestionID: input.QuestionID,
				DocumentID: input.DocumentID,
				Excerpt:    input.Excerpt,
				Bounds:     input.Bounds,
				Review:     review,
				Creator:    session.UserName,
			})
			if err == nil && s.search != nil {
				s.search.IndexCitation(search.CitationRecord{
					ID:         cit.ID,
					Excerpt:    cit.Excerpt,
					Review:     cit.Review,
					FormID:     cit.FormID,
					QuestionID: cit.QuestionID,
					DocumentID: cit.DocumentID,
				})
			}
		case store.EventUpdateReview:
			event, err = s.store.ApplyReview(ctx, input.CitationID, input.Review, session.UserName)
			if err == nil && s.search != nil {
				if cit, lookupErr := s.store.GetCitation(ctx, input.CitationID); lookupErr == nil {
					s.search.IndexCitation(search.CitationRecord{
						ID:         cit.ID,
						Excerpt:    cit.Excerpt,
						Review:     cit.Review,
						FormID:     cit.FormID,
						QuestionID: cit.QuestionID,
						DocumentID: cit.DocumentID,
					})
				}
			}
		case store.EventUpdateBounds:
			event, err = s.store.ApplyBounds(ctx, input.CitationID, input.Bounds, session.UserName)
		}
		if err != nil {
			return fail(i, err)
		}

		applied = append(applied, appliedEvent{
			Index:      i,
			Type:       event.Type,
			CitationID: event.CitationID,
			EventID:    event.ID,
			CreatedAt:  event.CreatedAt,
		})
	}

	return SubmitResult{Applied: applied, Count: len(applied)}, nil
}

func validateEventInput(input EventInput) error {
	switch input.Type {
	case store.EventAddCitation:
		if input.FormID == 0 || input.QuestionID == 0 || input.DocumentID == 0 {
			return domainError(http.StatusBadRequest, "VALIDATION_ERROR", "addCitation requires formId, questionId, and documentId", nil)
		}
		if input.Review != "" {
			if _, ok := allowedReviews[input.Review]; !ok {
				return domainError(http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("unknown review value %q", input.Review), nil)
			}
		}
	case store.EventUpdateReview:
		if input.CitationID == "" {
			return domainError(http.StatusBadRequest, "VALIDATION_ERROR", "updateReview requires citationId", nil)
		}
		if _, ok := allowedReviews[input.Review]; !ok {
			return domainError(http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("unknown review value %q", input.Review), nil)
		}
	case store.EventUpdateBounds:
		if input.CitationID == "" {
			return domainError(http.StatusBadRequest, "VALIDATION_ERROR", "updateBounds requires citationId", nil)
		}
	default:
		return domainError(http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("unknown event type %q", input.Type), nil)
	}
	for _, b := range input.Bounds {
		if b.PageNumber < 1 {
			return domainError(http.StatusBadRequest, "VALIDATION_ERROR", "bound pageNumber must be positive", nil)
		}
	}
	return nil
}

type eventPayload struct {
	ID         int64         `json:"id"`
	Type       string        `json:"type"`
	CitationID string        `json:"citationId"`
	FormID     int64         `json:"formId,omitempty"`
	QuestionID int64         `json:"questionId,omitempty"`
	DocumentID int64         `json:"documentId,omitempty"`
	Excerpt    string        `json:"excerpt,omitempty"`
	Bounds     []store.Bound `json:"bounds,omitempty"`
	Review     string        `json:"review,omitempty"`
	Creator    string        `json:"creator"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// CitationHistory returns a citation's full event log together with the
// stored projection and the projection replayed from the log. The two must
// agree; both are returned so clients can verify.
func (s *Service) CitationHistory(ctx context.Context, citationID string) (map[string]any, error) {
	cit, err := s.store.GetCitation(ctx, citationID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	events, err := s.store.ListCitationEvents(ctx, citationID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	replayed, err := replayCitation(events)
	if err != nil {
		return nil, domainError(http.StatusInternalServerError, "SERVER_ERROR", "Event log is inconsistent", map[string]any{
			"citationId": citationID,
		})
	}

	payloads := make([]eventPayload, 0, len(events))
	for _, e := range events {
		payloads = append(payloads, eventPayload{
			ID:         e.ID,
			Type:       e.Type,
			CitationID: e.CitationID,
			FormID:     e.FormID,
			QuestionID: e.QuestionID,
			DocumentID: e.DocumentID,
			Excerpt:    e.Excerpt,
			Bounds:     e.Bounds,
			Review:     e.Review,
			Creator:    e.Creator,
			CreatedAt:  e.CreatedAt,
		})
	}

	return map[string]any{
		"citationId": citationID,
		"citation":   citationToPayload(cit),
		"replayed":   citationToPayload(replayed),
		"events":     payloads,
	}, nil
}

// replayCitation folds the event log into the citation it describes. The
// first event must be addCitation; later events overwrite their field.
func replayCitation(events []store.Event) (store.Citation, error) {
	if len(events) == 0 {
		return store.Citation{}, fmt.Errorf("empty event log")
	}
	if events[0].Type != store.EventAddCitation {
		return store.Citation{}, fmt.Errorf("log starts with %s, want %s", events[0].Type, store.EventAddCitation)
	}

	var cit store.Citation
	for i, e := range events {
		switch e.Type {
		case store.EventAddCitation:
			if i != 0 {
				return store.Citation{}, fmt.Errorf("addCitation at position %d", i)
			}
			cit = store.Citation{
				ID:              e.CitationID,
				FormID:          e.FormID,
				QuestionID:      e.QuestionID,
				DocumentID:      e.DocumentID,
				Excerpt:         e.Excerpt,
				Bounds:          e.Bounds,
				Review:          e.Review,
				Creator:         e.Creator,
				CreatedAt:       e.CreatedAt,
				BoundsUpdatedAt: e.CreatedAt,
			}
		case store.EventUpdateReview:
			cit.Review = e.Review
		case store.EventUpdateBounds:
			cit.Bounds = e.Bounds
			cit.BoundsUpdatedAt = e.CreatedAt
		default:
			return store.Citation{}, fmt.Errorf("unknown event type %q", e.Type)
		}
	}
	return cit, nil
}
