package core

import (
	"fmt"
	"log/slog"

	"github.com/jo-hoe/reviewdesk/internal/review"
)

// ReviewerStatus summarizes one reviewer file without modifying it.
type ReviewerStatus struct {
	Reviewer  string
	Completed int
	Remaining int
	Total     int
	Missing   int
	Progress  float64
	Err       error
}

// Status reports the progress of every reviewer that has a file.
func (service *CoreService) Status() ([]ReviewerStatus, error) {
	reviewers, err := service.store.Reviewers()
	if err != nil {
		return nil, err
	}

	statuses := make([]ReviewerStatus, 0, len(reviewers))
	for _, reviewer := range reviewers {
		// A file whose name is not a normalized ID would be read through a
		// different path, so it is reported instead of loaded.
		id, err := service.store.NormalizeReviewerID(reviewer)
		if err == nil && id != reviewer {
			err = fmt.Errorf("%w: file name %q is not a normalized reviewer id", review.ErrInvalidReviewer, reviewer)
		}
		if err != nil {
			slog.Warn("skipping reviewer file in status", "reviewer", reviewer, "error", err)
			statuses = append(statuses, ReviewerStatus{Reviewer: reviewer, Err: err})
			continue
		}

		session, err := service.loadSession(id, false)
		if err != nil {
			slog.Warn("skipping reviewer in status", "reviewer", reviewer, "error", err)
			statuses = append(statuses, ReviewerStatus{Reviewer: reviewer, Err: err})
			continue
		}

		existing := make(map[string]bool, len(session.Images))
		for _, img := range session.Images {
			existing[img.Name] = true
		}
		missing := 0
		for _, name := range session.Reviewed.ImageNames() {
			if !existing[name] {
				missing++
			}
		}

		statuses = append(statuses, ReviewerStatus{
			Reviewer:  session.Reviewer,
			Completed: session.Completed() - missing,
			Remaining: session.RemainingCount(),
			Total:     session.Total(),
			Missing:   missing,
			Progress:  progress(session.Completed()-missing, session.Total()),
			Err:       session.LoadError,
		})
	}
	return statuses, nil
}

func progress(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return min(1, float64(completed)/float64(total))
}
