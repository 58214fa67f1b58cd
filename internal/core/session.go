package core

import (
	"github.com/jo-hoe/reviewdesk/internal/imagesource"
	"github.com/jo-hoe/reviewdesk/internal/review"
)

// Session is everything one page load knows about a reviewer.
type Session struct {
	Reviewer string

	Images    []imagesource.Image
	Reviewed  *review.Table
	Remaining []imagesource.Image

	// MissingImages lists reviewed image names that are no longer in the
	// image folder; their rows were pruned from the reviewer file.
	MissingImages []string
	// LoadError is set when the reviewer file existed but could not be read.
	LoadError error
}

func (s *Session) Total() int {
	return len(s.Images)
}

func (s *Session) Completed() int {
	return s.Reviewed.Len()
}

func (s *Session) RemainingCount() int {
	return len(s.Remaining)
}

// Progress is Completed/Total clamped to [0, 1], and 0 for an empty folder.
func (s *Session) Progress() float64 {
	return progress(s.Completed(), s.Total())
}

func (s *Session) ProgressPercent() int {
	return int(s.Progress() * 100)
}

// Current is the next image to review, i.e. the first remaining one.
func (s *Session) Current() (imagesource.Image, bool) {
	if len(s.Remaining) == 0 {
		return imagesource.Image{}, false
	}
	return s.Remaining[0], true
}

func (s *Session) HasImage(name string) bool {
	for _, img := range s.Images {
		if img.Name == name {
			return true
		}
	}
	return false
}

// newSession derives the remaining images from the folder listing and the
// reviewed table. Rows for images missing from the folder are pruned when
// prune is set.
func newSession(reviewer string, images []imagesource.Image, reviewed *review.Table, prune bool) *Session {
	existing := make(map[string]bool, len(images))
	for _, img := range images {
		existing[img.Name] = true
	}

	session := &Session{
		Reviewer: reviewer,
		Images:   images,
		Reviewed: reviewed,
	}
	if prune {
		session.MissingImages = reviewed.Prune(existing)
	}

	done := make(map[string]bool, reviewed.Len())
	for _, name := range reviewed.ImageNames() {
		done[name] = true
	}
	session.Remaining = make([]imagesource.Image, 0, len(images))
	for _, img := range images {
		if !done[img.Name] {
			session.Remaining = append(session.Remaining, img)
		}
	}
	return session
}
