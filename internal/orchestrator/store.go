package orchestrator

import (
	"image"
	"sync"
)

// Store holds the screenshot captured just before the overlay appears,
// so downstream model calls see the screen without our own chrome on
// top. Taking the image clears it; with nothing stored, a fresh
// capture is taken instead.
type Store struct {
	mu      sync.Mutex
	img     image.Image
	capture func() (image.Image, error)
}

// NewStore creates a store. capture may be nil; Take then returns nil
// when nothing was stored.
func NewStore(capture func() (image.Image, error)) *Store {
	return &Store{capture: capture}
}

// Put replaces the stored screenshot.
func (s *Store) Put(img image.Image) {
	s.mu.Lock()
	s.img = img
	s.mu.Unlock()
}

// Take returns the stored screenshot and clears it, falling back to a
// fresh capture.
func (s *Store) Take() image.Image {
	s.mu.Lock()
	img := s.img
	s.img = nil
	s.mu.Unlock()

	if img != nil {
		return img
	}
	if s.capture == nil {
		return nil
	}
	fresh, err := s.capture()
	if err != nil {
		return nil
	}
	return fresh
}
