package collector

import "xscraper/pkg/models"

// Accumulator is the identity-keyed store shared by both collection paths.
// It guarantees each post id appears at most once in the final result and
// preserves insertion order for export. It is exclusively owned by one
// collection run and mutated only by whichever collector is active.
type Accumulator struct {
	posts map[string]models.Post
	order []string
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{posts: make(map[string]models.Post)}
}

// Has reports whether the id was already collected
func (a *Accumulator) Has(id string) bool {
	_, ok := a.posts[id]
	return ok
}

// Add inserts a post unless its id is already present. Re-encountering a
// known id is a no-op and returns false.
func (a *Accumulator) Add(post models.Post) bool {
	if post.ID == "" {
		return false
	}
	if _, ok := a.posts[post.ID]; ok {
		return false
	}
	a.posts[post.ID] = post
	a.order = append(a.order, post.ID)
	return true
}

// Len returns the number of unique posts collected so far
func (a *Accumulator) Len() int {
	return len(a.posts)
}

// Posts exports the collected posts in insertion order
func (a *Accumulator) Posts() []models.Post {
	out := make([]models.Post, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.posts[id])
	}
	return out
}
