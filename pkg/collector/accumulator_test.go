package collector

import (
	"testing"

	"xscraper/pkg/models"
)

func TestAccumulatorDedup(t *testing.T) {
	acc := NewAccumulator()

	first := models.Post{ID: "123", Text: "from the stream", TimestampMs: 1000}
	second := models.Post{ID: "123", Text: "from the browser", TimestampMs: 1000}

	if !acc.Add(first) {
		t.Fatal("first insert should succeed")
	}
	if acc.Add(second) {
		t.Fatal("duplicate id should be a no-op")
	}
	if acc.Len() != 1 {
		t.Fatalf("expected 1 post, got %d", acc.Len())
	}

	// the first writer wins; the record is never mutated afterwards
	if got := acc.Posts()[0].Text; got != "from the stream" {
		t.Errorf("post was overwritten: %q", got)
	}
}

func TestAccumulatorInsertionOrder(t *testing.T) {
	acc := NewAccumulator()
	ids := []string{"c", "a", "b"}
	for i, id := range ids {
		acc.Add(models.Post{ID: id, TimestampMs: int64(i + 1)})
	}

	posts := acc.Posts()
	for i, id := range ids {
		if posts[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, posts[i].ID, id)
		}
	}
}

func TestAccumulatorRejectsEmptyID(t *testing.T) {
	acc := NewAccumulator()
	if acc.Add(models.Post{TimestampMs: 1}) {
		t.Error("post without id should be rejected")
	}
}
