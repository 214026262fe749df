package resolver

import (
	"testing"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
)

func TestRulesCache_LRU(t *testing.T) {
	c := NewRulesCache(2)
	if _, _, ok := c.Get("a"); ok {
		t.Fatal("expected miss")
	}
	c.Set("a", models.EntitySearchResult{EntityName: "a"}, true)
	r, found, ok := c.Get("a")
	if !ok || !found || r.EntityName != "a" {
		t.Errorf("Get: got %+v, %v, %v", r, found, ok)
	}
	c.Set("b", models.EntitySearchResult{}, false)
	c.Set("c", models.EntitySearchResult{}, false) // evicts a
	if _, _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, found, ok := c.Get("b"); !ok || found {
		t.Error("expected b to remain as a negative entry")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestRulesCache_Unbounded(t *testing.T) {
	c := NewRulesCache(0)
	for _, k := range []string{"a", "b", "c", "d"} {
		c.Set(k, models.EntitySearchResult{}, false)
	}
	if c.Len() != 4 {
		t.Errorf("Len() = %d, want 4", c.Len())
	}
	c.Reset()
	if c.Len() != 0 {
		t.Errorf("Len() after Reset = %d", c.Len())
	}
}
