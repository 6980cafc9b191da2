package cache

import (
	"context"
	"testing"
	"time"
)

type payload struct {
	Values []string `json:"values"`
}

func TestMemoryCacheGetSet(t *testing.T) {
	c := NewMemoryCache(16, time.Minute)
	ctx := context.Background()

	var got payload
	if c.Get(ctx, KindFacets, "k", &got) {
		t.Fatal("expected miss on empty cache")
	}

	c.Set(ctx, KindFacets, "k", payload{Values: []string{"Rock", "Jazz"}})
	if !c.Get(ctx, KindFacets, "k", &got) {
		t.Fatal("expected hit after Set")
	}
	if len(got.Values) != 2 || got.Values[0] != "Rock" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestMemoryCacheVersionBumpChangesKeys(t *testing.T) {
	c := NewMemoryCache(16, time.Minute)
	ctx := context.Background()

	v0 := c.Version(ctx, 7)
	c.Set(ctx, KindFacets, FacetsKey(7, v0), payload{Values: []string{"old"}})

	c.Bump(ctx, 7)
	v1 := c.Version(ctx, 7)
	if v1 != v0+1 {
		t.Fatalf("version = %d, want %d", v1, v0+1)
	}

	var got payload
	if c.Get(ctx, KindFacets, FacetsKey(7, v1), &got) {
		t.Fatal("entry cached under the old version must not be visible")
	}
	if c.Version(ctx, 8) != 0 {
		t.Fatal("other owners keep their own version")
	}
}

func TestKeys(t *testing.T) {
	if got := FacetsKey(3, 9); got != "catalog:facets:3:v9" {
		t.Fatalf("FacetsKey = %q", got)
	}
	if got := SuggestKey(3, 9, "  RoCk ", 10); got != "catalog:suggest:3:v9:10:rock" {
		t.Fatalf("SuggestKey = %q", got)
	}
}

func TestNop(t *testing.T) {
	var c CatalogCache = Nop{}
	c.Set(context.Background(), KindSuggest, "k", payload{})
	var got payload
	if c.Get(context.Background(), KindSuggest, "k", &got) {
		t.Fatal("Nop cache never hits")
	}
}
