package schema

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/poebundle/pkg/dat"
)

func strp(s string) *string { return &s }

func TestCollection_For_ExactEditionWins(t *testing.T) {
	c := &Collection{Tables: []TableSchema{
		{ValidFor: 1, Name: "Stats", Columns: []dat.ColumnSchema{{Name: strp("edition1")}}},
		{ValidFor: commonEdition, Name: "Stats", Columns: []dat.ColumnSchema{{Name: strp("common")}}},
	}}

	got, ok := c.For("stats", 1)
	require.True(t, ok)
	assert.Equal(t, "edition1", *got.Columns[0].Name)
}

func TestCollection_For_FallsBackToCommon(t *testing.T) {
	c := &Collection{Tables: []TableSchema{
		{ValidFor: commonEdition, Name: "Stats", Columns: []dat.ColumnSchema{{Name: strp("common")}}},
	}}

	got, ok := c.For("stats", 2)
	require.True(t, ok)
	assert.Equal(t, "common", *got.Columns[0].Name)
}

func TestCollection_For_NoMatch(t *testing.T) {
	c := &Collection{Tables: []TableSchema{
		{ValidFor: 1, Name: "Mods"},
	}}
	_, ok := c.For("stats", 2)
	assert.False(t, ok)
}

func TestURLProvider_FetchesAndCaches(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("ETag", `"v1"`)
		fmt.Fprint(w, `{"tables":[{"validFor":3,"name":"Stats","columns":[]}]}`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := NewURLProvider(srv.URL, dir)

	c1, err := p.Schema(context.Background())
	require.NoError(t, err)
	require.Len(t, c1.Tables, 1)
	assert.Equal(t, 1, hits)

	// Second call within the revalidation window must use the cache.
	c2, err := p.Schema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, c1.Tables[0].Name, c2.Tables[0].Name)
	assert.Equal(t, 1, hits)
}

func TestURLProvider_RevalidatesStaleCacheWith304(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		fmt.Fprint(w, `{"tables":[{"validFor":3,"name":"Stats","columns":[]}]}`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := NewURLProvider(srv.URL, dir)
	p.RevalidateAfter = 0 // force every call to revalidate

	_, err := p.Schema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, hits)

	c2, err := p.Schema(context.Background())
	require.NoError(t, err)
	require.Len(t, c2.Tables, 1)
	assert.Equal(t, 2, hits)
}

func TestURLProvider_FallsBackToCacheOnServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("ETag", `"v1"`)
			fmt.Fprint(w, `{"tables":[{"validFor":3,"name":"Stats","columns":[]}]}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := NewURLProvider(srv.URL, dir)
	p.RevalidateAfter = 0

	_, err := p.Schema(context.Background())
	require.NoError(t, err)

	c2, err := p.Schema(context.Background())
	require.NoError(t, err)
	require.Len(t, c2.Tables, 1)
}

func TestURLProvider_NoCacheAndFetchFailsIsError(t *testing.T) {
	dir := t.TempDir()
	p := NewURLProvider("http://127.0.0.1:0/nope", dir)
	_, err := p.Schema(context.Background())
	assert.Error(t, err)
}
