package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-service/internal/client"
	"social-service/internal/models"
	"social-service/internal/repository/memory"
)

func seedUsers(t *testing.T) *memory.UserRepository {
	t.Helper()
	repo := memory.NewUserRepository()
	for _, u := range []models.User{
		{ID: "u1", FirstName: "Alice", LastName: "Smith", Email: "a@x.com"},
		{ID: "u2", FirstName: "Alicia", LastName: "Keys", Email: "b@x.com", BlockList: []string{"viewer"}},
		{ID: "u3", FirstName: "Bob", LastName: "Alison", Email: "c@x.com"},
	} {
		require.NoError(t, repo.Create(context.Background(), &u))
	}
	return repo
}

func TestStoreUserIndexHidesBlockers(t *testing.T) {
	idx := NewStoreUserIndex(seedUsers(t))

	users, err := idx.Search(context.Background(), "ali", "viewer", 10)
	require.NoError(t, err)

	var ids []string
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	assert.ElementsMatch(t, []string{"u1", "u3"}, ids)
}

func TestElasticUserIndexSearch(t *testing.T) {
	var gotQuery map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/_search") {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotQuery))
			_, _ = w.Write([]byte(`{"hits":{"hits":[{"_id":"u3"},{"_id":"gone"},{"_id":"u2"},{"_id":"u1"}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	idx := &ElasticUserIndex{es: &client.ESClient{Client: es}, index: "users", users: seedUsers(t)}
	users, err := idx.Search(context.Background(), "ali", "viewer", 5)
	require.NoError(t, err)

	require.Len(t, users, 2)
	assert.Equal(t, "u3", users[0].ID, "relevance order is kept")
	assert.Equal(t, "u1", users[1].ID)
	assert.EqualValues(t, 5, gotQuery["size"])
}
