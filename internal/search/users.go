// Package search finds users by name for the search-user endpoint.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"social-service/internal/client"
	"social-service/internal/models"
	"social-service/internal/util"
)

// UserIndex keeps a name index of users. Search never returns users who
// have blocked viewerID.
type UserIndex interface {
	Index(ctx context.Context, user *models.User) error
	Remove(ctx context.Context, userID string) error
	Search(ctx context.Context, name, viewerID string, limit int) ([]models.User, error)
}

type UserStore interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	SearchByName(ctx context.Context, name, viewerID string, limit int) ([]models.User, error)
}

const userMapping = `{
	"mappings": {
		"properties": {
			"firstName": {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"lastName":  {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"fullName":  {"type": "search_as_you_type"}
		}
	}
}`

type userDocument struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	FullName  string `json:"fullName"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

// ElasticUserIndex stores names in Elasticsearch and resolves hits back to
// full users through the primary store.
type ElasticUserIndex struct {
	es    *client.ESClient
	index string
	users UserStore
}

func NewElasticUserIndex(ctx context.Context, es *client.ESClient, index string, users UserStore) (*ElasticUserIndex, error) {
	if err := es.EnsureIndex(ctx, index, userMapping); err != nil {
		return nil, err
	}
	return &ElasticUserIndex{es: es, index: index, users: users}, nil
}

func (i *ElasticUserIndex) Index(ctx context.Context, user *models.User) error {
	doc := userDocument{FirstName: user.FirstName, LastName: user.LastName, FullName: user.FullName()}
	if err := i.es.IndexDocument(ctx, i.index, user.ID, doc); err != nil {
		return fmt.Errorf("index user %s: %w", user.ID, err)
	}
	return nil
}

func (i *ElasticUserIndex) Remove(ctx context.Context, userID string) error {
	return i.es.DeleteDocument(ctx, i.index, userID)
}

func (i *ElasticUserIndex) Search(ctx context.Context, name, viewerID string, limit int) ([]models.User, error) {
	query := map[string]any{
		"size": limit,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     name,
				"type":      "bool_prefix",
				"fields":    []string{"fullName", "fullName._2gram", "fullName._3gram", "firstName", "lastName"},
				"fuzziness": "AUTO",
			},
		},
		"_source": false,
	}

	res, err := i.es.Search(ctx, i.index, query)
	if err != nil {
		return nil, err
	}
	var parsed searchResponse
	if err := i.es.ParseResponse(res, &parsed); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		ids = append(ids, h.ID)
	}
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	found, err := i.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}

	// Keep relevance order, drop stale hits and users hiding from the viewer.
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			util.Debug("Search hit without user", zap.String("user_id", id))
			continue
		}
		if u.HasBlocked(viewerID) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// StoreUserIndex answers searches straight from the user store.
type StoreUserIndex struct {
	users UserStore
}

func NewStoreUserIndex(users UserStore) *StoreUserIndex {
	return &StoreUserIndex{users: users}
}

func (*StoreUserIndex) Index(context.Context, *models.User) error { return nil }

func (*StoreUserIndex) Remove(context.Context, string) error { return nil }

func (s *StoreUserIndex) Search(ctx context.Context, name, viewerID string, limit int) ([]models.User, error) {
	return s.users.SearchByName(ctx, name, viewerID, limit)
}
