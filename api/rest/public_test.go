package rest_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublic_CachesAnonymousViews(t *testing.T) {
	s := newServer(t)
	token := s.login(t)
	s.create(t, token, "/api/admin/tags", map[string]string{"name": "Go"})

	w := s.do(http.MethodGet, "/api/public/tags", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "miss", w.Header().Get("X-Cache"))

	w = s.do(http.MethodGet, "/api/public/tags", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hit", w.Header().Get("X-Cache"))
	tags := decode[map[string][]map[string]interface{}](t, w)["tags"]
	require.Len(t, tags, 1)
	assert.Equal(t, "Go", tags[0]["name"])

	// A write drops every cached view.
	s.create(t, token, "/api/admin/tags", map[string]string{"name": "Rust"})
	w = s.do(http.MethodGet, "/api/public/tags", nil)
	assert.Equal(t, "miss", w.Header().Get("X-Cache"))
	assert.Len(t, decode[map[string][]map[string]interface{}](t, w)["tags"], 2)
}

func TestPublic_SignedInReadsThrough(t *testing.T) {
	s := newServer(t)
	token := s.login(t)

	w := s.do(http.MethodGet, "/api/public/quests", nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Cache"))
}

func TestPublic_HidesPrivateContent(t *testing.T) {
	s := newServer(t)
	token := s.login(t)
	pub := s.create(t, token, "/api/admin/quests", map[string]string{
		"title": "Ship v1", "quest_type": "main", "status": "in_progress", "visibility": "public",
	})
	priv := s.create(t, token, "/api/admin/quests", map[string]string{
		"title": "Secret", "quest_type": "side", "visibility": "private",
	})

	w := s.do(http.MethodGet, "/api/public/quests", nil)
	require.Equal(t, http.StatusOK, w.Code)
	quests := decode[map[string][]map[string]interface{}](t, w)["quests"]
	require.Len(t, quests, 1)
	assert.Equal(t, pub, quests[0]["id"])

	w = s.do(http.MethodGet, "/api/public/quests/"+priv, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "not found")

	// The owner sees both.
	w = s.do(http.MethodGet, "/api/public/quests", nil, "Authorization", "Bearer "+token)
	assert.Len(t, decode[map[string][]map[string]interface{}](t, w)["quests"], 2)
}

type questResponse struct {
	Quest struct {
		Title    string `json:"title"`
		Progress struct {
			Completed  int `json:"completed"`
			Total      int `json:"total"`
			Percentage int `json:"percentage"`
		} `json:"progress"`
	} `json:"quest"`
	Issues []struct {
		Title string `json:"title"`
	} `json:"issues"`
}

func TestPublic_QuestWithIssues(t *testing.T) {
	s := newServer(t)
	token := s.login(t)
	q := s.create(t, token, "/api/admin/quests", map[string]string{
		"title": "Ship v1", "quest_type": "main", "visibility": "public",
	})
	s.create(t, token, "/api/admin/quests/"+q+"/subquests", map[string]interface{}{"title": "write docs", "is_completed": true})
	s.create(t, token, "/api/admin/quests/"+q+"/subquests", map[string]interface{}{"title": "tag release"})
	s.create(t, token, "/api/admin/issues", map[string]interface{}{
		"attached_to_type": "quest", "attached_to_id": q, "issue_type": "issues", "severity": "major", "title": "crash on start",
	})

	w := s.do(http.MethodGet, "/api/public/quests/"+q, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[questResponse](t, w)
	assert.Equal(t, "Ship v1", resp.Quest.Title)
	assert.Equal(t, 1, resp.Quest.Progress.Completed)
	assert.Equal(t, 2, resp.Quest.Progress.Total)
	assert.Equal(t, 50, resp.Quest.Progress.Percentage)
	require.Len(t, resp.Issues, 1)
	assert.Equal(t, "crash on start", resp.Issues[0].Title)
}

func TestPublic_PageBySlug(t *testing.T) {
	s := newServer(t)
	token := s.login(t)
	id := s.create(t, token, "/api/admin/pages", map[string]string{
		"title": "Hello", "page_type": "blog", "slug": "hello-world", "content": "**hi**", "visibility": "public",
	})

	for _, ref := range []string{id, "hello-world"} {
		w := s.do(http.MethodGet, "/api/public/pages/"+ref, nil)
		require.Equal(t, http.StatusOK, w.Code, ref)
		page := decode[map[string]interface{}](t, w)
		assert.Equal(t, id, page["id"])
		assert.Contains(t, page["html"], "<strong>hi</strong>")
	}

	w := s.do(http.MethodGet, "/api/public/pages/missing-slug", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublic_InvalidFilter(t *testing.T) {
	s := newServer(t)
	w := s.do(http.MethodGet, "/api/public/quests?type=epic", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPublic_HomeAndQuestLog(t *testing.T) {
	s := newServer(t)
	token := s.login(t)
	s.create(t, token, "/api/admin/quests", map[string]string{
		"title": "Main", "quest_type": "main", "status": "in_progress", "visibility": "public",
	})
	s.create(t, token, "/api/admin/quests", map[string]string{
		"title": "Side", "quest_type": "side", "status": "completed", "visibility": "public",
	})

	w := s.do(http.MethodGet, "/api/public/home", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	home := decode[map[string]interface{}](t, w)
	assert.Len(t, home["main_quests"], 1)

	w = s.do(http.MethodGet, "/api/public/questlog", nil)
	require.Equal(t, http.StatusOK, w.Code)
	log := decode[map[string]interface{}](t, w)
	assert.EqualValues(t, 2, log["total"])
	assert.EqualValues(t, 1, log["by_status"].(map[string]interface{})["completed"])
}
