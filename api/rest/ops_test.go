package rest_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questfolio/api/rest"
	"github.com/kasuganosora/questfolio/content"
	"github.com/kasuganosora/questfolio/hook"
	"github.com/kasuganosora/questfolio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opsGet(s *server, path string) int {
	return s.do(http.MethodGet, path, nil, "X-Admin-Key", adminKey).Code
}

func TestOps_RequiresAdminKey(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/ops/metrics", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/ops/metrics", nil, "X-Admin-Key", "wrong").Code)
	assert.Equal(t, http.StatusOK, opsGet(s, "/api/ops/metrics"))
}

func TestOps_DisabledWithoutKey(t *testing.T) {
	r := gin.New()
	r.GET("/x", rest.AdminAuth(""), func(c *gin.Context) { c.Status(http.StatusOK) })
	s := &server{r: r}
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/x", nil, "X-Admin-Key", "").Code)
}

type metricsResponse struct {
	ChangeHooks []string `json:"change_hooks"`
}

func TestOps_MetricsListChangeHooks(t *testing.T) {
	hooks := hook.NewCenter(testutil.Logger())
	noop := func(context.Context, content.Change) error { return nil }
	hooks.On(hook.Activity, 10, noop)
	hooks.On(hook.ViewCache, 0, noop)
	s := newServer(t, func(d *rest.Deps) { d.Hooks = hooks })

	w := s.do(http.MethodGet, "/api/ops/metrics", nil, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[metricsResponse](t, w)
	assert.Equal(t, []string{hook.ViewCache, hook.Activity}, got.ChangeHooks)

	// Without a hook center the field is left out.
	w = newServer(t).do(http.MethodGet, "/api/ops/metrics", nil, "X-Admin-Key", adminKey)
	assert.NotContains(t, w.Body.String(), "change_hooks")
}

type tasksResponse struct {
	Tasks []struct {
		Name string `json:"name"`
		Runs int64  `json:"runs"`
	} `json:"tasks"`
}

func TestOps_RunTask(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodPost, "/api/ops/scheduler/"+rest.TaskTagRanking+"/run", nil, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/ops/scheduler/nope/run", nil, "X-Admin-Key", adminKey)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/ops/scheduler", nil, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[tasksResponse](t, w)
	runs := map[string]int64{}
	for _, task := range resp.Tasks {
		runs[task.Name] = task.Runs
	}
	assert.EqualValues(t, 1, runs[rest.TaskTagRanking])
	assert.EqualValues(t, 0, runs[rest.TaskQuestLogRefresh])
}

func TestOps_RefreshQuestLogWarmsCache(t *testing.T) {
	s := newServer(t)
	token := s.login(t)
	s.create(t, token, "/api/admin/quests", map[string]string{"title": "Q", "quest_type": "main", "visibility": "public"})
	s.create(t, token, "/api/admin/quests", map[string]string{"title": "Hidden", "quest_type": "main"})

	w := s.do(http.MethodPost, "/api/ops/questlog/refresh", nil, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/public/questlog", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hit", w.Header().Get("X-Cache"))
	assert.EqualValues(t, 1, decode[map[string]interface{}](t, w)["total"])
}
