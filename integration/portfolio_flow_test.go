package integration

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolioFlow(t *testing.T) {
	ts := NewTestServer(t)
	token, _ := ts.Login(t)

	conn := ts.DialWS(t, token)
	RecvType(t, conn, "hello", 3*time.Second)

	// The "Portfolio Website" project with its "MVP" quest.
	project := ts.Create(t, token, "/api/admin/projects", map[string]string{
		"title": "Portfolio Website", "status": "active", "visibility": "public",
	})
	mvp := ts.Create(t, token, "/api/admin/quests", map[string]string{
		"title": "MVP", "quest_type": "main", "status": "in_progress", "visibility": "public",
	})
	ts.Create(t, token, "/api/admin/quests/"+mvp+"/subquests", map[string]interface{}{"title": "Design", "is_completed": true})
	ts.Create(t, token, "/api/admin/quests/"+mvp+"/subquests", map[string]interface{}{"title": "Build"})
	ts.Create(t, token, "/api/admin/issues", map[string]string{
		"attached_to_type": "quest", "attached_to_id": mvp, "issue_type": "issues", "severity": "minor", "title": "Slow build",
	})

	changed := RecvType(t, conn, "changed", 3*time.Second)
	var ch struct {
		Kind string `json:"kind"`
		ID   string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(changed.Payload, &ch))
	assert.Equal(t, "project", ch.Kind)
	assert.Equal(t, project, ch.ID)

	// Progress is {1, 2, 50}.
	var quest struct {
		Quest struct {
			Progress struct {
				Completed  int `json:"completed"`
				Total      int `json:"total"`
				Percentage int `json:"percentage"`
			} `json:"progress"`
		} `json:"quest"`
		Issues []json.RawMessage `json:"issues"`
	}
	ReadJSON(t, ts.Get(t, "/api/public/quests/"+mvp, ""), &quest)
	assert.Equal(t, 1, quest.Quest.Progress.Completed)
	assert.Equal(t, 2, quest.Quest.Progress.Total)
	assert.Equal(t, 50, quest.Quest.Progress.Percentage)
	assert.Len(t, quest.Issues, 1)

	// Two devlogs on the same quest see each other.
	day1 := ts.Create(t, token, "/api/admin/pages", map[string]string{
		"title": "Day 1", "page_type": "devlog", "visibility": "public", "content": "started",
	})
	day2 := ts.Create(t, token, "/api/admin/pages", map[string]string{
		"title": "Day 2", "page_type": "devlog", "visibility": "public", "content": "kept going",
	})
	for _, p := range []string{day1, day2} {
		resp := ts.Do(t, http.MethodPut, "/api/admin/pages/"+p+"/connections",
			map[string][]string{"quest_ids": {mvp}, "project_ids": {project}}, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	var page struct {
		RelatedDevlogs []struct {
			ID string `json:"id"`
		} `json:"related_devlogs"`
		RelatedIssues struct {
			ViaQuests []json.RawMessage `json:"via_quests"`
		} `json:"related_issues"`
	}
	require.Eventually(t, func() bool {
		ReadJSON(t, ts.Get(t, "/api/public/pages/"+day1, ""), &page)
		return len(page.RelatedDevlogs) == 1
	}, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, day2, page.RelatedDevlogs[0].ID)
	assert.Len(t, page.RelatedIssues.ViaQuests, 1)
}

func TestPublicCache_InvalidatedThroughPubSub(t *testing.T) {
	ts := NewTestServer(t)
	token, _ := ts.Login(t)
	ts.Create(t, token, "/api/admin/quests", map[string]string{
		"title": "One", "quest_type": "main", "visibility": "public",
	})

	questLogTotal := func() (int, string) {
		resp := ts.Get(t, "/api/public/questlog", "")
		var log struct {
			Total int `json:"total"`
		}
		cacheHeader := resp.Header.Get("X-Cache")
		ReadJSON(t, resp, &log)
		return log.Total, cacheHeader
	}

	require.Eventually(t, func() bool {
		total, _ := questLogTotal()
		return total == 1
	}, 3*time.Second, 50*time.Millisecond)
	total, hdr := questLogTotal()
	assert.Equal(t, 1, total)
	assert.Equal(t, "hit", hdr)

	// A private quest changes nothing visible, a public one does.
	ts.Create(t, token, "/api/admin/quests", map[string]string{"title": "Secret", "quest_type": "side"})
	ts.Create(t, token, "/api/admin/quests", map[string]string{
		"title": "Two", "quest_type": "side", "visibility": "public",
	})
	require.Eventually(t, func() bool {
		total, _ := questLogTotal()
		return total == 2
	}, 3*time.Second, 50*time.Millisecond)
}

func TestOps_ManualRuns(t *testing.T) {
	ts := NewTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/ops/scheduler/tag_ranking_refresh/run", nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Key", AdminKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.Get(t, "/api/ops/metrics", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
