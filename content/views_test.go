package content_test

import (
	"strings"
	"testing"

	"github.com/kasuganosora/questfolio/content"
	"github.com/kasuganosora/questfolio/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateProgress(t *testing.T) {
	mk := func(done ...bool) []model.SubQuest {
		out := make([]model.SubQuest, len(done))
		for i, d := range done {
			out[i].IsCompleted = d
		}
		return out
	}
	tests := []struct {
		name string
		in   []model.SubQuest
		want content.Progress
	}{
		{"empty", nil, content.Progress{}},
		{"none done", mk(false, false), content.Progress{Completed: 0, Total: 2, Percentage: 0}},
		{"half", mk(true, false), content.Progress{Completed: 1, Total: 2, Percentage: 50}},
		{"one third", mk(true, false, false), content.Progress{Completed: 1, Total: 3, Percentage: 33}},
		{"two thirds", mk(true, true, false), content.Progress{Completed: 2, Total: 3, Percentage: 67}},
		{"all", mk(true, true, true), content.Progress{Completed: 3, Total: 3, Percentage: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, content.CalculateProgress(tt.in))
		})
	}
}

func TestQuestWithDetails_PortfolioScenario(t *testing.T) {
	svc, _ := newService(t)
	mustProject(t, svc, "Portfolio Website", model.VisibilityPublic)
	q := mustQuest(t, svc, "MVP", model.VisibilityPublic)
	mustSubQuest(t, svc, q.ID, "Landing page", true)
	mustSubQuest(t, svc, q.ID, "Contact form", false)
	tag := mustTag(t, svc, "web")
	_, err := svc.ReplaceTags(adminCtx(), content.KindQuest, q.ID, []string{tag.ID})
	require.NoError(t, err)

	d, err := svc.QuestWithDetails(publicCtx(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, "MVP", d.Title)
	assert.Equal(t, content.Progress{Completed: 1, Total: 2, Percentage: 50}, d.Progress)
	require.Len(t, d.SubQuests, 2)
	assert.Equal(t, "Landing page", d.SubQuests[0].Title)
	require.Len(t, d.Tags, 1)
	assert.Equal(t, "web", d.Tags[0].Name)
}

func TestQuestsWithDetails_EmptySlices(t *testing.T) {
	svc, _ := newService(t)
	mustQuest(t, svc, "Bare", model.VisibilityPublic)

	list, err := svc.QuestsWithDetails(publicCtx(), content.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].SubQuests)
	assert.NotNil(t, list[0].Tags)
	assert.Equal(t, content.Progress{}, list[0].Progress)
}

type upperRenderer struct{}

func (upperRenderer) Render(md string) string { return "<p>" + strings.ToUpper(md) + "</p>" }

func TestPageWithDetails_HidesPrivateLinks(t *testing.T) {
	svc, _ := newService(t)
	svc.SetRenderer(upperRenderer{})
	page := mustPage(t, svc, "Log", model.PageTypeDevlog, model.VisibilityPublic)
	pubQ := mustQuest(t, svc, "Public quest", model.VisibilityPublic)
	privQ := mustQuest(t, svc, "Private quest", model.VisibilityPrivate)
	pubP := mustProject(t, svc, "Public project", model.VisibilityPublic)
	privP := mustProject(t, svc, "Private project", model.VisibilityPrivate)
	_, err := svc.ReplaceConnections(adminCtx(), page.ID, []string{pubQ.ID, privQ.ID}, []string{pubP.ID, privP.ID})
	require.NoError(t, err)

	d, err := svc.PageWithDetails(publicCtx(), page.ID)
	require.NoError(t, err)
	require.Len(t, d.Quests, 1)
	assert.Equal(t, pubQ.ID, d.Quests[0].ID)
	require.Len(t, d.Projects, 1)
	assert.Equal(t, pubP.ID, d.Projects[0].ID)
	assert.Equal(t, "<p># LOG</p>", d.HTML)
	assert.NotNil(t, d.Tags)

	d, err = svc.PageWithDetails(adminCtx(), page.ID)
	require.NoError(t, err)
	assert.Len(t, d.Quests, 2)
	assert.Len(t, d.Projects, 2)
}

func TestRelatedDevlogs(t *testing.T) {
	svc, _ := newService(t)
	q := mustQuest(t, svc, "MVP", model.VisibilityPublic)
	p := mustProject(t, svc, "Site", model.VisibilityPublic)
	page := mustPage(t, svc, "Overview", model.PageTypeProject, model.VisibilityPublic)
	viaQuest := mustPage(t, svc, "Devlog 1", model.PageTypeDevlog, model.VisibilityPublic)
	viaProject := mustPage(t, svc, "Devlog 2", model.PageTypeDevlog, model.VisibilityPublic)
	privateLog := mustPage(t, svc, "Devlog draft", model.PageTypeDevlog, model.VisibilityPrivate)
	blog := mustPage(t, svc, "Blog post", model.PageTypeBlog, model.VisibilityPublic)
	unrelated := mustPage(t, svc, "Devlog 3", model.PageTypeDevlog, model.VisibilityPublic)

	connect := func(pageID string, quests, projects []string) {
		_, err := svc.ReplaceConnections(adminCtx(), pageID, quests, projects)
		require.NoError(t, err)
	}
	connect(page.ID, []string{q.ID}, []string{p.ID})
	connect(viaQuest.ID, []string{q.ID}, nil)
	connect(viaProject.ID, nil, []string{p.ID})
	connect(privateLog.ID, []string{q.ID}, nil)
	connect(blog.ID, []string{q.ID}, nil)
	_ = unrelated

	logs, err := svc.RelatedDevlogs(publicCtx(), page.ID)
	require.NoError(t, err)
	titles := make([]string, len(logs))
	for i, l := range logs {
		titles[i] = l.Title
	}
	assert.ElementsMatch(t, []string{"Devlog 1", "Devlog 2"}, titles)

	logs, err = svc.RelatedDevlogs(adminCtx(), page.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	// The page itself is never its own related devlog.
	logs, err = svc.RelatedDevlogs(publicCtx(), viaQuest.ID)
	require.NoError(t, err)
	for _, l := range logs {
		assert.NotEqual(t, viaQuest.ID, l.ID)
	}

	lonely := mustPage(t, svc, "Lonely", model.PageTypeDevlog, model.VisibilityPublic)
	logs, err = svc.RelatedDevlogs(publicCtx(), lonely.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestRelatedIssues_Buckets(t *testing.T) {
	svc, _ := newService(t)
	q := mustQuest(t, svc, "MVP", model.VisibilityPublic)
	privQ := mustQuest(t, svc, "Hidden", model.VisibilityPrivate)
	p := mustProject(t, svc, "Site", model.VisibilityPublic)
	page := mustPage(t, svc, "Overview", model.PageTypeProject, model.VisibilityPublic)
	_, err := svc.ReplaceConnections(adminCtx(), page.ID, []string{q.ID, privQ.ID}, []string{p.ID})
	require.NoError(t, err)

	file := func(kind, parent, title string) {
		_, err := svc.CreateIssue(adminCtx(), content.IssueInput{
			AttachedToType: kind, AttachedToID: parent, IssueType: model.IssueTypeIssue, Title: title,
		})
		require.NoError(t, err)
	}
	file(model.ParentProject, p.ID, "site bug")
	file(model.ParentQuest, q.ID, "quest bug")
	file(model.ParentQuest, privQ.ID, "hidden bug")

	ri, err := svc.RelatedIssues(publicCtx(), page.ID, false)
	require.NoError(t, err)
	require.Len(t, ri.Direct, 1)
	assert.Equal(t, "site bug", ri.Direct[0].Title)
	assert.Empty(t, ri.ViaQuests)

	ri, err = svc.RelatedIssues(publicCtx(), page.ID, true)
	require.NoError(t, err)
	require.Len(t, ri.ViaQuests, 1)
	assert.Equal(t, "quest bug", ri.ViaQuests[0].Title)

	ri, err = svc.RelatedIssues(adminCtx(), page.ID, true)
	require.NoError(t, err)
	assert.Len(t, ri.ViaQuests, 2)
}

func TestPageView(t *testing.T) {
	svc, _ := newService(t)
	q := mustQuest(t, svc, "MVP", model.VisibilityPublic)
	page := mustPage(t, svc, "Overview", model.PageTypeProject, model.VisibilityPublic)
	other := mustPage(t, svc, "Devlog 1", model.PageTypeDevlog, model.VisibilityPublic)
	tag := mustTag(t, svc, "web")
	_, err := svc.ReplaceTags(adminCtx(), content.KindPage, page.ID, []string{tag.ID})
	require.NoError(t, err)
	_, err = svc.ReplaceConnections(adminCtx(), page.ID, []string{q.ID}, nil)
	require.NoError(t, err)
	_, err = svc.ReplaceConnections(adminCtx(), other.ID, []string{q.ID}, nil)
	require.NoError(t, err)
	_, err = svc.CreateIssue(adminCtx(), content.IssueInput{
		AttachedToType: model.ParentQuest, AttachedToID: q.ID, IssueType: model.IssueTypeImprovement, Title: "idea",
	})
	require.NoError(t, err)

	v, err := svc.PageView(publicCtx(), page.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "Overview", v.Title)
	assert.Len(t, v.Tags, 1)
	assert.Len(t, v.Quests, 1)
	require.Len(t, v.RelatedDevlogs, 1)
	assert.Equal(t, other.ID, v.RelatedDevlogs[0].ID)
	assert.Len(t, v.RelatedIssues.ViaQuests, 1)
	assert.Empty(t, v.RelatedIssues.Direct)

	draft := mustPage(t, svc, "Draft", model.PageTypeNotes, model.VisibilityPrivate)
	_, err = svc.PageView(publicCtx(), draft.ID, true)
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestQuestLogSummary(t *testing.T) {
	svc, _ := newService(t)
	q := mustQuest(t, svc, "MVP", model.VisibilityPublic)
	mustSubQuest(t, svc, q.ID, "a", true)
	mustSubQuest(t, svc, q.ID, "b", false)
	hidden := mustQuest(t, svc, "Hidden", model.VisibilityPrivate)
	mustSubQuest(t, svc, hidden.ID, "c", true)

	log, err := svc.QuestLogSummary(publicCtx())
	require.NoError(t, err)
	assert.Equal(t, 1, log.Total)
	assert.Equal(t, 1, log.ByStatus[model.QuestStatusInProgress])
	assert.Equal(t, 0, log.ByStatus[model.QuestStatusCompleted])
	assert.Equal(t, 1, log.ByType[model.QuestTypeMain])
	assert.Equal(t, content.Progress{Completed: 1, Total: 2, Percentage: 50}, log.Progress)

	log, err = svc.QuestLogSummary(adminCtx())
	require.NoError(t, err)
	assert.Equal(t, 2, log.Total)
	assert.Equal(t, content.Progress{Completed: 2, Total: 3, Percentage: 67}, log.Progress)
}

func TestHome(t *testing.T) {
	svc, _ := newService(t)
	active := mustQuest(t, svc, "Active main", model.VisibilityPublic)
	mustSubQuest(t, svc, active.ID, "a", true)
	_, err := svc.CreateQuest(adminCtx(), content.QuestInput{Title: "Side", QuestType: model.QuestTypeSide, Status: model.QuestStatusInProgress, Visibility: model.VisibilityPublic})
	require.NoError(t, err)
	_, err = svc.CreateQuest(adminCtx(), content.QuestInput{Title: "Done", QuestType: model.QuestTypeMain, Status: model.QuestStatusCompleted, Visibility: model.VisibilityPublic})
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		mustPage(t, svc, "Post", model.PageTypeBlog, model.VisibilityPublic)
	}
	mustPage(t, svc, "Draft", model.PageTypeBlog, model.VisibilityPrivate)

	h, err := svc.Home(publicCtx())
	require.NoError(t, err)
	require.NotNil(t, h.Character)
	require.Len(t, h.MainQuests, 1)
	assert.Equal(t, "Active main", h.MainQuests[0].Title)
	assert.Equal(t, 100, h.MainQuests[0].Progress.Percentage)
	assert.Len(t, h.RecentPages, 5)
	for _, p := range h.RecentPages {
		assert.Equal(t, model.VisibilityPublic, p.Visibility)
	}
}
