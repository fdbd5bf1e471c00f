package content_test

import (
	"context"
	"testing"

	"github.com/kasuganosora/questfolio/config"
	"github.com/kasuganosora/questfolio/content"
	"github.com/kasuganosora/questfolio/model"
	"github.com/kasuganosora/questfolio/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*content.Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return content.NewService(db, config.ContentConfig{}, testutil.Logger()), db
}

func adminCtx() context.Context {
	return content.WithViewer(context.Background(), content.Viewer{AccountID: 1, Admin: true})
}

func publicCtx() context.Context { return context.Background() }

func strPtr(s string) *string { return &s }

func mustProject(t *testing.T, svc *content.Service, title, visibility string) *model.Project {
	t.Helper()
	p, err := svc.CreateProject(adminCtx(), content.ProjectInput{Title: title, Status: model.ProjectStatusActive, Visibility: visibility})
	require.NoError(t, err)
	return p
}

func mustQuest(t *testing.T, svc *content.Service, title, visibility string) *model.Quest {
	t.Helper()
	q, err := svc.CreateQuest(adminCtx(), content.QuestInput{
		Title: title, QuestType: model.QuestTypeMain, Status: model.QuestStatusInProgress, Visibility: visibility,
	})
	require.NoError(t, err)
	return q
}

func mustPage(t *testing.T, svc *content.Service, title, pageType, visibility string) *model.Page {
	t.Helper()
	p, err := svc.CreatePage(adminCtx(), content.PageInput{Title: title, PageType: pageType, Content: "# " + title, Visibility: visibility})
	require.NoError(t, err)
	return p
}

func mustTag(t *testing.T, svc *content.Service, name string) *model.Tag {
	t.Helper()
	tag, err := svc.CreateTag(adminCtx(), content.TagInput{Name: name})
	require.NoError(t, err)
	return tag
}

func mustSubQuest(t *testing.T, svc *content.Service, questID, title string, done bool) *model.SubQuest {
	t.Helper()
	sq, err := svc.CreateSubQuest(adminCtx(), content.SubQuestInput{QuestID: questID, Title: title, IsCompleted: done})
	require.NoError(t, err)
	return sq
}

func count[T any](t *testing.T, db *gorm.DB, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(new(T))
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
