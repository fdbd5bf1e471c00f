package content_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kasuganosora/questfolio/content"
	"github.com/kasuganosora/questfolio/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpiredDeadline_IsRetryableNetworkError(t *testing.T) {
	svc, _ := newService(t)

	ctx, cancel := context.WithDeadline(adminCtx(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := svc.ListTags(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, content.ErrNetwork)

	var nerr *content.NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.True(t, nerr.Retryable)
	assert.Equal(t, "tag.list", nerr.Op)
}

func TestClosedDatabase_IsNetworkError(t *testing.T) {
	svc, db := newService(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = svc.CreateProject(adminCtx(), content.ProjectInput{Title: "x"})
	var nerr *content.NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.False(t, nerr.Retryable)
	assert.False(t, errors.Is(err, content.ErrValidation))
}

func TestNotifier_CalledAfterCommit(t *testing.T) {
	svc, _ := newService(t)
	var got []content.Change
	svc.SetNotifier(func(_ context.Context, ch content.Change) { got = append(got, ch) })

	q := mustQuest(t, svc, "MVP", model.VisibilityPublic)
	mustSubQuest(t, svc, q.ID, "a", false)
	require.NoError(t, svc.DeleteQuest(adminCtx(), q.ID))

	// Failed writes do not notify.
	_, err := svc.CreateQuest(adminCtx(), content.QuestInput{Title: ""})
	require.Error(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, content.Change{Kind: content.KindQuest, ID: q.ID, Action: "create"}, got[0])
	assert.Equal(t, content.Change{Kind: content.KindQuest, ID: q.ID, Action: "update"}, got[1])
	assert.Equal(t, content.Change{Kind: content.KindQuest, ID: q.ID, Action: "delete"}, got[2])
}

func TestViewer_DefaultsToPublic(t *testing.T) {
	assert.True(t, content.ViewerFrom(context.Background()).IsPublic())
	assert.False(t, content.ViewerFrom(content.WithViewer(context.Background(), content.SystemViewer)).IsPublic())
}

func TestErrors_Messages(t *testing.T) {
	assert.Equal(t, "title is required", (&content.ValidationError{Field: "title", Reason: "is required"}).Error())
	assert.Equal(t, `quest "q1" not found`, (&content.NotFoundError{Kind: "quest", ID: "q1"}).Error())
	assert.Equal(t, `tag with name "Art" already exists`, (&content.DuplicateError{Kind: "tag", Field: "name", Value: "Art"}).Error())
	assert.Contains(t, (&content.NetworkError{Op: "tag.list", Retryable: true}).Error(), "retry")
}
