package hook

import (
	"context"
	"errors"
	"testing"

	"github.com/kasuganosora/questfolio/content"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func record(log *[]string, name string) Fn {
	return func(_ context.Context, _ content.Change) error {
		*log = append(*log, name)
		return nil
	}
}

var questChange = content.Change{Kind: content.KindQuest, ID: "q1", Action: "update"}

func TestNotify_NoHandlers(t *testing.T) {
	hc := NewCenter(zap.NewNop())
	hc.Notify(context.Background(), questChange)
	assert.Empty(t, hc.Names())
}

func TestNotify_PriorityOrder(t *testing.T) {
	hc := NewCenter(zap.NewNop())
	var got []string
	hc.On("late", 10, record(&got, "late"))
	hc.On("early", 1, record(&got, "early"))
	hc.On("early-too", 1, record(&got, "early-too"))

	hc.Notify(context.Background(), questChange)
	assert.Equal(t, []string{"early", "early-too", "late"}, got)
	assert.Equal(t, []string{"early", "early-too", "late"}, hc.Names())
}

func TestNotify_KindFilter(t *testing.T) {
	hc := NewCenter(zap.NewNop())
	var got []string
	hc.On("all", 0, record(&got, "all"))
	hc.On("tags", 0, record(&got, "tags"), content.KindTag, content.KindPage)

	hc.Notify(context.Background(), questChange)
	hc.Notify(context.Background(), content.Change{Kind: content.KindTag, ID: "t1", Action: "create"})
	assert.Equal(t, []string{"all", "all", "tags"}, got)
}

func TestNotify_Interrupt(t *testing.T) {
	hc := NewCenter(zap.NewNop())
	var got []string
	hc.On("stop", 0, func(context.Context, content.Change) error { return ErrInterrupt })
	hc.On("never", 1, record(&got, "never"))

	hc.Notify(context.Background(), questChange)
	assert.Empty(t, got)
}

func TestNotify_ErrorIsLoggedAndChainContinues(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	hc := NewCenter(zap.New(core))
	var got []string
	hc.On("broken", 0, func(context.Context, content.Change) error { return errors.New("boom") })
	hc.On("after", 1, record(&got, "after"))

	hc.Notify(context.Background(), questChange)
	assert.Equal(t, []string{"after"}, got)
	entries := logs.FilterMessage("change hook failed").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "broken", entries[0].ContextMap()["hook"])
	}
}
