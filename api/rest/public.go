package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questfolio/content"
	"github.com/kasuganosora/questfolio/viewcache"
)

// QuestLogCacheKey is where the scheduler keeps the warmed public quest log.
const QuestLogCacheKey = "public:/api/public/questlog"

// PublicHandler serves read-only portfolio views. Responses for anonymous
// callers are cached; signed-in callers always read through.
type PublicHandler struct {
	svc                *content.Service
	views              *viewcache.Views
	includeQuestIssues bool
}

// NewPublicHandler creates a PublicHandler. views may be nil to disable caching.
func NewPublicHandler(svc *content.Service, views *viewcache.Views, includeQuestIssues bool) *PublicHandler {
	return &PublicHandler{svc: svc, views: views, includeQuestIssues: includeQuestIssues}
}

// viewKey names the cached view for the matched path and the bound query
// filter. Unbound query parameters do not create new entries.
func viewKey(c *gin.Context, filter interface{}) string {
	key := "public:" + c.Request.URL.Path
	if filter != nil {
		raw, _ := json.Marshal(filter)
		key += "?" + string(raw)
	}
	return key
}

// serve answers with load's result, going through the view cache for
// public viewers. filter is the bound query, or nil.
func (h *PublicHandler) serve(c *gin.Context, filter interface{}, load func() (interface{}, error)) {
	ctx := c.Request.Context()
	cacheable := h.views != nil && content.ViewerFrom(ctx).IsPublic()
	key := viewKey(c, filter)
	var gen int64
	if cacheable {
		var raw json.RawMessage
		var hit bool
		if gen, hit = h.views.Lookup(ctx, key, &raw); hit {
			c.Header("X-Cache", "hit")
			c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
			return
		}
	}
	v, err := load()
	if err != nil {
		fail(c, err)
		return
	}
	if cacheable {
		h.views.Put(ctx, gen, key, v)
		c.Header("X-Cache", "miss")
	}
	c.JSON(http.StatusOK, v)
}

// Home handles GET /api/public/home.
func (h *PublicHandler) Home(c *gin.Context) {
	h.serve(c, nil, func() (interface{}, error) { return h.svc.Home(c.Request.Context()) })
}

// Character handles GET /api/public/character.
func (h *PublicHandler) Character(c *gin.Context) {
	h.serve(c, nil, func() (interface{}, error) { return h.svc.GetCharacter(c.Request.Context()) })
}

// Inventory handles GET /api/public/inventory?type=&visibility=.
func (h *PublicHandler) Inventory(c *gin.Context) {
	var f content.ListFilter
	if !bindQuery(c, &f) {
		return
	}
	h.serve(c, f, func() (interface{}, error) {
		items, err := h.svc.ListItems(c.Request.Context(), f)
		return gin.H{"items": nonNil(items)}, err
	})
}

// QuestLog handles GET /api/public/questlog.
func (h *PublicHandler) QuestLog(c *gin.Context) {
	h.serve(c, nil, func() (interface{}, error) { return h.svc.QuestLogSummary(c.Request.Context()) })
}

// Quests handles GET /api/public/quests?type=&status=.
func (h *PublicHandler) Quests(c *gin.Context) {
	var f content.ListFilter
	if !bindQuery(c, &f) {
		return
	}
	h.serve(c, f, func() (interface{}, error) {
		quests, err := h.svc.QuestsWithDetails(c.Request.Context(), f)
		return gin.H{"quests": nonNil(quests)}, err
	})
}

// Quest handles GET /api/public/quests/:id.
func (h *PublicHandler) Quest(c *gin.Context) {
	h.serve(c, nil, func() (interface{}, error) {
		ctx := c.Request.Context()
		q, err := h.svc.QuestWithDetails(ctx, c.Param("id"))
		if err != nil {
			return nil, err
		}
		issues, err := h.svc.ListIssues(ctx, content.IssueFilter{ParentType: content.KindQuest, ParentID: q.ID})
		if err != nil {
			return nil, err
		}
		return gin.H{"quest": q, "issues": nonNil(issues)}, nil
	})
}

// Projects handles GET /api/public/projects?status=.
func (h *PublicHandler) Projects(c *gin.Context) {
	var f content.ListFilter
	if !bindQuery(c, &f) {
		return
	}
	h.serve(c, f, func() (interface{}, error) {
		projects, err := h.svc.ListProjects(c.Request.Context(), f)
		return gin.H{"projects": nonNil(projects)}, err
	})
}

// Project handles GET /api/public/projects/:id.
func (h *PublicHandler) Project(c *gin.Context) {
	h.serve(c, nil, func() (interface{}, error) {
		ctx := c.Request.Context()
		p, err := h.svc.GetProject(ctx, c.Param("id"))
		if err != nil {
			return nil, err
		}
		issues, err := h.svc.ListIssues(ctx, content.IssueFilter{ParentType: content.KindProject, ParentID: p.ID})
		if err != nil {
			return nil, err
		}
		return gin.H{"project": p, "issues": nonNil(issues)}, nil
	})
}

// Pages handles GET /api/public/pages?type=.
func (h *PublicHandler) Pages(c *gin.Context) {
	var f content.ListFilter
	if !bindQuery(c, &f) {
		return
	}
	h.serve(c, f, func() (interface{}, error) {
		pages, err := h.svc.ListPages(c.Request.Context(), f)
		return gin.H{"pages": nonNil(pages)}, err
	})
}

// Page handles GET /api/public/pages/:id. The parameter may also be a slug.
func (h *PublicHandler) Page(c *gin.Context) {
	h.serve(c, nil, func() (interface{}, error) {
		ctx := c.Request.Context()
		ref := c.Param("id")
		v, err := h.svc.PageView(ctx, ref, h.includeQuestIssues)
		if !errors.Is(err, content.ErrNotFound) {
			return v, err
		}
		p, serr := h.svc.GetPageBySlug(ctx, ref)
		if serr != nil {
			return nil, err
		}
		return h.svc.PageView(ctx, p.ID, h.includeQuestIssues)
	})
}

// Tags handles GET /api/public/tags.
func (h *PublicHandler) Tags(c *gin.Context) {
	h.serve(c, nil, func() (interface{}, error) {
		tags, err := h.svc.ListTags(c.Request.Context())
		return gin.H{"tags": nonNil(tags)}, err
	})
}

// nonNil makes empty lists encode as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
