package rest

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questfolio/activity"
	"github.com/kasuganosora/questfolio/audit"
	"github.com/kasuganosora/questfolio/content"
	"go.uber.org/zap"
)

// AvatarUploader stores an avatar image and returns its public URL.
type AvatarUploader interface {
	Upload(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error)
}

// AdminHandler handles the authenticated content-management endpoints.
// Routes must be protected by the Auth middleware.
type AdminHandler struct {
	svc     *content.Service
	audit   *audit.Service
	feed    *activity.Feed
	avatars AvatarUploader
	logger  *zap.Logger
}

// NewAdminHandler creates an AdminHandler. avatars may be nil when object
// storage is not configured.
func NewAdminHandler(svc *content.Service, auditSvc *audit.Service, feed *activity.Feed, avatars AvatarUploader, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, audit: auditSvc, feed: feed, avatars: avatars, logger: logger}
}

func created(c *gin.Context, v interface{}, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func ok(c *gin.Context, v interface{}, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func deleted(c *gin.Context, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---- Tags ----

// POST /api/admin/tags
func (h *AdminHandler) CreateTag(c *gin.Context) {
	var in content.TagInput
	if bindJSON(c, &in) {
		tag, err := h.svc.CreateTag(c.Request.Context(), in)
		created(c, tag, err)
	}
}

// GET /api/admin/tags
func (h *AdminHandler) ListTags(c *gin.Context) {
	tags, err := h.svc.ListTags(c.Request.Context())
	ok(c, gin.H{"tags": nonNil(tags)}, err)
}

// PATCH /api/admin/tags/:id
func (h *AdminHandler) UpdateTag(c *gin.Context) {
	var p content.TagPatch
	if bindJSON(c, &p) {
		tag, err := h.svc.UpdateTag(c.Request.Context(), c.Param("id"), p)
		ok(c, tag, err)
	}
}

// DELETE /api/admin/tags/:id
func (h *AdminHandler) DeleteTag(c *gin.Context) {
	deleted(c, h.svc.DeleteTag(c.Request.Context(), c.Param("id")))
}

// ---- Projects ----

// POST /api/admin/projects
func (h *AdminHandler) CreateProject(c *gin.Context) {
	var in content.ProjectInput
	if bindJSON(c, &in) {
		p, err := h.svc.CreateProject(c.Request.Context(), in)
		created(c, p, err)
	}
}

// GET /api/admin/projects
func (h *AdminHandler) ListProjects(c *gin.Context) {
	var f content.ListFilter
	if bindQuery(c, &f) {
		ps, err := h.svc.ListProjects(c.Request.Context(), f)
		ok(c, gin.H{"projects": nonNil(ps)}, err)
	}
}

// GET /api/admin/projects/:id
func (h *AdminHandler) GetProject(c *gin.Context) {
	p, err := h.svc.GetProject(c.Request.Context(), c.Param("id"))
	ok(c, p, err)
}

// PATCH /api/admin/projects/:id
func (h *AdminHandler) UpdateProject(c *gin.Context) {
	var p content.ProjectPatch
	if bindJSON(c, &p) {
		proj, err := h.svc.UpdateProject(c.Request.Context(), c.Param("id"), p)
		ok(c, proj, err)
	}
}

// DELETE /api/admin/projects/:id
func (h *AdminHandler) DeleteProject(c *gin.Context) {
	deleted(c, h.svc.DeleteProject(c.Request.Context(), c.Param("id")))
}

// ---- Quests ----

// POST /api/admin/quests
func (h *AdminHandler) CreateQuest(c *gin.Context) {
	var in content.QuestInput
	if bindJSON(c, &in) {
		q, err := h.svc.CreateQuest(c.Request.Context(), in)
		created(c, q, err)
	}
}

// GET /api/admin/quests
func (h *AdminHandler) ListQuests(c *gin.Context) {
	var f content.ListFilter
	if bindQuery(c, &f) {
		qs, err := h.svc.QuestsWithDetails(c.Request.Context(), f)
		ok(c, gin.H{"quests": nonNil(qs)}, err)
	}
}

// GET /api/admin/quests/:id
func (h *AdminHandler) GetQuest(c *gin.Context) {
	q, err := h.svc.QuestWithDetails(c.Request.Context(), c.Param("id"))
	ok(c, q, err)
}

// PATCH /api/admin/quests/:id
func (h *AdminHandler) UpdateQuest(c *gin.Context) {
	var p content.QuestPatch
	if bindJSON(c, &p) {
		q, err := h.svc.UpdateQuest(c.Request.Context(), c.Param("id"), p)
		ok(c, q, err)
	}
}

// DELETE /api/admin/quests/:id
func (h *AdminHandler) DeleteQuest(c *gin.Context) {
	deleted(c, h.svc.DeleteQuest(c.Request.Context(), c.Param("id")))
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

// ReplaceQuestTags handles PUT /api/admin/quests/:id/tags.
func (h *AdminHandler) ReplaceQuestTags(c *gin.Context) {
	var req idsRequest
	if bindJSON(c, &req) {
		tags, err := h.svc.ReplaceTags(c.Request.Context(), content.KindQuest, c.Param("id"), req.IDs)
		ok(c, gin.H{"tags": nonNil(tags)}, err)
	}
}

// ---- Sub-quests ----

// POST /api/admin/quests/:id/subquests
func (h *AdminHandler) CreateSubQuest(c *gin.Context) {
	var in content.SubQuestInput
	if bindJSON(c, &in) {
		in.QuestID = c.Param("id")
		sq, err := h.svc.CreateSubQuest(c.Request.Context(), in)
		created(c, sq, err)
	}
}

// GET /api/admin/quests/:id/subquests
func (h *AdminHandler) ListSubQuests(c *gin.Context) {
	sqs, err := h.svc.ListSubQuests(c.Request.Context(), c.Param("id"))
	ok(c, gin.H{"subquests": nonNil(sqs)}, err)
}

// ReorderSubQuests handles PUT /api/admin/quests/:id/subquests/reorder.
func (h *AdminHandler) ReorderSubQuests(c *gin.Context) {
	var req idsRequest
	if bindJSON(c, &req) {
		sqs, err := h.svc.ReorderSubQuests(c.Request.Context(), c.Param("id"), req.IDs)
		ok(c, gin.H{"subquests": nonNil(sqs)}, err)
	}
}

// PATCH /api/admin/subquests/:id
func (h *AdminHandler) UpdateSubQuest(c *gin.Context) {
	var p content.SubQuestPatch
	if bindJSON(c, &p) {
		sq, err := h.svc.UpdateSubQuest(c.Request.Context(), c.Param("id"), p)
		ok(c, sq, err)
	}
}

// POST /api/admin/subquests/:id/toggle
func (h *AdminHandler) ToggleSubQuest(c *gin.Context) {
	sq, err := h.svc.ToggleSubQuest(c.Request.Context(), c.Param("id"))
	ok(c, sq, err)
}

// DELETE /api/admin/subquests/:id
func (h *AdminHandler) DeleteSubQuest(c *gin.Context) {
	deleted(c, h.svc.DeleteSubQuest(c.Request.Context(), c.Param("id")))
}

// ---- Issues ----

// POST /api/admin/issues
func (h *AdminHandler) CreateIssue(c *gin.Context) {
	var in content.IssueInput
	if bindJSON(c, &in) {
		is, err := h.svc.CreateIssue(c.Request.Context(), in)
		created(c, is, err)
	}
}

// GET /api/admin/issues
func (h *AdminHandler) ListIssues(c *gin.Context) {
	var f content.IssueFilter
	if bindQuery(c, &f) {
		is, err := h.svc.ListIssues(c.Request.Context(), f)
		ok(c, gin.H{"issues": nonNil(is)}, err)
	}
}

// GET /api/admin/issues/:id
func (h *AdminHandler) GetIssue(c *gin.Context) {
	is, err := h.svc.GetIssue(c.Request.Context(), c.Param("id"))
	ok(c, is, err)
}

// PATCH /api/admin/issues/:id
func (h *AdminHandler) UpdateIssue(c *gin.Context) {
	var p content.IssuePatch
	if bindJSON(c, &p) {
		is, err := h.svc.UpdateIssue(c.Request.Context(), c.Param("id"), p)
		ok(c, is, err)
	}
}

// DELETE /api/admin/issues/:id
func (h *AdminHandler) DeleteIssue(c *gin.Context) {
	deleted(c, h.svc.DeleteIssue(c.Request.Context(), c.Param("id")))
}

// ---- Pages ----

// POST /api/admin/pages
func (h *AdminHandler) CreatePage(c *gin.Context) {
	var in content.PageInput
	if bindJSON(c, &in) {
		p, err := h.svc.CreatePage(c.Request.Context(), in)
		created(c, p, err)
	}
}

// GET /api/admin/pages
func (h *AdminHandler) ListPages(c *gin.Context) {
	var f content.ListFilter
	if bindQuery(c, &f) {
		ps, err := h.svc.ListPages(c.Request.Context(), f)
		ok(c, gin.H{"pages": nonNil(ps)}, err)
	}
}

// GET /api/admin/pages/:id
func (h *AdminHandler) GetPage(c *gin.Context) {
	p, err := h.svc.PageWithDetails(c.Request.Context(), c.Param("id"))
	ok(c, p, err)
}

// PATCH /api/admin/pages/:id
func (h *AdminHandler) UpdatePage(c *gin.Context) {
	var p content.PagePatch
	if bindJSON(c, &p) {
		page, err := h.svc.UpdatePage(c.Request.Context(), c.Param("id"), p)
		ok(c, page, err)
	}
}

// DELETE /api/admin/pages/:id
func (h *AdminHandler) DeletePage(c *gin.Context) {
	deleted(c, h.svc.DeletePage(c.Request.Context(), c.Param("id")))
}

// ReplacePageTags handles PUT /api/admin/pages/:id/tags.
func (h *AdminHandler) ReplacePageTags(c *gin.Context) {
	var req idsRequest
	if bindJSON(c, &req) {
		tags, err := h.svc.ReplaceTags(c.Request.Context(), content.KindPage, c.Param("id"), req.IDs)
		ok(c, gin.H{"tags": nonNil(tags)}, err)
	}
}

type connectionsRequest struct {
	QuestIDs   []string `json:"quest_ids"`
	ProjectIDs []string `json:"project_ids"`
}

// ReplacePageConnections handles PUT /api/admin/pages/:id/connections.
func (h *AdminHandler) ReplacePageConnections(c *gin.Context) {
	var req connectionsRequest
	if bindJSON(c, &req) {
		conns, err := h.svc.ReplaceConnections(c.Request.Context(), c.Param("id"), req.QuestIDs, req.ProjectIDs)
		ok(c, gin.H{"connections": nonNil(conns)}, err)
	}
}

// ---- Inventory ----

// POST /api/admin/inventory
func (h *AdminHandler) CreateItem(c *gin.Context) {
	var in content.ItemInput
	if bindJSON(c, &in) {
		it, err := h.svc.CreateItem(c.Request.Context(), in)
		created(c, it, err)
	}
}

// GET /api/admin/inventory
func (h *AdminHandler) ListItems(c *gin.Context) {
	var f content.ListFilter
	if bindQuery(c, &f) {
		items, err := h.svc.ListItems(c.Request.Context(), f)
		ok(c, gin.H{"items": nonNil(items)}, err)
	}
}

// GET /api/admin/inventory/:id
func (h *AdminHandler) GetItem(c *gin.Context) {
	it, err := h.svc.GetItem(c.Request.Context(), c.Param("id"))
	ok(c, it, err)
}

// PATCH /api/admin/inventory/:id
func (h *AdminHandler) UpdateItem(c *gin.Context) {
	var p content.ItemPatch
	if bindJSON(c, &p) {
		it, err := h.svc.UpdateItem(c.Request.Context(), c.Param("id"), p)
		ok(c, it, err)
	}
}

// DELETE /api/admin/inventory/:id
func (h *AdminHandler) DeleteItem(c *gin.Context) {
	deleted(c, h.svc.DeleteItem(c.Request.Context(), c.Param("id")))
}

// ---- Character ----

// GET /api/admin/character
func (h *AdminHandler) GetCharacter(c *gin.Context) {
	ch, err := h.svc.GetCharacter(c.Request.Context())
	ok(c, ch, err)
}

// PATCH /api/admin/character
func (h *AdminHandler) UpdateCharacter(c *gin.Context) {
	var p content.CharacterPatch
	if bindJSON(c, &p) {
		ch, err := h.svc.UpdateCharacter(c.Request.Context(), p)
		ok(c, ch, err)
	}
}

// UploadAvatar handles POST /api/admin/character/avatar (multipart field "avatar").
func (h *AdminHandler) UploadAvatar(c *gin.Context) {
	if h.avatars == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "avatar storage is not configured"})
		return
	}
	fh, err := c.FormFile("avatar")
	if err != nil {
		fail(c, &content.ValidationError{Field: "avatar", Reason: "is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	url, err := h.avatars.Upload(ctx, fh.Filename, fh.Header.Get("Content-Type"), fh.Size, f)
	if err != nil {
		fail(c, err)
		return
	}
	ch, err := h.svc.SetAvatarURL(ctx, url)
	ok(c, ch, err)
}

// ---- Audit & activity ----

// ListAudit handles GET /api/admin/audit?entity_kind=&entity_id=&trace_id=&limit=.
func (h *AdminHandler) ListAudit(c *gin.Context) {
	var f audit.Filter
	if !bindQuery(c, &f) {
		return
	}
	logs, err := h.audit.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("audit list failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit log unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": nonNil(logs)})
}

// Activity handles GET /api/admin/activity?limit=.
func (h *AdminHandler) Activity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.feed.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("activity read failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "activity feed unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": nonNil(entries)})
}
