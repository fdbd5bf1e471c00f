package content

import (
	"context"

	"github.com/kasuganosora/questfolio/model"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// QuestDetails is a quest with its ordered sub-quests, tags and progress.
type QuestDetails struct {
	model.Quest
	SubQuests []model.SubQuest `json:"sub_quests"`
	Tags      []model.Tag      `json:"tags"`
	Progress  Progress         `json:"progress"`
}

// PageDetails is a page with its tags, visible linked quests and projects
// and the sanitized HTML rendering of its content.
type PageDetails struct {
	model.Page
	HTML     string          `json:"html"`
	Tags     []model.Tag     `json:"tags"`
	Quests   []model.Quest   `json:"quests"`
	Projects []model.Project `json:"projects"`
}

// RelatedIssues keeps issues found directly on a page's projects apart from
// those reached through its quests.
type RelatedIssues struct {
	Direct    []model.Issue `json:"direct"`
	ViaQuests []model.Issue `json:"via_quests"`
}

// PageView is everything the page screen shows.
type PageView struct {
	*PageDetails
	RelatedDevlogs []model.Page  `json:"related_devlogs"`
	RelatedIssues  RelatedIssues `json:"related_issues"`
}

// QuestLog summarizes the visible quest log.
type QuestLog struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	ByType   map[string]int `json:"by_type"`
	Progress Progress       `json:"progress"`
}

// Home is the landing screen.
type Home struct {
	Character   *model.CharacterSettings `json:"character"`
	MainQuests  []QuestDetails           `json:"main_quests"`
	RecentPages []model.Page             `json:"recent_pages"`
}

// QuestWithDetails returns a quest with sub-quests, tags and progress.
func (s *Service) QuestWithDetails(ctx context.Context, id string) (*QuestDetails, error) {
	q, err := s.GetQuest(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := s.questDetails(ctx, []model.Quest{*q})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// QuestsWithDetails is ListQuests with sub-quests, tags and progress attached.
func (s *Service) QuestsWithDetails(ctx context.Context, f ListFilter) ([]QuestDetails, error) {
	quests, err := s.ListQuests(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.questDetails(ctx, quests)
}

func (s *Service) questDetails(ctx context.Context, quests []model.Quest) ([]QuestDetails, error) {
	out := make([]QuestDetails, len(quests))
	if len(quests) == 0 {
		return out, nil
	}
	ids := make([]string, len(quests))
	for i, q := range quests {
		ids[i] = q.ID
	}
	var (
		subs []model.SubQuest
		tags map[string][]model.Tag
	)
	err := s.run(ctx, "quest.details", func(db *gorm.DB) error {
		if err := orderedSubQuests(db, ids, &subs); err != nil {
			return err
		}
		var err error
		tags, err = tagsFor(db, KindQuest, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	byQuest := make(map[string][]model.SubQuest, len(ids))
	for _, sq := range subs {
		byQuest[sq.QuestID] = append(byQuest[sq.QuestID], sq)
	}
	for i, q := range quests {
		d := QuestDetails{Quest: q, SubQuests: byQuest[q.ID], Tags: tags[q.ID]}
		if d.SubQuests == nil {
			d.SubQuests = []model.SubQuest{}
		}
		if d.Tags == nil {
			d.Tags = []model.Tag{}
		}
		d.Progress = CalculateProgress(d.SubQuests)
		out[i] = d
	}
	return out, nil
}

// PageWithDetails returns a page with tags, linked quests and projects.
// Private links are dropped for public callers.
func (s *Service) PageWithDetails(ctx context.Context, id string) (*PageDetails, error) {
	p, err := s.GetPage(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.pageDetails(ctx, p)
}

// pageDetails fetches tags and connections concurrently.
func (s *Service) pageDetails(ctx context.Context, p *model.Page) (*PageDetails, error) {
	d := &PageDetails{Page: *p, HTML: s.render(p.Content)}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.run(gctx, "page.tags", func(db *gorm.DB) error {
			tags, err := tagsFor(db, KindPage, []string{p.ID})
			d.Tags = tags[p.ID]
			return err
		})
	})
	g.Go(func() error {
		var err error
		d.Quests, d.Projects, err = s.linkedTargets(gctx, p.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if d.Tags == nil {
		d.Tags = []model.Tag{}
	}
	return d, nil
}

func (s *Service) render(markdown string) string {
	if s.renderer == nil {
		return ""
	}
	return s.renderer.Render(markdown)
}

// linkedTargets resolves a page's connections to the quests and projects the
// caller may see.
func (s *Service) linkedTargets(ctx context.Context, pageID string) ([]model.Quest, []model.Project, error) {
	quests := []model.Quest{}
	projects := []model.Project{}
	err := s.run(ctx, "page.connections", func(db *gorm.DB) error {
		var conns []model.PageConnection
		if err := db.Where("page_id = ?", pageID).Order("created_at ASC").Find(&conns).Error; err != nil {
			return err
		}
		var questIDs, projectIDs []string
		for _, c := range conns {
			switch c.ConnectedToType {
			case model.ParentQuest:
				questIDs = append(questIDs, c.ConnectedToID)
			case model.ParentProject:
				projectIDs = append(projectIDs, c.ConnectedToID)
			}
		}
		public := ViewerFrom(ctx).IsPublic()
		if len(questIDs) > 0 {
			q := db.Where("id IN ?", questIDs)
			if public {
				q = q.Where("visibility = ?", model.VisibilityPublic)
			}
			if err := q.Order("created_at ASC").Find(&quests).Error; err != nil {
				return err
			}
		}
		if len(projectIDs) > 0 {
			q := db.Where("id IN ?", projectIDs)
			if public {
				q = q.Where("visibility = ?", model.VisibilityPublic)
			}
			if err := q.Order("created_at ASC").Find(&projects).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return quests, projects, nil
}

// RelatedDevlogs returns other devlog pages connected to any quest or
// project this page connects to.
func (s *Service) RelatedDevlogs(ctx context.Context, pageID string) ([]model.Page, error) {
	if _, err := s.GetPage(ctx, pageID); err != nil {
		return nil, err
	}
	quests, projects, err := s.linkedTargets(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return s.relatedDevlogs(ctx, pageID, questIDs(quests), projectIDs(projects))
}

func (s *Service) relatedDevlogs(ctx context.Context, pageID string, quests, projects []string) ([]model.Page, error) {
	out := []model.Page{}
	if len(quests) == 0 && len(projects) == 0 {
		return out, nil
	}
	err := s.run(ctx, "page.related_devlogs", func(db *gorm.DB) error {
		linked := db.Model(&model.PageConnection{}).Select("page_id")
		switch {
		case len(quests) > 0 && len(projects) > 0:
			linked = linked.Where(
				"(connected_to_type = ? AND connected_to_id IN ?) OR (connected_to_type = ? AND connected_to_id IN ?)",
				model.ParentQuest, quests, model.ParentProject, projects)
		case len(quests) > 0:
			linked = linked.Where("connected_to_type = ? AND connected_to_id IN ?", model.ParentQuest, quests)
		default:
			linked = linked.Where("connected_to_type = ? AND connected_to_id IN ?", model.ParentProject, projects)
		}
		q := db.Where("page_type = ? AND id <> ? AND id IN (?)", model.PageTypeDevlog, pageID, linked)
		if ViewerFrom(ctx).IsPublic() {
			q = q.Where("visibility = ?", model.VisibilityPublic)
		}
		return q.Order("created_at DESC").Find(&out).Error
	})
	return out, err
}

// RelatedIssues returns issues on the page's linked projects and, when
// includeQuestIssues is set, issues on its linked quests.
func (s *Service) RelatedIssues(ctx context.Context, pageID string, includeQuestIssues bool) (*RelatedIssues, error) {
	if _, err := s.GetPage(ctx, pageID); err != nil {
		return nil, err
	}
	quests, projects, err := s.linkedTargets(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return s.relatedIssues(ctx, questIDs(quests), projectIDs(projects), includeQuestIssues)
}

func (s *Service) relatedIssues(ctx context.Context, quests, projects []string, includeQuestIssues bool) (*RelatedIssues, error) {
	out := &RelatedIssues{Direct: []model.Issue{}, ViaQuests: []model.Issue{}}
	err := s.run(ctx, "page.related_issues", func(db *gorm.DB) error {
		if len(projects) > 0 {
			if err := db.Where("attached_to_type = ? AND attached_to_id IN ?", model.ParentProject, projects).
				Order("created_at DESC").Find(&out.Direct).Error; err != nil {
				return err
			}
		}
		if includeQuestIssues && len(quests) > 0 {
			if err := db.Where("attached_to_type = ? AND attached_to_id IN ?", model.ParentQuest, quests).
				Order("created_at DESC").Find(&out.ViaQuests).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PageView assembles the full page screen. Tags and connections load
// concurrently; devlogs and issues then load concurrently from the resolved
// connections.
func (s *Service) PageView(ctx context.Context, id string, includeQuestIssues bool) (*PageView, error) {
	p, err := s.GetPage(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := s.pageDetails(ctx, p)
	if err != nil {
		return nil, err
	}
	v := &PageView{PageDetails: d}
	quests, projects := questIDs(d.Quests), projectIDs(d.Projects)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		v.RelatedDevlogs, err = s.relatedDevlogs(gctx, p.ID, quests, projects)
		return err
	})
	g.Go(func() error {
		issues, err := s.relatedIssues(gctx, quests, projects, includeQuestIssues)
		if err == nil {
			v.RelatedIssues = *issues
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return v, nil
}

// QuestLogSummary counts visible quests by status and type and totals
// sub-quest progress across them.
func (s *Service) QuestLogSummary(ctx context.Context) (*QuestLog, error) {
	quests, err := s.ListQuests(ctx, ListFilter{})
	if err != nil {
		return nil, err
	}
	log := &QuestLog{
		Total:    len(quests),
		ByStatus: make(map[string]int, len(questStatuses)),
		ByType:   make(map[string]int, len(questTypes)),
	}
	for _, st := range questStatuses {
		log.ByStatus[st] = 0
	}
	for _, t := range questTypes {
		log.ByType[t] = 0
	}
	ids := make([]string, len(quests))
	for i, q := range quests {
		log.ByStatus[q.Status]++
		log.ByType[q.QuestType]++
		ids[i] = q.ID
	}
	if len(ids) == 0 {
		return log, nil
	}
	var subs []model.SubQuest
	err = s.run(ctx, "questlog.progress", func(db *gorm.DB) error {
		return db.Select("id", "quest_id", "is_completed").Where("quest_id IN ?", ids).Find(&subs).Error
	})
	if err != nil {
		return nil, err
	}
	log.Progress = CalculateProgress(subs)
	return log, nil
}

// Home returns the character sheet, active main quests and the latest
// public pages.
func (s *Service) Home(ctx context.Context) (*Home, error) {
	h := &Home{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		h.Character, err = s.GetCharacter(gctx)
		return err
	})
	g.Go(func() error {
		var quests []model.Quest
		err := s.run(gctx, "home.quests", func(db *gorm.DB) error {
			q := db.Where("quest_type = ? AND status IN ?", model.QuestTypeMain,
				[]string{model.QuestStatusInProgress, model.QuestStatusDebugging})
			if ViewerFrom(gctx).IsPublic() {
				q = q.Where("visibility = ?", model.VisibilityPublic)
			}
			return q.Order("updated_at DESC").Find(&quests).Error
		})
		if err != nil {
			return err
		}
		h.MainQuests, err = s.questDetails(gctx, quests)
		return err
	})
	g.Go(func() error {
		var err error
		h.RecentPages, err = s.recentPublicPages(gctx, s.cfg.HomeRecentPages)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return h, nil
}

func questIDs(quests []model.Quest) []string {
	ids := make([]string, len(quests))
	for i, q := range quests {
		ids[i] = q.ID
	}
	return ids
}

func projectIDs(projects []model.Project) []string {
	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	return ids
}
