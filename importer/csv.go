// Package importer seeds the content stores from a CSV sheet.
//
// Each row is
//
//	kind,title,type,status,visibility,parent,description,tags
//
// where kind is one of tag, project, quest, subquest, issue or page. For tags
// the type column holds an optional hex color. Parents
// are referenced by title: a sub-quest names its quest, an issue names
// "project:<title>" or "quest:<title>", and a page may list connections the
// same way separated by ";". Tags are names separated by ";" and are created
// on demand. A first row starting with "kind" is treated as the header.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kasuganosora/questfolio/content"
	"go.uber.org/zap"
)

const numColumns = 8

var kinds = map[string]bool{
	content.KindTag:      true,
	content.KindProject:  true,
	content.KindQuest:    true,
	content.KindSubQuest: true,
	content.KindIssue:    true,
	content.KindPage:     true,
}

// Row is one parsed line of the sheet.
type Row struct {
	Line        int
	Kind        string
	Title       string
	Type        string
	Status      string
	Visibility  string
	Parent      string
	Description string
	Tags        []string
}

// LineError reports the line a row failed on.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *LineError) Unwrap() error { return e.Err }

// Result counts created entities per kind.
type Result struct {
	Counts map[string]int `json:"counts"`
}

func (r *Result) add(kind string) { r.Counts[kind]++ }

// Parse reads and checks every row without touching the stores.
func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &LineError{Line: perr.Line, Err: perr.Err}
			}
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		if len(rows) == 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "kind") {
			continue
		}
		row, err := parseRecord(rec)
		if err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		row.Line = line
		rows = append(rows, row)
	}
}

func parseRecord(rec []string) (Row, error) {
	if len(rec) > numColumns {
		return Row{}, fmt.Errorf("expected at most %d columns, got %d", numColumns, len(rec))
	}
	for len(rec) < numColumns {
		rec = append(rec, "")
	}
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}
	row := Row{
		Kind:        strings.ToLower(rec[0]),
		Title:       rec[1],
		Type:        rec[2],
		Status:      rec[3],
		Visibility:  rec[4],
		Parent:      rec[5],
		Description: rec[6],
		Tags:        splitList(rec[7]),
	}
	if !kinds[row.Kind] {
		return Row{}, fmt.Errorf("unknown kind %q", rec[0])
	}
	if row.Title == "" {
		return Row{}, errors.New("title is required")
	}
	if row.Kind == content.KindSubQuest && row.Parent == "" {
		return Row{}, errors.New("sub-quest needs a parent quest title")
	}
	if row.Kind == content.KindIssue {
		if _, _, err := splitRef(row.Parent); err != nil {
			return Row{}, err
		}
	}
	return row, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitRef splits "project:<title>" or "quest:<title>".
func splitRef(ref string) (kind, title string, err error) {
	kind, title, found := strings.Cut(ref, ":")
	kind = strings.ToLower(strings.TrimSpace(kind))
	title = strings.TrimSpace(title)
	if !found || title == "" || (kind != content.KindProject && kind != content.KindQuest) {
		return "", "", fmt.Errorf("parent %q must be project:<title> or quest:<title>", ref)
	}
	return kind, title, nil
}

// Importer writes parsed rows through the content service.
type Importer struct {
	svc    *content.Service
	logger *zap.Logger

	tags     map[string]string // lower-cased name → id
	projects map[string]string // title → id
	quests   map[string]string
}

// New creates an Importer.
func New(svc *content.Service, logger *zap.Logger) *Importer {
	return &Importer{svc: svc, logger: logger}
}

// Import parses r and creates its rows in order. It stops at the first
// failing row and returns the counts written so far with a *LineError.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	rows, err := Parse(r)
	if err != nil {
		return &Result{Counts: map[string]int{}}, err
	}
	return im.Apply(ctx, rows)
}

// Apply creates already parsed rows.
func (im *Importer) Apply(ctx context.Context, rows []Row) (*Result, error) {
	ctx = content.WithViewer(ctx, content.SystemViewer)
	res := &Result{Counts: map[string]int{}}
	if err := im.loadExisting(ctx); err != nil {
		return res, err
	}
	for _, row := range rows {
		if err := im.apply(ctx, row, res); err != nil {
			return res, &LineError{Line: row.Line, Err: err}
		}
	}
	im.logger.Info("import finished", zap.Any("counts", res.Counts))
	return res, nil
}

func (im *Importer) loadExisting(ctx context.Context) error {
	im.tags = map[string]string{}
	im.projects = map[string]string{}
	im.quests = map[string]string{}

	tags, err := im.svc.ListTags(ctx)
	if err != nil {
		return err
	}
	for _, t := range tags {
		im.tags[strings.ToLower(t.Name)] = t.ID
	}
	all := content.ListFilter{Visibility: "all"}
	projects, err := im.svc.ListProjects(ctx, all)
	if err != nil {
		return err
	}
	for _, p := range projects {
		im.projects[p.Title] = p.ID
	}
	quests, err := im.svc.ListQuests(ctx, all)
	if err != nil {
		return err
	}
	for _, q := range quests {
		im.quests[q.Title] = q.ID
	}
	return nil
}

func (im *Importer) apply(ctx context.Context, row Row, res *Result) error {
	switch row.Kind {
	case content.KindTag:
		if _, exists := im.tags[strings.ToLower(row.Title)]; exists {
			return nil
		}
		if _, err := im.tag(ctx, row.Title, row.Type); err != nil {
			return err
		}

	case content.KindProject:
		p, err := im.svc.CreateProject(ctx, content.ProjectInput{
			Title:       row.Title,
			Description: optional(row.Description),
			Status:      row.Status,
			Visibility:  row.Visibility,
		})
		if err != nil {
			return err
		}
		im.projects[p.Title] = p.ID

	case content.KindQuest:
		q, err := im.svc.CreateQuest(ctx, content.QuestInput{
			Title:       row.Title,
			QuestType:   row.Type,
			Status:      row.Status,
			Description: optional(row.Description),
			Visibility:  row.Visibility,
		})
		if err != nil {
			return err
		}
		im.quests[q.Title] = q.ID
		if err := im.replaceTags(ctx, content.KindQuest, q.ID, row.Tags); err != nil {
			return err
		}

	case content.KindSubQuest:
		questID, ok := im.quests[row.Parent]
		if !ok {
			return fmt.Errorf("quest %q not found", row.Parent)
		}
		done := strings.EqualFold(row.Status, "done") || strings.EqualFold(row.Status, "completed")
		if _, err := im.svc.CreateSubQuest(ctx, content.SubQuestInput{
			QuestID: questID, Title: row.Title, IsCompleted: done,
		}); err != nil {
			return err
		}

	case content.KindIssue:
		kind, id, err := im.resolve(row.Parent)
		if err != nil {
			return err
		}
		if _, err := im.svc.CreateIssue(ctx, content.IssueInput{
			AttachedToType: kind,
			AttachedToID:   id,
			IssueType:      row.Type,
			Status:         row.Status,
			Title:          row.Title,
			Description:    optional(row.Description),
		}); err != nil {
			return err
		}

	case content.KindPage:
		p, err := im.svc.CreatePage(ctx, content.PageInput{
			Title:      row.Title,
			PageType:   row.Type,
			Content:    row.Description,
			Visibility: row.Visibility,
		})
		if err != nil {
			return err
		}
		if err := im.replaceTags(ctx, content.KindPage, p.ID, row.Tags); err != nil {
			return err
		}
		if err := im.connect(ctx, p.ID, row.Parent); err != nil {
			return err
		}
	}
	res.add(row.Kind)
	return nil
}

func (im *Importer) tag(ctx context.Context, name, color string) (string, error) {
	if id, ok := im.tags[strings.ToLower(name)]; ok {
		return id, nil
	}
	t, err := im.svc.CreateTag(ctx, content.TagInput{Name: name, Color: color})
	if err != nil {
		return "", err
	}
	im.tags[strings.ToLower(t.Name)] = t.ID
	return t.ID, nil
}

func (im *Importer) replaceTags(ctx context.Context, kind, id string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	ids := make([]string, 0, len(names))
	for _, name := range names {
		tagID, err := im.tag(ctx, name, "")
		if err != nil {
			return err
		}
		ids = append(ids, tagID)
	}
	_, err := im.svc.ReplaceTags(ctx, kind, id, ids)
	return err
}

func (im *Importer) connect(ctx context.Context, pageID, refs string) error {
	var questIDs, projectIDs []string
	for _, ref := range splitList(refs) {
		kind, id, err := im.resolve(ref)
		if err != nil {
			return err
		}
		if kind == content.KindQuest {
			questIDs = append(questIDs, id)
		} else {
			projectIDs = append(projectIDs, id)
		}
	}
	if len(questIDs)+len(projectIDs) == 0 {
		return nil
	}
	_, err := im.svc.ReplaceConnections(ctx, pageID, questIDs, projectIDs)
	return err
}

func (im *Importer) resolve(ref string) (kind, id string, err error) {
	kind, title, err := splitRef(ref)
	if err != nil {
		return "", "", err
	}
	ids := im.projects
	if kind == content.KindQuest {
		ids = im.quests
	}
	id, ok := ids[title]
	if !ok {
		return "", "", fmt.Errorf("%s %q not found", kind, title)
	}
	return kind, id, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
