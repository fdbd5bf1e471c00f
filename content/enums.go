package content

import (
	"slices"
	"strings"

	"github.com/kasuganosora/questfolio/model"
)

var (
	projectStatuses = []string{
		model.ProjectStatusPlanning, model.ProjectStatusActive, model.ProjectStatusInProgress,
		model.ProjectStatusOnHold, model.ProjectStatusCompleted, model.ProjectStatusArchived,
	}
	questTypes    = []string{model.QuestTypeMain, model.QuestTypeSide, model.QuestTypeFuture}
	questStatuses = []string{
		model.QuestStatusNotStarted, model.QuestStatusInProgress, model.QuestStatusDebugging,
		model.QuestStatusOnHold, model.QuestStatusCompleted, model.QuestStatusAbandoned,
	}
	issueTypes    = []string{model.IssueTypeIssue, model.IssueTypeImprovement}
	issueStatuses = []string{
		model.IssueStatusOpen, model.IssueStatusInProgress, model.IssueStatusResolved,
		model.IssueStatusClosed, model.IssueStatusWontFix,
	}
	pageTypes   = []string{model.PageTypeBlog, model.PageTypeDevlog, model.PageTypeNotes, model.PageTypeProject}
	itemKinds   = []string{model.ItemKindItem, model.ItemKindAchievement}
	parentKinds = []string{model.ParentProject, model.ParentQuest}
)

// checkEnum accepts "" (no filter) or a member of allowed.
func checkEnum(field, v string, allowed []string) error {
	if v == "" || slices.Contains(allowed, v) {
		return nil
	}
	return invalid(field, "must be one of: "+strings.Join(allowed, ", "))
}

func (f ListFilter) check(types, statuses []string) error {
	if types == nil && f.Type != "" {
		return invalid("type", "is not supported here")
	}
	if err := checkEnum("type", f.Type, types); err != nil {
		return err
	}
	if err := checkEnum("status", f.Status, statuses); err != nil {
		return err
	}
	return validateStruct(f)
}
