package content

import (
	"math"

	"github.com/kasuganosora/questfolio/model"
)

// Progress summarizes sub-quest completion.
type Progress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// CalculateProgress counts completed sub-quests. An empty list is 0/0 at 0%.
func CalculateProgress(subQuests []model.SubQuest) Progress {
	var p Progress
	for _, sq := range subQuests {
		p.Total++
		if sq.IsCompleted {
			p.Completed++
		}
	}
	p.Percentage = percentage(p.Completed, p.Total)
	return p
}

func percentage(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
