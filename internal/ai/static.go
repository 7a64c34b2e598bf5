package ai

import (
	"context"

	"github.com/allocai/backend/internal/utils"
)

// StaticAssistant answers every prompt with a canned, well-formed insight
// reply. It backs AI_MODE=static demos and local runs without an API key.
type StaticAssistant struct{}

var staticReplies = []string{
	`{"insights":[
		{"type":"risk","title":"Watch weekly load","description":"Several people are close to their weekly hour ceiling. Review upcoming allocations before approving new work.","color":"rose","priority":"high"},
		{"type":"optimization","title":"Senior capacity available","description":"Senior staff have spare hours this week and could support high priority projects.","color":"emerald","priority":"medium"}
	]}`,
	`{"insights":[
		{"type":"trend","title":"Utilisation is steady","description":"Allocated hours are stable week over week with no new over-commitment.","color":"blue","priority":"low"},
		{"type":"optimization","title":"Balance skills across teams","description":"Pair specialists with projects that list their skills as required to cut ramp-up time.","color":"emerald","priority":"medium"}
	]}`,
}

func (StaticAssistant) Ask(_ context.Context, prompt string, _ []ChatMessage) (string, error) {
	h := utils.Fingerprint(prompt)
	return staticReplies[int(h%uint64(len(staticReplies)))], nil
}
