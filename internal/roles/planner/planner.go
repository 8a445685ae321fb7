package planner

import (
	"context"
	"fmt"
	"log"

	"github.com/haricheung/assignment-helper/internal/llm"
)

const systemPrompt = "You are PLANNER, a strict JSON-only planner agent. " +
	"Given an assignment brief, output ONLY valid JSON with keys: " +
	"`objective` (string), `milestones` (list of objects with {id:int,title:string," +
	"est_hours:int,tasks:[{id:string,desc:string}]}), `deliverables` (list), `notes` (string). " +
	"Do not include comments or extra prose."

const userPrompt = `Assignment Brief:
"""%s"""

Respond ONLY with JSON. Example of shape:
{
  "objective": "one-line",
  "milestones": [
    {"id":1,"title":"Understand problem","est_hours":1,"tasks":[{"id":"1.1","desc":"Extract requirements"}]},
    {"id":2,"title":"Design","est_hours":2,"tasks":[{"id":"2.1","desc":"Write system design"}]}
  ],
  "deliverables": ["README.md","system_design.md","source_code"],
  "notes": "constraints or assumptions"
}
`

// Chatter is the Model Gateway as seen by the Planner.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message, maxTokens int) (string, llm.Usage, error)
}

// BuildPrompt returns the Planner call's message sequence for brief.
//
// Expectations:
//   - Returns exactly two messages: system then user
//   - The user message embeds brief verbatim
//   - The user message carries an example of the plan shape
func BuildPrompt(brief string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(userPrompt, brief)},
	}
}

// Planner performs the Planner call.
type Planner struct {
	llm       Chatter
	maxTokens int
}

// New creates a Planner. maxTokens caps the model reply.
func New(llmClient Chatter, maxTokens int) *Planner {
	return &Planner{llm: llmClient, maxTokens: maxTokens}
}

// Draft asks the model for a plan and returns its raw reply. Parsing is left
// to ParsePlan or a Session so a failed parse can be repaired by hand.
func (p *Planner) Draft(ctx context.Context, brief string) (string, error) {
	log.Printf("[PLANNER] drafting plan (brief: %d chars)", len(brief))
	raw, usage, err := p.llm.Chat(ctx, BuildPrompt(brief), p.maxTokens)
	if err != nil {
		return "", fmt.Errorf("planner: %w", err)
	}
	log.Printf("[PLANNER] reply received (%d chars, %d tokens)", len(raw), usage.TotalTokens)
	return raw, nil
}
