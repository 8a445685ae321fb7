package executor

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/haricheung/assignment-helper/internal/llm"
)

const systemPrompt = "You are EXECUTOR. You perform ONE task and return actionable JSON. " +
	"Choose an action from: Generate_File, NoOp. " +
	"For Generate_File, include `filename` and full `content` (complete file text). " +
	"Respond with ONLY JSON."

const userPrompt = `Task: %s
Assignment context:
"""%s"""

If the task suggests writing README or a skeleton file, produce it.
Return JSON like:
{
  "action": "Generate_File",
  "filename": "README.md",
  "content": "# Title\n..."
}
If nothing to do, return: { "action":"NoOp" }.

Additional context (optional):
%s
`

// Chatter is the Model Gateway as seen by the Executor.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message, maxTokens int) (string, llm.Usage, error)
}

// BuildPrompt returns the Executor call's message sequence.
//
// Expectations:
//   - Returns exactly two messages: system then user
//   - The system message restricts the action to Generate_File or NoOp
//   - The user message embeds taskDesc and brief verbatim
//   - Renders an empty or blank extra context as "N/A"
func BuildPrompt(taskDesc, brief, extra string) []llm.Message {
	if strings.TrimSpace(extra) == "" {
		extra = "N/A"
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(userPrompt, taskDesc, brief, extra)},
	}
}

// Executor performs the Executor call for one task.
type Executor struct {
	llm       Chatter
	maxTokens int
}

// New creates an Executor. maxTokens caps the model reply.
func New(llmClient Chatter, maxTokens int) *Executor {
	return &Executor{llm: llmClient, maxTokens: maxTokens}
}

// Draft asks the model for an action and returns its raw reply. Parsing and
// side effects are left to ParseResult and Apply.
func (e *Executor) Draft(ctx context.Context, taskDesc, brief, extra string) (string, error) {
	log.Printf("[EXECUTOR] task=%q", taskDesc)
	raw, usage, err := e.llm.Chat(ctx, BuildPrompt(taskDesc, brief, extra), e.maxTokens)
	if err != nil {
		return "", fmt.Errorf("executor: %w", err)
	}
	log.Printf("[EXECUTOR] reply received (%d chars, %d tokens)", len(raw), usage.TotalTokens)
	return raw, nil
}
