// Package claude asks Claude to propose precedence edges between activities
// and to explain a computed schedule.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joshharrison/critpath/internal/graph"
)

// DefaultModel is used when no model is configured.
const DefaultModel = anthropic.Model("claude-sonnet-4-5")

// ActivitySummary is the minimal activity info sent to Claude.
type ActivitySummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
}

// DepEdge is a single inferred precedence relation.
type DepEdge struct {
	Predecessor string `json:"predecessor"` // activity that must finish first
	Successor   string `json:"successor"`   // activity that waits for it
	Reason      string `json:"reason"`
}

// InferDepsResult holds the full response from Claude.
type InferDepsResult struct {
	Edges   []DepEdge `json:"edges"`
	Summary string    `json:"summary"`
}

// Client wraps the Anthropic SDK for Claude API calls.
type Client struct {
	inner anthropic.Client
	model anthropic.Model
}

// NewClient creates a Claude client. apiKey defaults to ANTHROPIC_API_KEY env
// and model to DefaultModel. Extra request options are passed to the SDK.
func NewClient(apiKey, model string, opts ...option.RequestOption) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	inner := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)

	m := DefaultModel
	if model != "" {
		m = anthropic.Model(model)
	}

	return &Client{inner: inner, model: m}, nil
}

const inferDepsPrompt = `You are an experienced project planner. Given the activities of a project, infer precedence edges between them.

Rules:
- Only add an edge when there is a strong causal reason (the successor cannot start until the predecessor is finished).
- Prefer fewer edges. Do not add transitive or speculative dependencies.
- Do not create cycles.
- Only use activity names from the provided list.
- An activity cannot precede itself.

Return your answer as JSON with this exact structure:
{
  "edges": [
    {"predecessor": "<activity that must finish first>", "successor": "<activity that waits>", "reason": "<short explanation>"}
  ],
  "summary": "<one paragraph summary of the precedence structure>"
}

Return ONLY the JSON object. No markdown fences, no commentary outside the JSON.

Here are the activities:
`

// buildPrompt constructs the full prompt for dependency inference.
func buildPrompt(activities []ActivitySummary) (string, error) {
	data, err := json.MarshalIndent(activities, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal activities: %w", err)
	}
	return inferDepsPrompt + string(data), nil
}

// InferDeps calls the Claude API to infer precedence edges.
func (c *Client) InferDeps(ctx context.Context, activities []ActivitySummary) (*InferDepsResult, error) {
	prompt, err := buildPrompt(activities)
	if err != nil {
		return nil, err
	}

	text, err := c.complete(ctx, "", prompt)
	if err != nil {
		return nil, err
	}
	text = stripJSONFences(text)

	var result InferDepsResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("parse claude response: %w\nraw: %s", err, text)
	}

	return &result, nil
}

const explainSchedulePrompt = `You are a project planner reviewing a critical path schedule.

You will receive the schedule as a table with earliest/latest start and finish times and slack for each activity, followed by the critical path.

Produce a concise explanation covering:
- Why the critical path activities determine the project duration.
- Which non-critical activities have little slack and could become critical.
- Where adding resources would shorten the project.

Keep it short: a few sentences per point. Do not repeat the table.
`

// ExplainSchedule asks Claude for a short narrative about a rendered schedule.
func (c *Client) ExplainSchedule(ctx context.Context, schedule string) (string, error) {
	text, err := c.complete(ctx, explainSchedulePrompt, "## Schedule\n\n"+schedule)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(4096),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API call: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// Rejection records an inferred edge that was not accepted.
type Rejection struct {
	Edge   DepEdge
	Reason string
}

// Accept filters inferred edges against the known activities and the
// existing edges. Unknown names, self-loops, duplicates and edges that would
// close a cycle are rejected; the rest are returned in input order.
func Accept(activities []string, existing []graph.Edge, inferred []DepEdge) ([]graph.Edge, []Rejection) {
	known := make(map[string]bool, len(activities))
	for _, a := range activities {
		known[a] = true
	}
	have := make(map[graph.Edge]bool, len(existing))
	for _, e := range existing {
		have[e] = true
	}

	current := append([]graph.Edge(nil), existing...)
	var accepted []graph.Edge
	var rejected []Rejection

	for _, d := range inferred {
		e := graph.Edge{From: strings.TrimSpace(d.Predecessor), To: strings.TrimSpace(d.Successor)}
		switch {
		case !known[e.From]:
			rejected = append(rejected, Rejection{Edge: d, Reason: fmt.Sprintf("unknown activity %q", e.From)})
			continue
		case !known[e.To]:
			rejected = append(rejected, Rejection{Edge: d, Reason: fmt.Sprintf("unknown activity %q", e.To)})
			continue
		case e.From == e.To:
			rejected = append(rejected, Rejection{Edge: d, Reason: "self-dependency"})
			continue
		case have[e]:
			rejected = append(rejected, Rejection{Edge: d, Reason: "already present"})
			continue
		}

		b := graph.NewBuilder()
		for _, a := range activities {
			b.AddActivity(a)
		}
		for _, c := range current {
			b.AddEdge(c.From, c.To)
		}
		b.AddEdge(e.From, e.To)
		if _, err := b.Build(); err != nil {
			rejected = append(rejected, Rejection{Edge: d, Reason: err.Error()})
			continue
		}

		have[e] = true
		current = append(current, e)
		accepted = append(accepted, e)
	}

	return accepted, rejected
}

// stripJSONFences removes markdown code fences that Claude sometimes adds.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	// Remove ```json ... ``` or ``` ... ```
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
