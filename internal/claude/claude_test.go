package claude

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/go-cmp/cmp"

	"github.com/joshharrison/critpath/internal/graph"
)

func TestStripJSONFences_Clean(t *testing.T) {
	input := `{"edges": [], "summary": "no deps"}`
	got := stripJSONFences(input)
	if got != input {
		t.Errorf("expected unchanged, got %q", got)
	}
}

func TestStripJSONFences_WithJSONTag(t *testing.T) {
	input := "```json\n{\"edges\": []}\n```"
	got := stripJSONFences(input)
	if got != `{"edges": []}` {
		t.Errorf("expected clean JSON, got %q", got)
	}
}

func TestStripJSONFences_WithWhitespace(t *testing.T) {
	input := "  \n```\n{\"edges\": []}\n```\n  "
	got := stripJSONFences(input)
	if got != `{"edges": []}` {
		t.Errorf("expected clean JSON, got %q", got)
	}
}

func TestBuildPrompt_ContainsActivities(t *testing.T) {
	d := 3.0
	prompt, err := buildPrompt([]ActivitySummary{
		{Name: "A", Description: "Dig foundation", Duration: &d},
		{Name: "B", Description: "Pour concrete"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{`"name": "A"`, "Dig foundation", "Pour concrete", "strong causal reason"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt should contain %q", want)
		}
	}
}

func TestInferDepsResult_Unmarshal(t *testing.T) {
	raw := `{
		"edges": [
			{"predecessor": "A", "successor": "B", "reason": "concrete needs a hole"}
		],
		"summary": "B follows A"
	}`
	var result InferDepsResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	want := InferDepsResult{
		Edges:   []DepEdge{{Predecessor: "A", Successor: "B", Reason: "concrete needs a hole"}},
		Summary: "B follows A",
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestAccept(t *testing.T) {
	activities := []string{"A", "B", "C", "D"}
	existing := []graph.Edge{{From: "A", To: "B"}, {From: "B", To: "C"}}

	accepted, rejected := Accept(activities, existing, []DepEdge{
		{Predecessor: "C", Successor: "D"},
		{Predecessor: "C", Successor: "A"}, // closes A -> B -> C -> A
		{Predecessor: "A", Successor: "B"},
		{Predecessor: "D", Successor: "D"},
		{Predecessor: "X", Successor: "A"},
		{Predecessor: " A ", Successor: "D"},
		{Predecessor: "D", Successor: "B"}, // closes B -> C -> D -> B via the accepted C -> D
	})

	if diff := cmp.Diff([]graph.Edge{{From: "C", To: "D"}, {From: "A", To: "D"}}, accepted); diff != "" {
		t.Errorf("accepted mismatch (-want +got):\n%s", diff)
	}

	var reasons []string
	for _, r := range rejected {
		reasons = append(reasons, r.Edge.Predecessor+">"+r.Edge.Successor+": "+r.Reason)
	}
	if len(rejected) != 5 {
		t.Fatalf("expected 5 rejections, got %d: %v", len(rejected), reasons)
	}
	if !strings.Contains(rejected[0].Reason, "cycle") {
		t.Errorf("expected cycle rejection, got %q", rejected[0].Reason)
	}
	if rejected[1].Reason != "already present" {
		t.Errorf("expected duplicate rejection, got %q", rejected[1].Reason)
	}
	if rejected[2].Reason != "self-dependency" {
		t.Errorf("expected self-dependency rejection, got %q", rejected[2].Reason)
	}
	if !strings.Contains(rejected[3].Reason, `unknown activity "X"`) {
		t.Errorf("expected unknown activity rejection, got %q", rejected[3].Reason)
	}
	if !strings.Contains(rejected[4].Reason, "cycle") {
		t.Errorf("expected cycle rejection, got %q", rejected[4].Reason)
	}
}

func fakeMessagesAPI(t *testing.T, reply string, gotBody *string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if gotBody != nil {
			*gotBody = string(body)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_test",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-test",
			"content":       []map[string]any{{"type": "text", "text": reply}},
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"usage":         map[string]any{"input_tokens": 10, "output_tokens": 10},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestInferDeps_AgainstFakeAPI(t *testing.T) {
	var body string
	ts := fakeMessagesAPI(t, "```json\n{\"edges\":[{\"predecessor\":\"A\",\"successor\":\"B\",\"reason\":\"order\"}],\"summary\":\"linear\"}\n```", &body)

	c, err := NewClient("test-key", "claude-test", option.WithBaseURL(ts.URL), option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	result, err := c.InferDeps(context.Background(), []ActivitySummary{{Name: "A"}, {Name: "B"}})
	if err != nil {
		t.Fatalf("InferDeps: %v", err)
	}
	if len(result.Edges) != 1 || result.Edges[0].Predecessor != "A" || result.Summary != "linear" {
		t.Errorf("unexpected result %+v", result)
	}
	if !strings.Contains(body, `"claude-test"`) {
		t.Errorf("expected configured model in request, got %s", body)
	}
}

func TestExplainSchedule_AgainstFakeAPI(t *testing.T) {
	ts := fakeMessagesAPI(t, "  A and C drive the finish date.  ", nil)

	c, err := NewClient("test-key", "", option.WithBaseURL(ts.URL), option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	got, err := c.ExplainSchedule(context.Background(), "A | 0 | 3")
	if err != nil {
		t.Fatalf("ExplainSchedule: %v", err)
	}
	if got != "A and C drive the finish date." {
		t.Errorf("unexpected explanation %q", got)
	}
}

func TestNewClient_RequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewClient("", ""); err == nil {
		t.Error("expected error without API key")
	}
}
