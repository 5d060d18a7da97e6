/*-------------------------------------------------------------------------
 *
 * SQL Sandbox - Natural Language Query Agent Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sqlsandbox/internal/llm"
)

// stubGateway returns a canned completion and counts calls.
type stubGateway struct {
	text  string
	model string
	err   error
	calls int
}

func (g *stubGateway) Complete(ctx context.Context, prompt string) (llm.Completion, error) {
	g.calls++
	if g.err != nil {
		return llm.Completion{}, g.err
	}
	model := g.model
	if model == "" {
		model = "test-model"
	}
	return llm.Completion{Text: g.text, Model: model}, nil
}

func TestAgentAsk(t *testing.T) {
	info := newTestStore(t, 3)
	gw := &stubGateway{text: "Here is the query:\n```sql\nSELECT name FROM people ORDER BY id;\n```"}
	agent := NewAgent(gw, DefaultLimits())

	result := agent.Ask(context.Background(), "list everyone", info)
	if !result.Success {
		t.Fatalf("ask failed: %s", result.Error)
	}
	if result.RowCount != 3 {
		t.Errorf("got %d rows, want 3", result.RowCount)
	}
	if result.SQL != "SELECT name FROM people ORDER BY id" {
		t.Errorf("SQL = %q", result.SQL)
	}
	if result.Model != "test-model" {
		t.Errorf("model = %q, want test-model", result.Model)
	}
}

// A rejected query is reported, not repaired: the gateway is consulted
// exactly once.
func TestAgentRejectionIsFinal(t *testing.T) {
	info := newTestStore(t, 1)
	gw := &stubGateway{text: "DROP TABLE people"}
	agent := NewAgent(gw, DefaultLimits())

	result := agent.Ask(context.Background(), "remove the table", info)
	if result.Success {
		t.Fatal("destructive query succeeded")
	}
	if !strings.Contains(result.Error, "blocked") {
		t.Errorf("error = %q, want a blocked-operation message", result.Error)
	}
	if result.SQL != "DROP TABLE people" {
		t.Errorf("rejected SQL not recorded: %q", result.SQL)
	}
	if gw.calls != 1 {
		t.Errorf("gateway called %d times, want 1", gw.calls)
	}
}

func TestAgentGatewayError(t *testing.T) {
	info := newTestStore(t, 1)
	gw := &stubGateway{err: errors.New("all models exhausted")}
	agent := NewAgent(gw, DefaultLimits())

	result := agent.Ask(context.Background(), "anything", info)
	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "SQL generation failed") {
		t.Errorf("error = %q, want a generation failure message", result.Error)
	}
}

func TestAgentPromptContainsSchema(t *testing.T) {
	info := newTestStore(t, 1)
	var captured string
	gw := &captureGateway{text: "SELECT 1", prompt: &captured}

	NewAgent(gw, DefaultLimits()).Ask(context.Background(), "what is in here?", info)

	if !strings.Contains(captured, info.Schema) {
		t.Error("prompt does not embed the schema")
	}
	if !strings.Contains(captured, "what is in here?") {
		t.Error("prompt does not embed the question")
	}
}

type captureGateway struct {
	text   string
	prompt *string
}

func (g *captureGateway) Complete(ctx context.Context, prompt string) (llm.Completion, error) {
	*g.prompt = prompt
	return llm.Completion{Text: g.text, Model: "capture"}, nil
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", "SELECT 1", "SELECT 1"},
		{"fenced", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"plain fence", "```\nSELECT 1\n```", "SELECT 1"},
		{"prose prefix", "Here's the query you need:\n\nSELECT name FROM users", "SELECT name FROM users"},
		{"trailing semicolons", "SELECT 1;;\n", "SELECT 1"},
		{"lowercase", "select 1", "select 1"},
		{"escape hatch", "SELECT 'Cannot answer: no dates in schema' AS error", "SELECT 'Cannot answer: no dates in schema' AS error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanResponse(tt.in); got != tt.want {
				t.Errorf("CleanResponse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
