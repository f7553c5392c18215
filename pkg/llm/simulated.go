package llm

import (
	"context"
	"fmt"
)

// SimulatedPrefix labels every simulated reply.
const SimulatedPrefix = "【模拟响应】"

// SimulatedSQL is the statement embedded in every simulated reply.
const SimulatedSQL = "SELECT category_id, COUNT(*) AS total_users\nFROM products\nWHERE category_id = 1\nGROUP BY category_id;"

// SimulatedGateway answers without any network call. It is used when a model
// has no API key so the chat flow can be exercised in development.
type SimulatedGateway struct {
	provider string
	model    string
}

// NewSimulatedGateway creates a simulated gateway reporting the given provider and model.
func NewSimulatedGateway(provider, model string) *SimulatedGateway {
	return &SimulatedGateway{provider: provider, model: model}
}

func (g *SimulatedGateway) Provider() string { return g.provider }

func (g *SimulatedGateway) Model() string { return g.model }

// TestConnection always fails: there is no key to test.
func (g *SimulatedGateway) TestConnection(ctx context.Context) error {
	return NewError(ErrorTypeAuth, "API key not configured", false, nil)
}

// ChatCompletion returns a fixed reply containing SimulatedSQL.
func (g *SimulatedGateway) ChatCompletion(ctx context.Context, systemPrompt string, messages []Message, maxTokens int, temperature float64) (*Completion, error) {
	question := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			question = messages[i].Content
			break
		}
	}

	content := fmt.Sprintf("%s根据您的问题\"%s\"，我生成了以下SQL：\n\n```sql\n%s\n```\n\n这个SQL查询从products表中筛选出category_id为1的产品，并统计总数。",
		SimulatedPrefix, question, SimulatedSQL)

	return &Completion{Content: content, Simulated: true}, nil
}

var _ Gateway = (*SimulatedGateway)(nil)
