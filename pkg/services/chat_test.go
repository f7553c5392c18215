package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
	"github.com/wenshu-inc/wenshu-engine/pkg/llm"
	"github.com/wenshu-inc/wenshu-engine/pkg/models"
	"github.com/wenshu-inc/wenshu-engine/pkg/prompts"
	"github.com/wenshu-inc/wenshu-engine/pkg/workerpool"
)

type chatTestContext struct {
	chat      ChatService
	connector *datasource.MockConnector
	gateway   *llm.MockGateway
	model     *models.ModelConfig
	ds        *models.Datasource
}

// setupChat wires a ChatService over a mock connector. With simulated set the
// real gateway factory is used with an empty key; otherwise a MockGateway.
func setupChat(t *testing.T, simulated bool) *chatTestContext {
	t.Helper()

	vault := newTestVault(t)
	ds := &models.Datasource{ID: uuid.New(), Name: "shop", Type: "mysql", Host: "h", Port: 3306, Database: "shop", Username: "u"}
	connector := &datasource.MockConnector{TypeName: "mysql"}
	connector.ListTablesFunc = func(ctx context.Context) ([]datasource.TableInfo, error) {
		return []datasource.TableInfo{{Name: "categories"}, {Name: "products", Description: "商品"}}, nil
	}
	connector.TableSchemaFunc = func(ctx context.Context, table string) ([]datasource.ColumnInfo, error) {
		return []datasource.ColumnInfo{
			{Name: "id", DataType: "int", IsPrimaryKey: true},
			{Name: "category_id", DataType: "int", Nullable: true},
		}, nil
	}
	connector.SampleRowsFunc = func(ctx context.Context, table string, limit int) ([]map[string]any, error) {
		return []map[string]any{{"id": 1, "category_id": 1}}, nil
	}

	pool := workerpool.New(workerpool.Config{MaxConcurrent: 2}, zap.NewNop())
	dsSvc := NewDatasourceService(newMockDatasourceRepository(ds), vault,
		&datasource.MockFactory{Connector: connector}, pool, DatasourceServiceConfig{SampleLimit: 3, MaxQueryRows: 100}, zap.NewNop())

	model := &models.ModelConfig{ID: uuid.New(), Name: "m", Provider: "deepseek", ModelName: "deepseek-chat", Temperature: 0.8, MaxTokens: 2048}

	gateway := llm.NewMockGateway()
	var factory llm.GatewayFactory = &llm.MockFactory{Gateway: gateway}
	if simulated {
		factory = llm.NewFactory(time.Second, "", zap.NewNop())
	} else {
		model.APIKey = vault.Encrypt("sk-test")
	}
	modelSvc := NewModelService(newMockModelRepository(model), vault, factory, zap.NewNop())

	return &chatTestContext{
		chat:      NewChatService(dsSvc, modelSvc, zap.NewNop()),
		connector: connector,
		gateway:   gateway,
		model:     model,
		ds:        ds,
	}
}

func TestChatService_SimulatedProductsScenario(t *testing.T) {
	tc := setupChat(t, true)
	tc.connector.ExecuteQueryFunc = func(ctx context.Context, sqlQuery string, maxRows int) (*datasource.QueryResult, error) {
		return &datasource.QueryResult{
			Columns:   []string{"category_id", "total_users"},
			Rows:      []map[string]any{{"category_id": 1, "total_users": 2}},
			TotalRows: 1,
		}, nil
	}

	answer := tc.chat.ProcessMessage(context.Background(), "查询分类1下的商品数量", tc.model, []*models.Datasource{tc.ds}, nil)

	require.NotNil(t, answer.SQL)
	assert.Equal(t, llm.SimulatedSQL, *answer.SQL)
	assert.Nil(t, answer.Error)
	assert.True(t, answer.Simulated)
	require.NotNil(t, answer.Results)
	assert.Equal(t, 1, answer.Results.TotalRows)

	assert.True(t, strings.HasPrefix(answer.Content, "```sql\n"+llm.SimulatedSQL+"\n```\n\n"+llm.SimulatedPrefix))
	assert.Contains(t, answer.Content, "\n\n查询结果:\n```json\n")
	assert.Contains(t, answer.Content, `"total_users": 2`)
	assert.True(t, strings.HasSuffix(answer.Content, "\n```"))

	assert.Equal(t, 1, tc.connector.ExecuteQueryCalls)
	assert.Equal(t, strings.TrimSuffix(llm.SimulatedSQL, ";"), tc.connector.LastQuery)
}

func TestChatService_NoModel(t *testing.T) {
	tc := setupChat(t, false)

	answer := tc.chat.ProcessMessage(context.Background(), "查询所有商品", nil, []*models.Datasource{tc.ds}, nil)

	assert.Equal(t, NoModelMessage, answer.Content)
	assert.Nil(t, answer.Error)
	assert.Equal(t, 0, tc.gateway.ChatCompletionCalls)
	assert.Equal(t, 0, tc.connector.ExecuteQueryCalls)
}

func TestChatService_GateRejectionKeepsExplanation(t *testing.T) {
	tc := setupChat(t, false)
	tc.gateway.ChatCompletionFunc = func(ctx context.Context, systemPrompt string, messages []llm.Message, maxTokens int, temperature float64) (*llm.Completion, error) {
		return &llm.Completion{Content: "```sql\nDELETE FROM products\n```\n\n这条语句会删除所有商品。"}, nil
	}

	answer := tc.chat.ProcessMessage(context.Background(), "帮我查询然后清空商品表", tc.model, []*models.Datasource{tc.ds}, nil)

	require.NotNil(t, answer.SQL)
	assert.Equal(t, "DELETE FROM products", *answer.SQL)
	require.NotNil(t, answer.Error)
	assert.Contains(t, answer.Content, "这条语句会删除所有商品。")
	assert.Contains(t, answer.Content, "\n\n执行查询时出错: ")
	assert.Contains(t, answer.Content, "只允许执行只读查询")
	assert.Equal(t, 0, tc.connector.ExecuteQueryCalls)
}

func TestChatService_SQLPromptAndParameters(t *testing.T) {
	tc := setupChat(t, false)
	tc.gateway.ChatCompletionFunc = func(ctx context.Context, systemPrompt string, messages []llm.Message, maxTokens int, temperature float64) (*llm.Completion, error) {
		return &llm.Completion{Content: "无法确定您要查询哪个字段。"}, nil
	}
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "之前的问题"},
		{Role: llm.RoleAssistant, Content: "之前的回答"},
	}

	answer := tc.chat.ProcessMessage(context.Background(), "统计 PRODUCTS 数量", tc.model, []*models.Datasource{tc.ds}, history)

	assert.Equal(t, "无法确定您要查询哪个字段。", answer.Content, "no SQL block means the reply alone")
	assert.Nil(t, answer.SQL)
	assert.Equal(t, 0, tc.connector.ExecuteQueryCalls)

	assert.Equal(t, 0.0, tc.gateway.LastTemperature)
	assert.Equal(t, 2048, tc.gateway.LastMaxTokens)
	require.Len(t, tc.gateway.LastMessages, 3)
	assert.Equal(t, "统计 PRODUCTS 数量", tc.gateway.LastMessages[2].Content)

	prompt := tc.gateway.LastSystemPrompt
	assert.Contains(t, prompt, "表名: products (说明: 商品)")
	assert.Contains(t, prompt, "- id (int, 非空, 主键: 是)")
	assert.Contains(t, prompt, "部分表的样本数据:")
	assert.Less(t, strings.Index(prompt, "表 products 样本数据"), strings.Index(prompt, "表 categories 样本数据"),
		"tables named in the question are sampled first")
}

func TestChatService_GeneralChat(t *testing.T) {
	tc := setupChat(t, false)
	tc.gateway.ChatCompletionFunc = func(ctx context.Context, systemPrompt string, messages []llm.Message, maxTokens int, temperature float64) (*llm.Completion, error) {
		return &llm.Completion{Content: "你好！我是问数智能体。"}, nil
	}

	answer := tc.chat.ProcessMessage(context.Background(), "你好", tc.model, []*models.Datasource{tc.ds}, nil)

	assert.Equal(t, "你好！我是问数智能体。", answer.Content)
	assert.Equal(t, prompts.GeneralChatPrompt, tc.gateway.LastSystemPrompt)
	assert.InDelta(t, 0.8, tc.gateway.LastTemperature, 0.0001)
	assert.Equal(t, 0, tc.connector.SampleRowsCalls, "general chat does not touch the datasource")
}

func TestChatService_DataQuestionWithoutDatasourceIsGeneralChat(t *testing.T) {
	tc := setupChat(t, false)

	tc.chat.ProcessMessage(context.Background(), "查询订单", tc.model, nil, nil)

	assert.Equal(t, prompts.GeneralChatPrompt, tc.gateway.LastSystemPrompt)
}

func TestChatService_LLMFailure(t *testing.T) {
	tc := setupChat(t, false)
	tc.gateway.ChatCompletionFunc = func(ctx context.Context, systemPrompt string, messages []llm.Message, maxTokens int, temperature float64) (*llm.Completion, error) {
		return nil, llm.NewError(llm.ErrorTypeEndpoint, "request timeout", true, errors.New("deadline exceeded"))
	}

	answer := tc.chat.ProcessMessage(context.Background(), "查询商品", tc.model, []*models.Datasource{tc.ds}, nil)

	assert.True(t, strings.HasPrefix(answer.Content, "调用AI模型失败: "))
	require.NotNil(t, answer.Error)
}

func TestChatService_PanicIsRecovered(t *testing.T) {
	tc := setupChat(t, false)
	tc.gateway.ChatCompletionFunc = func(ctx context.Context, systemPrompt string, messages []llm.Message, maxTokens int, temperature float64) (*llm.Completion, error) {
		panic("unexpected state")
	}

	var answer *Answer
	require.NotPanics(t, func() {
		answer = tc.chat.ProcessMessage(context.Background(), "你好", tc.model, nil, nil)
	})
	assert.Equal(t, "处理您的消息时出现错误: unexpected state", answer.Content)
	require.NotNil(t, answer.Error)
}

func TestChatService_SchemaFailureDegrades(t *testing.T) {
	tc := setupChat(t, false)
	tc.connector.ListTablesFunc = func(ctx context.Context) ([]datasource.TableInfo, error) {
		return nil, errors.New("connection refused")
	}

	answer := tc.chat.ProcessMessage(context.Background(), "查询商品", tc.model, []*models.Datasource{tc.ds}, nil)

	assert.Nil(t, answer.Error)
	assert.Equal(t, 1, tc.gateway.ChatCompletionCalls)
	assert.NotContains(t, tc.gateway.LastSystemPrompt, "表名:")
}

func TestIsDataQuestion(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"查询所有用户", true},
		{"帮我统计一下", true},
		{"Write a SELECT for me", true},
		{"what is SQL", true},
		{"你好", false},
		{"tell me a joke", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsDataQuestion(tt.msg), tt.msg)
	}
}

func TestSampleTables(t *testing.T) {
	snapshot := &datasource.SchemaSnapshot{Tables: []datasource.TableSchema{
		{Name: "accounts"}, {Name: "audit"}, {Name: "category"}, {Name: "dbo.orders"}, {Name: "users"},
	}}

	tests := []struct {
		question string
		want     []string
	}{
		{"每个 categories 有多少 order", []string{"category", "dbo.orders", "accounts"}},
		{"统计 user", []string{"users", "accounts", "audit"}},
		{"统计总数", []string{"accounts", "audit", "category"}},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			var got []string
			for _, ts := range sampleTables(snapshot, tt.question, 3) {
				got = append(got, ts.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
