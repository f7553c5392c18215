package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/adapters/datasource"
	"github.com/wenshu-inc/wenshu-engine/pkg/llm"
	"github.com/wenshu-inc/wenshu-engine/pkg/logging"
	"github.com/wenshu-inc/wenshu-engine/pkg/models"
	"github.com/wenshu-inc/wenshu-engine/pkg/prompts"
	sqlgate "github.com/wenshu-inc/wenshu-engine/pkg/sql"
)

// NoModelMessage is returned when a message arrives without a model.
const NoModelMessage = "请先选择一个AI模型才能进行对话"

// ChatSampleLimit is the number of sample rows per table put into a prompt.
const ChatSampleLimit = 5

// dataKeywords mark a message as a data question. Matching is on the lowercased message.
var dataKeywords = []string{"查询", "数据", "表", "字段", "统计", "分析", "sql", "select", "查找", "搜索"}

// Answer is the assistant reply to one message.
type Answer struct {
	Content   string                  `json:"content"`
	SQL       *string                 `json:"sql,omitempty"`
	Error     *string                 `json:"error,omitempty"`
	Simulated bool                    `json:"simulated"`
	Results   *datasource.QueryResult `json:"results,omitempty"`
}

// ChatService turns a user message into an answer, generating and running SQL
// against the first datasource when the message asks about data.
type ChatService interface {
	// ProcessMessage never returns an error and never panics; failures are
	// reported in Answer.Error.
	ProcessMessage(ctx context.Context, content string, model *models.ModelConfig, datasources []*models.Datasource, history []llm.Message) *Answer
}

type chatService struct {
	datasources DatasourceService
	models      ModelService
	logger      *zap.Logger
}

// NewChatService creates a new chat service.
func NewChatService(datasources DatasourceService, models ModelService, logger *zap.Logger) ChatService {
	return &chatService{
		datasources: datasources,
		models:      models,
		logger:      logger.Named("chat"),
	}
}

var _ ChatService = (*chatService)(nil)

func (s *chatService) ProcessMessage(
	ctx context.Context,
	content string,
	model *models.ModelConfig,
	datasources []*models.Datasource,
	history []llm.Message,
) (answer *Answer) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Message processing panicked", zap.Any("panic", r), zap.Stack("stack"))
			answer = errorAnswer(fmt.Sprintf("处理您的消息时出现错误: %v", r))
		}
	}()

	if model == nil {
		return &Answer{Content: NoModelMessage}
	}

	gateway := s.models.Gateway(model)
	_, simulated := gateway.(*llm.SimulatedGateway)

	if len(datasources) > 0 && IsDataQuestion(content) {
		answer = s.answerWithSQL(ctx, gateway, content, model, datasources[0], history)
	} else {
		answer = s.generalChat(ctx, gateway, content, model, history)
	}
	answer.Simulated = answer.Simulated || simulated
	return answer
}

// IsDataQuestion reports whether a message contains any data keyword.
func IsDataQuestion(content string) bool {
	lower := strings.ToLower(content)
	for _, kw := range dataKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (s *chatService) answerWithSQL(
	ctx context.Context,
	gateway llm.Gateway,
	content string,
	model *models.ModelConfig,
	ds *models.Datasource,
	history []llm.Message,
) *Answer {
	snapshot, samples := s.gatherSchema(ctx, ds, content)
	systemPrompt := prompts.BuildSQLSystemPrompt(snapshot, samples)

	s.logger.Debug("Generating SQL",
		zap.String("datasource_id", ds.ID.String()),
		zap.Int("tables", len(snapshot.Tables)),
		zap.Int("sample_tables", len(samples)),
		zap.Int("prompt_chars", len(systemPrompt)))

	completion, err := gateway.ChatCompletion(ctx, systemPrompt, appendTurn(history, content), model.MaxTokens, 0)
	if err != nil {
		s.logger.Error("LLM call failed", zap.String("provider", gateway.Provider()), zap.Error(err))
		return errorAnswer(fmt.Sprintf("调用AI模型失败: %v", err))
	}

	reply := completion.Content
	sqlText, ok := llm.ExtractSQL(reply)
	if !ok {
		return &Answer{Content: reply, Simulated: completion.Simulated}
	}

	answer := &Answer{
		Content:   fmt.Sprintf("```sql\n%s\n```\n\n%s", sqlText, reply),
		SQL:       &sqlText,
		Simulated: completion.Simulated,
	}

	result, err := s.datasources.ExecuteReadonlyQuery(ctx, ds.ID, sqlText, 0, sqlgate.SurfaceChat)
	if err != nil {
		msg := logging.SanitizeError(err)
		answer.Content += "\n\n执行查询时出错: " + msg
		answer.Error = &msg
		return answer
	}

	pretty, err := prettyJSON(result)
	if err != nil {
		msg := err.Error()
		answer.Content += "\n\n执行查询时出错: " + msg
		answer.Error = &msg
		return answer
	}

	answer.Content += "\n\n查询结果:\n```json\n" + pretty + "\n```"
	answer.Results = result
	return answer
}

// gatherSchema reads the snapshot and sample rows. Failures degrade to empty values.
func (s *chatService) gatherSchema(ctx context.Context, ds *models.Datasource, question string) (*datasource.SchemaSnapshot, []prompts.TableSample) {
	snapshot, err := s.datasources.GetSchema(ctx, ds.ID, false)
	if err != nil {
		s.logger.Warn("Schema unavailable, continuing without it",
			zap.String("datasource_id", ds.ID.String()),
			zap.String("error", logging.SanitizeError(err)))
		return &datasource.SchemaSnapshot{}, nil
	}

	var samples []prompts.TableSample
	for _, table := range sampleTables(snapshot, question, prompts.MaxSampleTables) {
		rows, err := s.datasources.GetSampleData(ctx, ds.ID, table.Name, ChatSampleLimit)
		if err != nil {
			s.logger.Warn("Sample rows unavailable",
				zap.String("table", table.Name),
				zap.String("error", logging.SanitizeError(err)))
			continue
		}
		columns := make([]string, len(table.Columns))
		for i, c := range table.Columns {
			columns[i] = c.Name
		}
		samples = append(samples, prompts.TableSample{Table: table.Name, Columns: columns, Rows: rows})
	}
	return snapshot, samples
}

// sampleTables picks up to n tables, preferring those named in the question in
// singular or plural form, then snapshot order.
func sampleTables(snapshot *datasource.SchemaSnapshot, question string, n int) []datasource.TableSchema {
	lower := strings.ToLower(question)

	var mentioned, rest []datasource.TableSchema
	for _, t := range snapshot.Tables {
		if mentionsTable(lower, t.Name) {
			mentioned = append(mentioned, t)
		} else {
			rest = append(rest, t)
		}
	}

	picked := append(mentioned, rest...)
	if len(picked) > n {
		picked = picked[:n]
	}
	return picked
}

func mentionsTable(lowerQuestion, table string) bool {
	name := strings.ToLower(table)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return false
	}
	for _, form := range []string{name, inflection.Singular(name), inflection.Plural(name)} {
		if form != "" && strings.Contains(lowerQuestion, form) {
			return true
		}
	}
	return false
}

func (s *chatService) generalChat(ctx context.Context, gateway llm.Gateway, content string, model *models.ModelConfig, history []llm.Message) *Answer {
	completion, err := gateway.ChatCompletion(ctx, prompts.GeneralChatPrompt, appendTurn(history, content), model.MaxTokens, model.Temperature)
	if err != nil {
		s.logger.Error("LLM call failed", zap.String("provider", gateway.Provider()), zap.Error(err))
		return errorAnswer(fmt.Sprintf("调用AI模型失败: %v", err))
	}
	return &Answer{Content: completion.Content, Simulated: completion.Simulated}
}

func appendTurn(history []llm.Message, content string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	return append(messages, llm.Message{Role: llm.RoleUser, Content: content})
}

func errorAnswer(content string) *Answer {
	msg := content
	return &Answer{Content: content, Error: &msg}
}

func prettyJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode query result: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
