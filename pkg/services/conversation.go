package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
	"github.com/wenshu-inc/wenshu-engine/pkg/llm"
	"github.com/wenshu-inc/wenshu-engine/pkg/models"
	"github.com/wenshu-inc/wenshu-engine/pkg/repositories"
)

// HistoryTurns is the number of prior messages passed to the model.
const HistoryTurns = 10

// DefaultConversationTitle is used when a conversation is created without a title.
const DefaultConversationTitle = "新对话"

// SendMessageResult holds both persisted messages of one exchange.
type SendMessageResult struct {
	UserMessage      *models.Message `json:"user_message"`
	AssistantMessage *models.Message `json:"assistant_message"`
	Simulated        bool            `json:"simulated"`
}

// ConversationDetail is a conversation with its messages.
type ConversationDetail struct {
	*models.Conversation
	Messages []*models.Message `json:"messages"`
}

// ConversationService manages conversations and routes their messages through the ChatService.
type ConversationService interface {
	Create(ctx context.Context, title string, modelID *uuid.UUID, datasourceIDs []uuid.UUID) (*models.Conversation, error)
	Get(ctx context.Context, id uuid.UUID) (*ConversationDetail, error)
	List(ctx context.Context) ([]*models.Conversation, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Rename(ctx context.Context, id uuid.UUID, title string) error
	SetModel(ctx context.Context, id uuid.UUID, modelID *uuid.UUID) error
	SetDatasources(ctx context.Context, id uuid.UUID, datasourceIDs []uuid.UUID) error

	// SendMessage persists the user message, answers it and persists the reply.
	SendMessage(ctx context.Context, conversationID uuid.UUID, content string) (*SendMessageResult, error)
}

type conversationService struct {
	repo        repositories.ConversationRepository
	datasources repositories.DatasourceRepository
	models      repositories.ModelRepository
	chat        ChatService
	logger      *zap.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(
	repo repositories.ConversationRepository,
	datasources repositories.DatasourceRepository,
	models repositories.ModelRepository,
	chat ChatService,
	logger *zap.Logger,
) ConversationService {
	return &conversationService{
		repo:        repo,
		datasources: datasources,
		models:      models,
		chat:        chat,
		logger:      logger.Named("conversation"),
	}
}

var _ ConversationService = (*conversationService)(nil)

func (s *conversationService) Create(ctx context.Context, title string, modelID *uuid.UUID, datasourceIDs []uuid.UUID) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultConversationTitle
	}

	if modelID == nil {
		// Fall back to the default model so a new conversation can answer immediately.
		if def, err := s.models.GetDefault(ctx); err == nil {
			modelID = &def.ID
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}

	if err := s.checkReferences(ctx, modelID, datasourceIDs); err != nil {
		return nil, err
	}

	conv := &models.Conversation{Title: title, ModelID: modelID, DatasourceIDs: datasourceIDs}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, err
	}

	s.logger.Info("Created conversation",
		zap.String("id", conv.ID.String()),
		zap.Int("datasources", len(conv.DatasourceIDs)))

	return conv, nil
}

func (s *conversationService) Get(ctx context.Context, id uuid.UUID) (*ConversationDetail, error) {
	conv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	return &ConversationDetail{Conversation: conv, Messages: msgs}, nil
}

func (s *conversationService) List(ctx context.Context) ([]*models.Conversation, error) {
	return s.repo.List(ctx, 0)
}

func (s *conversationService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *conversationService) Rename(ctx context.Context, id uuid.UUID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title is required", apperrors.ErrInvalidInput)
	}
	return s.repo.UpdateTitle(ctx, id, title)
}

func (s *conversationService) SetModel(ctx context.Context, id uuid.UUID, modelID *uuid.UUID) error {
	if err := s.checkReferences(ctx, modelID, nil); err != nil {
		return err
	}
	return s.repo.SetModel(ctx, id, modelID)
}

func (s *conversationService) SetDatasources(ctx context.Context, id uuid.UUID, datasourceIDs []uuid.UUID) error {
	if err := s.checkReferences(ctx, nil, datasourceIDs); err != nil {
		return err
	}
	return s.repo.SetDatasources(ctx, id, datasourceIDs)
}

func (s *conversationService) SendMessage(ctx context.Context, conversationID uuid.UUID, content string) (*SendMessageResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", apperrors.ErrInvalidInput)
	}

	conv, err := s.repo.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	prior, err := s.repo.ListMessages(ctx, conversationID, HistoryTurns)
	if err != nil {
		return nil, err
	}
	history := make([]llm.Message, 0, len(prior))
	for _, m := range prior {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}

	userMsg := &models.Message{ConversationID: conversationID, Role: models.RoleUser, Content: content}
	if err := s.repo.AddMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	model := s.resolveModel(ctx, conv)
	datasources := s.resolveDatasources(ctx, conv)

	answer := s.chat.ProcessMessage(ctx, content, model, datasources, history)

	assistantMsg := &models.Message{
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        answer.Content,
		SQL:            answer.SQL,
		Error:          answer.Error,
	}
	if err := s.repo.AddMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}

	return &SendMessageResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Simulated:        answer.Simulated,
	}, nil
}

// resolveModel returns nil when the bound model is missing or unset.
func (s *conversationService) resolveModel(ctx context.Context, conv *models.Conversation) *models.ModelConfig {
	if conv.ModelID == nil {
		return nil
	}
	m, err := s.models.Get(ctx, *conv.ModelID)
	if err != nil {
		s.logger.Warn("Conversation model unavailable",
			zap.String("conversation_id", conv.ID.String()),
			zap.String("model_id", conv.ModelID.String()),
			zap.Error(err))
		return nil
	}
	return m
}

// resolveDatasources keeps the bound order and skips missing datasources.
func (s *conversationService) resolveDatasources(ctx context.Context, conv *models.Conversation) []*models.Datasource {
	result := make([]*models.Datasource, 0, len(conv.DatasourceIDs))
	for _, id := range conv.DatasourceIDs {
		ds, err := s.datasources.Get(ctx, id)
		if err != nil {
			s.logger.Warn("Conversation datasource unavailable",
				zap.String("conversation_id", conv.ID.String()),
				zap.String("datasource_id", id.String()),
				zap.Error(err))
			continue
		}
		result = append(result, ds)
	}
	return result
}

func (s *conversationService) checkReferences(ctx context.Context, modelID *uuid.UUID, datasourceIDs []uuid.UUID) error {
	if modelID != nil {
		if _, err := s.models.Get(ctx, *modelID); err != nil {
			return err
		}
	}
	for _, id := range datasourceIDs {
		if _, err := s.datasources.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
