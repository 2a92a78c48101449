// Package chat orchestrates a conversation turn: profile and context
// retrieval, response streaming, and durable turn recording.
package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/driftlock/recall/internal/llm"
	"github.com/driftlock/recall/internal/memory"
	"github.com/driftlock/recall/internal/profile"
	"github.com/driftlock/recall/pkg/types"
)

// Service runs chat turns on top of the memory subsystem.
type Service struct {
	memory    *memory.Service
	streamer  llm.ChatStreamer
	generator llm.TextGenerator
	topK      int
}

// NewService creates a chat service. topK bounds how many past messages are
// replayed as context per turn.
func NewService(mem *memory.Service, streamer llm.ChatStreamer, generator llm.TextGenerator, topK int) *Service {
	if topK <= 0 {
		topK = memory.DefaultTopK
	}
	return &Service{memory: mem, streamer: streamer, generator: generator, topK: topK}
}

// Request is one user message in a conversation.
type Request struct {
	OwnerID string
	Message string

	// OnFragment receives response fragments as they stream. Optional.
	OnFragment func(fragment string) error
}

// Response is the completed turn.
type Response struct {
	Reply        string
	ContextUsed  int
	ProfileKnown bool
}

// Converse runs one full turn. Profile and context lookups fail open; a
// generation failure fails the turn; a recording failure returns the reply
// together with the error so the caller can decide what to surface.
func (s *Service) Converse(ctx context.Context, req Request) (*Response, error) {
	if req.OwnerID == "" {
		return nil, fmt.Errorf("owner ID is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("message is required")
	}

	// Profile load and context retrieval are independent; run them together.
	var (
		wg      sync.WaitGroup
		prof    *types.Profile
		history []types.OrderedMessage
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		p, err := s.memory.GetProfile(ctx, req.OwnerID)
		if err != nil {
			log.Printf("chat: profile load failed for %s: %v", req.OwnerID, err)
			p = types.NewProfile(req.OwnerID)
		}
		prof = p
	}()
	go func() {
		defer wg.Done()
		history = s.memory.QueryContext(ctx, req.OwnerID, req.Message, s.topK)
	}()
	wg.Wait()

	messages := s.buildMessages(prof, history, req.Message)

	reply, err := s.streamer.StreamChat(ctx, messages, req.OnFragment)
	if err != nil {
		return nil, fmt.Errorf("chat generation failed: %w", err)
	}

	resp := &Response{
		Reply:        reply,
		ContextUsed:  len(history),
		ProfileKnown: prof.InteractionCount > 0,
	}

	if err := s.memory.RecordTurn(ctx, types.Turn{
		OwnerID:       req.OwnerID,
		UserText:      req.Message,
		AssistantText: reply,
		Timestamp:     time.Now().UnixMilli(),
	}); err != nil {
		return resp, fmt.Errorf("failed to record turn: %w", err)
	}

	return resp, nil
}

// buildMessages assembles the model input: profile-derived system prompt,
// retrieved history oldest first, then the new user message.
func (s *Service) buildMessages(prof *types.Profile, history []types.OrderedMessage, message string) []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, len(history)+2)
	messages = append(messages, llm.ChatMessage{
		Role:    "system",
		Content: profile.SystemPrompt(prof),
	})
	for _, msg := range history {
		role := "user"
		if msg.Role == types.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, llm.ChatMessage{Role: role, Content: msg.Text})
	}
	messages = append(messages, llm.ChatMessage{Role: "user", Content: message})
	return messages
}

// GenerateTitle produces a short conversation title from the opening
// message. Failures degrade to a truncated echo of the message itself.
func (s *Service) GenerateTitle(ctx context.Context, message string) string {
	prompt := "Generate a short title (max 6 words) for a conversation that starts with this message. " +
		"Respond with only the title, no quotes or punctuation around it.\n\nMessage: " + message

	title, err := s.generator.Complete(ctx, prompt)
	if err != nil {
		log.Printf("chat: title generation failed: %v", err)
		return fallbackTitle(message)
	}

	title = strings.Trim(strings.TrimSpace(title), `"'`)
	if title == "" {
		return fallbackTitle(message)
	}
	return title
}

func fallbackTitle(message string) string {
	message = strings.TrimSpace(message)
	const max = 40
	if len(message) <= max {
		return message
	}
	return message[:max] + "..."
}
