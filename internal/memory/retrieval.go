package memory

import (
	"context"
	"log"
	"sort"

	"github.com/driftlock/recall/pkg/types"
)

// DefaultTopK is the number of nearest records fetched per retrieval.
const DefaultTopK = 10

// QueryContext retrieves the owner's most relevant past messages for a query
// and reorders them chronologically, oldest first, so the caller can replay
// them as conversation history. Retrieval fails open: any error yields an
// empty slice and a log line, never an error to the chat path.
func (s *Service) QueryContext(ctx context.Context, ownerID, query string, topK int) []types.OrderedMessage {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("memory: context embedding failed for %s: %v", ownerID, err)
		return []types.OrderedMessage{}
	}

	matches, err := s.vectors.Query(ctx, ownerID, vector, topK)
	if err != nil {
		log.Printf("memory: context query failed for %s: %v", ownerID, err)
		return []types.OrderedMessage{}
	}

	messages := make([]types.OrderedMessage, 0, len(matches))
	for _, m := range matches {
		messages = append(messages, types.OrderedMessage{
			Role:      m.Record.Role,
			Text:      m.Record.Text,
			Timestamp: m.Record.Timestamp,
		})
	}

	// Similarity order is useless for replay; time order is what the model
	// needs to follow the thread.
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Timestamp < messages[j].Timestamp
	})

	return messages
}
