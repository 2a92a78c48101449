// Package types defines the shared domain types for the Recall contextual
// memory system: vector records, retrieval results, and the per-owner
// contextual metadata profile.
package types

// Role identifies which side of a conversation produced a message.
type Role string

const (
	// RoleUser marks a message written by the owner.
	RoleUser Role = "user"

	// RoleAssistant marks a message produced by the model.
	RoleAssistant Role = "assistant"
)

// IsValidRole reports whether s is a recognized message role.
func IsValidRole(s string) bool {
	return s == string(RoleUser) || s == string(RoleAssistant)
}

// VectorRecord is a single embedded chat message as stored in the vector
// index. Records are immutable once written: they are inserted, never
// updated, and deleted only together with the owning index.
type VectorRecord struct {
	ID        string    `json:"id"`        // Unique record identifier
	Vector    []float32 `json:"vector"`    // Embedding (fixed dimension, see vectorstore.Dimension)
	Role      Role      `json:"role"`      // Who produced the text
	Text      string    `json:"text"`      // Raw message text
	Timestamp int64     `json:"timestamp"` // Milliseconds since epoch
	OwnerID   string    `json:"owner_id"`  // Owning user
}

// Match is a single nearest-neighbor result from the vector store, in
// similarity order.
type Match struct {
	Record VectorRecord `json:"record"`
	Score  float32      `json:"score"` // Cosine similarity, higher is closer
}

// OrderedMessage is a retrieved context message after chronological
// reassembly. The set of messages is chosen by similarity; their order is
// strictly ascending by timestamp.
type OrderedMessage struct {
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}
