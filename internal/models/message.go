package models

// Role identifies which side of the call produced a message.
type Role string

const (
	// RoleAgent is our voice agent.
	RoleAgent Role = "agent"
	// RoleCounterpart is the pharmacy/insurance side, either an IVR system or a human.
	RoleCounterpart Role = "counterpart"
)

// Message is a canonical transcript entry. Its position in the conversation is
// the only source of index semantics; ID is opaque and never assumed to sort.
type Message struct {
	ID      string `json:"id" bson:"id"`
	Role    Role   `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
}
