package core

import (
	"errors"
	"strings"
)

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Greeting is the model turn that opens every new conversation.
const Greeting = "Olá! Sou seu assistente financeiro. Como posso ajudar a analisar suas finanças hoje?"

var ErrInvalidRole = errors.New("invalid message role")

type (
	Role string

	// Message is one turn of an assistant conversation. Conversations are
	// never persisted.
	Message struct {
		Role Role   `json:"role"`
		Text string `json:"text"`
	}
)

// ParseRole normalises common aliases of the two roles.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "human":
		return RoleUser, nil
	case "model", "assistant", "ai":
		return RoleModel, nil
	default:
		return "", ErrInvalidRole
	}
}

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}
