package ports

import "github.com/bnema/convtree/internal/domain"

type TodoParser interface {
	Parse(messages []domain.Message) domain.TodoState
}
