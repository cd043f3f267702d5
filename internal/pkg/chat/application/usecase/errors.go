package usecase

import (
	"errors"
	"fmt"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
)

// ErrPersistence indicates an infrastructure/repository failure inside a use case
var ErrPersistence = fmt.Errorf("chat use case persistence error")

// persistenceErr keeps domain errors reported by adapters and wraps everything else.
func persistenceErr(err error) error {
	if errors.Is(err, chat.ErrNotFound) || errors.Is(err, chat.ErrConflict) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
