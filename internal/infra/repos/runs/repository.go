package runs

import (
	"errors"

	"github.com/mmrzaf/taxgen/internal/domain"
)

var ErrRunNotFound = errors.New("run not found")

// Repository stores run metadata for past generation runs.
type Repository interface {
	Init() error
	Create(run *domain.Run) error
	Update(run *domain.Run) error
	Get(id string) (*domain.Run, error)
	List(limit int, status string) ([]*domain.Run, error)
	Close() error
}
