// Package clipboard hands merged output to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrUnavailable reports that no clipboard utility is available on this system.
var ErrUnavailable = errors.New("clipboard unavailable")

// Copier places merged text on a clipboard.
type Copier interface {
	Copy(text string) error
}

// Service copies text to the system clipboard through atotto/clipboard.
type Service struct{}

// NewService constructs the system clipboard Copier.
func NewService() *Service {
	return &Service{}
}

// Copy writes text to the system clipboard.
func (service *Service) Copy(text string) error {
	if clipboard.Unsupported {
		return ErrUnavailable
	}
	if writeError := clipboard.WriteAll(text); writeError != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, writeError)
	}
	return nil
}

var _ Copier = (*Service)(nil)
