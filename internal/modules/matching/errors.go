package matching

import (
	"fmt"

	"happyauto/internal/modules/delivery"
)

func wrapValidation(err error) error {
	return fmt.Errorf("%w: %w", delivery.ErrValidation, err)
}
