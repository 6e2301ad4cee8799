package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/wikicontest/wikicontest/internal/apperr"
)

// translate classifies driver errors: missing rows become not_found and
// unique violations become conflict. Anything else is wrapped as-is.
func translate(err error, action, entity string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.Wrap(apperr.KindNotFound, entity+" not found", err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Wrap(apperr.KindConflict, entity+" already exists", err)
	default:
		return fmt.Errorf("failed to %s %s: %w", action, entity, err)
	}
}
