package suppliers

import (
	"strings"

	"github.com/tuftline-erp/tuftline-erp/internal/masterdata/shared"
)

func (s *Service) validate(sup Supplier) error {
	if strings.TrimSpace(sup.Code) == "" {
		return shared.ErrRequiredField
	}
	if strings.TrimSpace(sup.Name) == "" {
		return shared.ErrRequiredField
	}
	return nil
}
