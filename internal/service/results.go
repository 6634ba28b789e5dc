package service

import (
	"context"

	"github.com/globaltrustbank/loanorch/internal/domain"
)

// ListResults returns every stored record of a customer, oldest first.
func (s *Service) ListResults(ctx context.Context, customerID string) ([]domain.AgentResult, error) {
	id, ok := domain.NormalizeCustomerID(customerID)
	if !ok {
		return nil, ErrInvalidCustomerID
	}
	return s.store.ListResults(ctx, id)
}
