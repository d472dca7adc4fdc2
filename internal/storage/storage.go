package storage

import (
	"context"
	"errors"

	"arbScope/internal/model"
)

// Storage is a sink for found opportunities.
type Storage interface {
	PutOpportunityBatch(ctx context.Context, opportunities []model.Opportunity) error
}

// Multi writes each batch to every sink and joins their errors.
type Multi []Storage

func (m Multi) PutOpportunityBatch(ctx context.Context, opportunities []model.Opportunity) error {
	var errs []error
	for _, sink := range m {
		if err := sink.PutOpportunityBatch(ctx, opportunities); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
