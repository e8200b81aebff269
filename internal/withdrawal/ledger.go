package withdrawal

import (
	"context"
	"fmt"

	"github.com/gabapcia/solcustody/internal/pkg/logger"
	"github.com/gabapcia/solcustody/internal/progress"
)

// Status is the terminal state of a ledger record.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// LedgerUpdate is written to the ledger when a withdrawal ends.
type LedgerUpdate struct {
	Status      Status
	TrxID       string
	Description string
}

// Ledger records withdrawal outcomes.
type Ledger interface {
	Update(ctx context.Context, id string, update LedgerUpdate) error
}

// succeed marks id COMPLETED with signature.
func (s *service) succeed(ctx context.Context, id, signature string, observer progress.Observer, msg string) error {
	err := s.ledger.Update(ctx, id, LedgerUpdate{Status: StatusCompleted, TrxID: signature})
	if err != nil {
		return s.fail(ctx, id, observer, fmt.Errorf("record completed withdrawal %s: %w", signature, err))
	}

	s.metrics.completed.Add(ctx, 1)
	logger.Info(ctx, "withdrawal completed",
		"withdrawal.id", id,
		"transaction.signature", signature,
	)
	observer.Success(ctx, msg)

	return nil
}

// fail marks id FAILED with err as description, reports it and returns err.
func (s *service) fail(ctx context.Context, id string, observer progress.Observer, err error) error {
	s.metrics.failed.Add(ctx, 1)

	update := LedgerUpdate{Status: StatusFailed, Description: err.Error()}
	if uerr := s.ledger.Update(context.WithoutCancel(ctx), id, update); uerr != nil {
		logger.Error(ctx, "failed to record failed withdrawal",
			"withdrawal.id", id,
			"error", uerr,
		)
	}

	logger.Error(ctx, "withdrawal failed",
		"withdrawal.id", id,
		"error", err,
	)
	observer.Fail(ctx, err.Error())

	return err
}
