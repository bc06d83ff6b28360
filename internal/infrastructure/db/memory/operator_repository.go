// Package memory provides process-local repositories for the in-memory ledger
// backend.
package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/lendbridge/loanbook/internal/core/domain"
)

type OperatorRepository struct {
	mu        sync.RWMutex
	seq       int
	operators map[string]domain.Operator
}

func NewOperatorRepository() *OperatorRepository {
	return &OperatorRepository{operators: make(map[string]domain.Operator)}
}

func (r *OperatorRepository) Create(_ context.Context, op *domain.Operator) (*domain.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.operators[op.Username]; exists {
		return nil, domain.ErrOperatorExists
	}
	r.seq++
	stored := *op
	stored.ID = strconv.Itoa(r.seq)
	r.operators[stored.Username] = stored

	created := stored
	return &created, nil
}

func (r *OperatorRepository) FindByUsername(_ context.Context, username string) (*domain.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.operators[username]
	if !ok {
		return nil, domain.ErrOperatorNotFound
	}
	return &op, nil
}
