package memory

import (
	"context"
	"sync"

	"kairaba-backend/internal/domain"
)

// TransactionManager serializes every transactional block behind one mutex.
// That is a coarser guarantee than postgres advisory locks but gives the same
// property the engine relies on: no two check-then-write sequences interleave.
type TransactionManager struct {
	mu sync.Mutex
}

func NewTransactionManager() domain.TransactionManager {
	return &TransactionManager{}
}

func (tm *TransactionManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return fn(ctx)
}
