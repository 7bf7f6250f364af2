package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/batch"
)

type batchRepository struct {
	db *batchTable
}

var _ batch.Repository = (*batchRepository)(nil) // interface compliance check

func NewBatchRepository(db *DB) batch.Repository {
	return &batchRepository{db: db.batch}
}

func (repo *batchRepository) query() []batch.Batch {
	batches := make([]batch.Batch, 0, len(repo.db.table))
	for _, b := range repo.db.table {
		batches = append(batches, *b)
	}
	return batches
}

func (repo *batchRepository) CreateBatch(ctx context.Context, b batch.Batch) (batch.Batch, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	b.ID = uuid.New().String()
	repo.db.table[b.ID] = &b
	return b, nil
}

func (repo *batchRepository) GetBatch(ctx context.Context, id string) (batch.Batch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if b, ok := repo.db.table[id]; ok {
		return *b, nil
	}
	return batch.Batch{}, batch.ErrNotFound
}

func matchBatch(b batch.Batch, filter *batch.QueryFilter) bool {
	if filter == nil || filter.IsEmpty() {
		return true
	}
	if filter.Search != "" && !strings.Contains(strings.ToLower(b.Name), strings.ToLower(filter.Search)) {
		return false
	}
	if filter.TrainerID != "" && b.TrainerID != filter.TrainerID {
		return false
	}
	if filter.IsActive != nil {
		active := b.IsActive == nil || *b.IsActive
		if active != *filter.IsActive {
			return false
		}
	}
	return true
}

func (repo *batchRepository) QueryBatches(ctx context.Context, filter *batch.QueryFilter, ordering []core.DBOrdering) ([]batch.Batch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	batches := make([]batch.Batch, 0)
	for _, b := range repo.query() {
		if matchBatch(b, filter) {
			batches = append(batches, b)
		}
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].CreatedAt.After(batches[j].CreatedAt) })
	return batches, nil
}

func (repo *batchRepository) CountBatches(ctx context.Context, filter *batch.QueryFilter) (int, error) {
	batches, err := repo.QueryBatches(ctx, filter, nil)
	if err != nil {
		return 0, err
	}
	return len(batches), nil
}

func (repo *batchRepository) UpdateBatch(ctx context.Context, b batch.Batch, isActive *bool) (batch.Batch, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[b.ID]
	if !ok {
		return batch.Batch{}, batch.ErrNotFound
	}

	if b.Name != "" {
		orig.Name = b.Name
	}
	if b.TrainerID != "" {
		orig.TrainerID = b.TrainerID
	}
	if !b.StartDate.IsZero() {
		orig.StartDate = b.StartDate
	}
	if !b.EndDate.IsZero() {
		orig.EndDate = b.EndDate
	}
	if !b.UpdatedAt.IsZero() {
		orig.UpdatedAt = b.UpdatedAt
	}
	if isActive != nil {
		orig.IsActive = isActive
	}
	return *orig, nil
}

func (repo *batchRepository) DeleteBatch(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.table, id)
	return nil
}
