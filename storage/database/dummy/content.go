package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/content"
)

type contentRepository struct {
	ppts    *pptTable
	asgs    *assignmentTable
	batches *batchTable
}

var _ content.Repository = (*contentRepository)(nil) // interface compliance check

func NewContentRepository(db *DB) content.Repository {
	return &contentRepository{ppts: db.ppt, asgs: db.assignment, batches: db.batch}
}

// trainerBatchIDs resolves a TrainerID filter to the batches that trainer owns.
func (repo *contentRepository) trainerBatchIDs(trainerID string) map[string]bool {
	repo.batches.RLock()
	defer repo.batches.RUnlock()

	ids := make(map[string]bool)
	for _, b := range repo.batches.table {
		if b.TrainerID == trainerID {
			ids[b.ID] = true
		}
	}
	return ids
}

func matchContent(title, description, batchID string, filter *content.QueryFilter, trainerBatches map[string]bool) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(title), search) &&
			!strings.Contains(strings.ToLower(description), search) {
			return false
		}
	}
	if filter.BatchID != "" && batchID != filter.BatchID {
		return false
	}
	if filter.TrainerID != "" && !trainerBatches[batchID] {
		return false
	}
	return true
}

func (repo *contentRepository) filterBatches(filter *content.QueryFilter) map[string]bool {
	if filter == nil || filter.TrainerID == "" {
		return nil
	}
	return repo.trainerBatchIDs(filter.TrainerID)
}

func (repo *contentRepository) CreatePPT(ctx context.Context, p content.PPT) (content.PPT, error) {
	repo.ppts.Lock()
	defer repo.ppts.Unlock()

	repo.ppts.table[p.ID] = &p
	return p, nil
}

func (repo *contentRepository) GetPPT(ctx context.Context, id string) (content.PPT, error) {
	repo.ppts.RLock()
	defer repo.ppts.RUnlock()

	if p, ok := repo.ppts.table[id]; ok {
		return *p, nil
	}
	return content.PPT{}, content.ErrNotFound
}

func (repo *contentRepository) QueryPPTs(ctx context.Context, filter *content.QueryFilter, ordering []core.DBOrdering) ([]content.PPT, error) {
	trainerBatches := repo.filterBatches(filter)

	repo.ppts.RLock()
	defer repo.ppts.RUnlock()

	ppts := make([]content.PPT, 0)
	for _, p := range repo.ppts.table {
		if matchContent(p.Title, p.Description, p.BatchID, filter, trainerBatches) {
			ppts = append(ppts, *p)
		}
	}
	sort.Slice(ppts, func(i, j int) bool { return ppts[i].CreatedAt.After(ppts[j].CreatedAt) })
	return ppts, nil
}

func (repo *contentRepository) CountPPTs(ctx context.Context, filter *content.QueryFilter) (int, error) {
	ppts, err := repo.QueryPPTs(ctx, filter, nil)
	if err != nil {
		return 0, err
	}
	return len(ppts), nil
}

func (repo *contentRepository) UpdatePPT(ctx context.Context, p content.PPT) (content.PPT, error) {
	repo.ppts.Lock()
	defer repo.ppts.Unlock()

	orig, ok := repo.ppts.table[p.ID]
	if !ok {
		return content.PPT{}, content.ErrNotFound
	}

	orig.Title = p.Title
	orig.Description = p.Description
	orig.File = p.File
	orig.UpdatedAt = p.UpdatedAt
	return *orig, nil
}

func (repo *contentRepository) DeletePPT(ctx context.Context, id string) error {
	repo.ppts.Lock()
	defer repo.ppts.Unlock()

	delete(repo.ppts.table, id)
	return nil
}

func (repo *contentRepository) CreateAssignment(ctx context.Context, a content.Assignment) (content.Assignment, error) {
	repo.asgs.Lock()
	defer repo.asgs.Unlock()

	repo.asgs.table[a.ID] = &a
	return a, nil
}

func (repo *contentRepository) GetAssignment(ctx context.Context, id string) (content.Assignment, error) {
	repo.asgs.RLock()
	defer repo.asgs.RUnlock()

	if a, ok := repo.asgs.table[id]; ok {
		return *a, nil
	}
	return content.Assignment{}, content.ErrNotFound
}

func (repo *contentRepository) QueryAssignments(ctx context.Context, filter *content.QueryFilter, ordering []core.DBOrdering) ([]content.Assignment, error) {
	trainerBatches := repo.filterBatches(filter)

	repo.asgs.RLock()
	defer repo.asgs.RUnlock()

	asgs := make([]content.Assignment, 0)
	for _, a := range repo.asgs.table {
		if matchContent(a.Title, a.Description, a.BatchID, filter, trainerBatches) {
			asgs = append(asgs, *a)
		}
	}
	sort.Slice(asgs, func(i, j int) bool { return asgs[i].Deadline.Before(asgs[j].Deadline) })
	return asgs, nil
}

func (repo *contentRepository) CountAssignments(ctx context.Context, filter *content.QueryFilter) (int, error) {
	asgs, err := repo.QueryAssignments(ctx, filter, nil)
	if err != nil {
		return 0, err
	}
	return len(asgs), nil
}

func (repo *contentRepository) UpdateAssignment(ctx context.Context, a content.Assignment, allowResubmission *bool) (content.Assignment, error) {
	repo.asgs.Lock()
	defer repo.asgs.Unlock()

	orig, ok := repo.asgs.table[a.ID]
	if !ok {
		return content.Assignment{}, content.ErrNotFound
	}

	orig.Title = a.Title
	orig.Description = a.Description
	orig.File = a.File
	orig.Deadline = a.Deadline
	orig.MaxMarks = a.MaxMarks
	orig.UpdatedAt = a.UpdatedAt
	if allowResubmission != nil {
		orig.AllowResubmission = *allowResubmission
	}
	return *orig, nil
}

func (repo *contentRepository) DeleteAssignment(ctx context.Context, id string) error {
	repo.asgs.Lock()
	defer repo.asgs.Unlock()

	delete(repo.asgs.table, id)
	return nil
}
