package dummydb

import (
	"context"
	"sort"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/submission"
)

type submissionRepository struct {
	subs    *submissionTable
	asgs    *assignmentTable
	batches *batchTable
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) submission.Repository {
	return &submissionRepository{subs: db.submission, asgs: db.assignment, batches: db.batch}
}

func (repo *submissionRepository) UpsertSubmission(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	repo.subs.Lock()
	defer repo.subs.Unlock()

	// replace the existing row for the (assignment, student) pair, keeping its id
	for _, existing := range repo.subs.table {
		if existing.AssignmentID == s.AssignmentID && existing.StudentID == s.StudentID {
			s.ID = existing.ID
			break
		}
	}
	repo.subs.table[s.ID] = &s
	return s, nil
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	repo.subs.RLock()
	defer repo.subs.RUnlock()

	if s, ok := repo.subs.table[id]; ok {
		return *s, nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (submission.Submission, error) {
	repo.subs.RLock()
	defer repo.subs.RUnlock()

	for _, s := range repo.subs.table {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			return *s, nil
		}
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) QueryByAssignment(ctx context.Context, assignmentID string) ([]submission.Submission, error) {
	repo.subs.RLock()
	defer repo.subs.RUnlock()

	subs := make([]submission.Submission, 0)
	for _, s := range repo.subs.table {
		if s.AssignmentID == assignmentID {
			subs = append(subs, *s)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs, nil
}

func (repo *submissionRepository) QueryByStudent(ctx context.Context, studentID string) ([]submission.Submission, error) {
	repo.subs.RLock()
	defer repo.subs.RUnlock()

	subs := make([]submission.Submission, 0)
	for _, s := range repo.subs.table {
		if s.StudentID == studentID {
			subs = append(subs, *s)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.After(subs[j].SubmittedAt) })
	return subs, nil
}

func (repo *submissionRepository) UpdateGrade(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	repo.subs.Lock()
	defer repo.subs.Unlock()

	orig, ok := repo.subs.table[s.ID]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}

	orig.Status = s.Status
	orig.Marks = s.Marks
	orig.Feedback = s.Feedback
	orig.FeedbackImage = s.FeedbackImage
	orig.GradedByID = s.GradedByID
	orig.GradedAt = s.GradedAt
	return *orig, nil
}

func (repo *submissionRepository) CountUngradedForTrainer(ctx context.Context, trainerID string) (int, error) {
	trainerBatches := make(map[string]bool)
	repo.batches.RLock()
	for _, b := range repo.batches.table {
		if b.TrainerID == trainerID {
			trainerBatches[b.ID] = true
		}
	}
	repo.batches.RUnlock()

	trainerAsgs := make(map[string]bool)
	repo.asgs.RLock()
	for _, a := range repo.asgs.table {
		if trainerBatches[a.BatchID] {
			trainerAsgs[a.ID] = true
		}
	}
	repo.asgs.RUnlock()

	repo.subs.RLock()
	defer repo.subs.RUnlock()

	var count int
	for _, s := range repo.subs.table {
		if trainerAsgs[s.AssignmentID] && !s.IsGraded() {
			count++
		}
	}
	return count, nil
}

func (repo *submissionRepository) QuerySubmissionFiles(ctx context.Context, assignmentID string) ([]core.FileInfo, error) {
	subs, err := repo.QueryByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	var files []core.FileInfo
	for _, s := range subs {
		files = append(files, s.Files...)
		if s.FeedbackImage != nil {
			files = append(files, *s.FeedbackImage)
		}
	}
	return files, nil
}

func (repo *submissionRepository) DeleteSubmissionsByAssignment(ctx context.Context, assignmentID string) error {
	repo.subs.Lock()
	defer repo.subs.Unlock()

	for id, s := range repo.subs.table {
		if s.AssignmentID == assignmentID {
			delete(repo.subs.table, id)
		}
	}
	return nil
}
