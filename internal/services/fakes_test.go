package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/desafio-dunas/registration-api/internal/models"
)

type fakePendingRepo struct {
	mu      sync.Mutex
	entries map[string]models.PendingVerification
	deletes int
	err     error
}

func newFakePendingRepo() *fakePendingRepo {
	return &fakePendingRepo{entries: map[string]models.PendingVerification{}}
}

func (f *fakePendingRepo) Replace(ctx context.Context, p *models.PendingVerification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries[p.Email] = *p
	return nil
}

func (f *fakePendingRepo) Find(ctx context.Context, email string) (*models.PendingVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.entries[email]
	if !ok {
		return nil, models.ErrPendingNotFound
	}
	return &p, nil
}

func (f *fakePendingRepo) RecordMismatch(ctx context.Context, email, issueID string, maxAttempts int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.entries[email]
	if !ok || p.IssueID != issueID {
		return 0, models.ErrPendingNotFound
	}
	if p.Attempts >= maxAttempts {
		return maxAttempts, models.ErrAttemptsExhausted
	}
	p.Attempts++
	f.entries[email] = p
	return p.Attempts, nil
}

func (f *fakePendingRepo) Claim(ctx context.Context, email, issueID string, now time.Time, lease time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.entries[email]
	if !ok || p.IssueID != issueID {
		return false, nil
	}
	if p.State == models.PendingStateCommitting && p.ClaimedAt != nil && !p.ClaimedAt.Before(now.Add(-lease)) {
		return false, nil
	}
	p.State = models.PendingStateCommitting
	p.ClaimedAt = &now
	f.entries[email] = p
	return true, nil
}

func (f *fakePendingRepo) Release(ctx context.Context, email, issueID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.entries[email]
	if ok && p.IssueID == issueID {
		p.State = models.PendingStatePending
		p.ClaimedAt = nil
		f.entries[email] = p
	}
	return nil
}

func (f *fakePendingRepo) Delete(ctx context.Context, email, issueID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.entries[email]; ok && p.IssueID == issueID {
		delete(f.entries, email)
		f.deletes++
	}
	return nil
}

func (f *fakePendingRepo) get(email string) (models.PendingVerification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.entries[email]
	return p, ok
}

type fakeSink struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (f *fakeSink) Enqueue(n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeSink) notifications() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.sent...)
}

// fakeRegistry plays guard, resolver, allocator and store over in-memory state
type fakeRegistry struct {
	mu        sync.Mutex
	groups    map[string]models.TeamAssignment
	records   []models.RegistrationRecord
	seq       map[string]int64
	allocErr  error
	calls     []string
	persistFn func(*models.RegistrationRecord) error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		groups: map[string]models.TeamAssignment{},
		seq:    map[string]int64{},
	}
}

func (f *fakeRegistry) addGroup(name string, team int64) {
	f.groups[strings.ToLower(name)] = models.TeamAssignment{GroupName: name, Channel: 145.5, Contact: "Luis", TeamNumber: team}
}

func (f *fakeRegistry) CheckIdentity(ctx context.Context, draft models.RegistrationDraft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "identity")
	for _, r := range f.records {
		if !r.Active {
			continue
		}
		if r.DocumentNumber == draft.DocumentNumber {
			return &models.ConflictError{Field: models.ConflictFieldDocumentNumber}
		}
		if r.Email == draft.Email {
			return &models.ConflictError{Field: models.ConflictFieldEmail}
		}
	}
	return nil
}

func (f *fakeRegistry) CheckTeamSlot(ctx context.Context, teamNumber int64, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "team_slot")
	for _, r := range f.records {
		if r.Active && r.TeamNumber == teamNumber && r.Role == role {
			return &models.ConflictError{Field: models.ConflictFieldRoleInTeam}
		}
	}
	return nil
}

func (f *fakeRegistry) Resolve(ctx context.Context, name string) (*models.TeamAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "resolve")
	team, ok := f.groups[strings.ToLower(name)]
	if !ok {
		return nil, models.ErrUnknownGroup
	}
	return &team, nil
}

func (f *fakeRegistry) Next(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "allocate")
	if f.allocErr != nil {
		return 0, f.allocErr
	}
	f.seq[key]++
	return f.seq[key], nil
}

func (f *fakeRegistry) Persist(ctx context.Context, record *models.RegistrationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "persist")
	if f.persistFn != nil {
		if err := f.persistFn(record); err != nil {
			return err
		}
	}
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeRegistry) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
