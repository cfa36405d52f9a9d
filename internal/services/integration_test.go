package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type registrationStack struct {
	db        *mongo.Database
	pending   *PendingVerificationStore
	store     *RegistrationStore
	allocator *SequenceAllocator
	groups    *TeamGroupService
	issuer    *CodeIssuer
	verifier  *CodeVerifier
	sink      *fakeSink
}

func newRegistrationStack(t *testing.T) *registrationStack {
	t.Helper()
	db := setupTestMongo(t)

	s := &registrationStack{
		db:        db,
		pending:   NewPendingVerificationStore(db.Collection("pending_verifications")),
		store:     NewRegistrationStore(db.Collection("registrations"), logging.Logger),
		allocator: NewSequenceAllocator(db.Collection("counters"), logging.Logger),
		sink:      &fakeSink{},
	}
	s.groups = NewTeamGroupService(db.Collection("team_groups"), s.allocator, nil, 0, logging.Logger)
	s.issuer = newTestIssuer(s.pending, s.sink)
	s.verifier = NewCodeVerifier(
		s.pending,
		NewUniquenessGuard(s.store.Collection()),
		NewTeamResolver(db.Collection("team_groups"), logging.Logger),
		s.allocator,
		s.store,
		s.sink,
		VerifierConfig{EventName: "Desafio Dunas", MaxAttempts: 3, CommitLease: 30 * time.Second},
		logging.Logger,
	)
	return s
}

// insertGroup stores a group with a fixed team number, bypassing the counter
func (s *registrationStack) insertGroup(t *testing.T, name string, team int64) {
	t.Helper()
	group := models.TeamGroup{Name: name, Channel: 145.5, Contact: "Luis", TeamNumber: team, Active: true}
	group.BeforeCreate()
	_, err := s.db.Collection("team_groups").InsertOne(context.Background(), group)
	require.NoError(t, err)
}

func (s *registrationStack) register(t *testing.T, email, document, role, group string) (*models.RegistrationRecord, error) {
	t.Helper()
	_, err := s.issuer.Issue(context.Background(), email, validDraft(email, document, role, group))
	require.NoError(t, err)
	return s.verifier.Verify(context.Background(), email, "123456")
}

func TestRegistration_AlphaResolvesToTeamSeven(t *testing.T) {
	s := newRegistrationStack(t)
	s.insertGroup(t, "Alpha", 7)

	record, err := s.register(t, "ana@example.com", "12345678", models.RolePilot, "alpha")
	require.NoError(t, err)
	assert.Equal(t, int64(7), record.TeamNumber)
	assert.Equal(t, "Alpha", record.GroupName)
	assert.Equal(t, int64(1), record.Number)

	stored, err := s.store.GetByNumber(context.Background(), record.Number)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", stored.Email)
	assert.Equal(t, 145.5, stored.Channel)
}

func TestRegistration_PilotAndCoPilotShareTeam(t *testing.T) {
	s := newRegistrationStack(t)
	s.insertGroup(t, "Alpha", 7)

	_, err := s.register(t, "pilot@example.com", "11111111", models.RolePilot, "Alpha")
	require.NoError(t, err)
	_, err = s.register(t, "copilot@example.com", "22222222", models.RoleCoPilot, "Alpha")
	require.NoError(t, err)

	_, err = s.register(t, "second@example.com", "33333333", models.RolePilot, "Alpha")
	var conflict *models.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, models.ConflictFieldRoleInTeam, conflict.Field)

	team, err := s.store.Team(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 2, team.TotalMembers)
	assert.Equal(t, models.RolePilot, team.Members[0].Role)
	assert.Equal(t, models.RoleCoPilot, team.Members[1].Role)
}

func TestRegistration_UnknownGroup(t *testing.T) {
	s := newRegistrationStack(t)

	_, err := s.register(t, "ana@example.com", "12345678", models.RolePilot, "Nowhere")
	assert.ErrorIs(t, err, models.ErrUnknownGroup)

	current, err := s.allocator.Current(context.Background(), models.RegistrationNumberCounter)
	require.NoError(t, err)
	assert.Zero(t, current, "no number is spent on an unknown group")

	p, err := s.pending.Find(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.PendingStatePending, p.State)
}

func TestRegistration_DuplicateIdentity(t *testing.T) {
	s := newRegistrationStack(t)
	s.insertGroup(t, "Alpha", 7)
	s.insertGroup(t, "Bravo", 8)

	_, err := s.register(t, "ana@example.com", "12345678", models.RolePilot, "Alpha")
	require.NoError(t, err)

	_, err = s.register(t, "other@example.com", "12345678", models.RolePilot, "Bravo")
	var conflict *models.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, models.ConflictFieldDocumentNumber, conflict.Field)

	_, err = s.register(t, "ana@example.com", "87654321", models.RolePilot, "Bravo")
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, models.ConflictFieldEmail, conflict.Field)
}

func TestRegistration_DeactivateFreesSlot(t *testing.T) {
	s := newRegistrationStack(t)
	s.insertGroup(t, "Alpha", 7)
	ctx := context.Background()

	first, err := s.register(t, "ana@example.com", "12345678", models.RolePilot, "Alpha")
	require.NoError(t, err)

	deactivated, err := s.store.Deactivate(ctx, first.Number, time.Now())
	require.NoError(t, err)
	assert.False(t, deactivated.Active)
	assert.Equal(t, models.RegistrationStatusCancelled, deactivated.Status)

	_, err = s.store.Deactivate(ctx, first.Number, time.Now())
	assert.ErrorIs(t, err, models.ErrRegistrationNotFound)

	again, err := s.register(t, "ana@example.com", "12345678", models.RolePilot, "Alpha")
	require.NoError(t, err, "identity and role are free again")
	assert.Equal(t, int64(2), again.Number)
}

func TestRegistration_ConcurrentVerifiesGetDistinctNumbers(t *testing.T) {
	s := newRegistrationStack(t)
	const n = 15
	ctx := context.Background()

	for i := 0; i < n; i++ {
		group := fmt.Sprintf("Crew %02d", i)
		s.insertGroup(t, group, int64(i+1))
		email := fmt.Sprintf("rider%02d@example.com", i)
		_, err := s.issuer.Issue(ctx, email, validDraft(email, fmt.Sprintf("%08d", 20000000+i), models.RolePilot, group))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	numbers := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record, err := s.verifier.Verify(ctx, fmt.Sprintf("rider%02d@example.com", i), "123456")
			if assert.NoError(t, err) {
				numbers <- record.Number
			}
		}(i)
	}
	wg.Wait()
	close(numbers)

	seen := map[int64]bool{}
	for number := range numbers {
		assert.False(t, seen[number], "number %d handed out twice", number)
		seen[number] = true
	}
	assert.Len(t, seen, n)
}

func TestRegistration_SameCodeConcurrentlyCommitsOnce(t *testing.T) {
	s := newRegistrationStack(t)
	s.insertGroup(t, "Alpha", 7)
	ctx := context.Background()

	_, err := s.issuer.Issue(ctx, "ana@example.com", validDraft("ana@example.com", "12345678", models.RolePilot, "Alpha"))
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.verifier.Verify(ctx, "ana@example.com", "123456"); err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, committed)
	list, err := s.store.List(ctx, models.RegistrationFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Pagination.Total)
}

func TestRegistration_PersistMapsUniqueIndexes(t *testing.T) {
	s := newRegistrationStack(t)
	ctx := context.Background()
	team := models.TeamAssignment{GroupName: "Alpha", Channel: 145.5, Contact: "Luis", TeamNumber: 7}

	first := models.NewRegistrationRecord(validDraft("ana@example.com", "12345678", models.RolePilot, "Alpha"), team, 1, time.Now())
	require.NoError(t, s.store.Persist(ctx, first))
	assert.False(t, first.ID.IsZero())

	cases := []struct {
		name  string
		draft models.RegistrationDraft
		num   int64
		field string
	}{
		{"document", validDraft("b@example.com", "12345678", models.RoleCoPilot, "Alpha"), 2, models.ConflictFieldDocumentNumber},
		{"email", validDraft("ana@example.com", "99999999", models.RoleCoPilot, "Alpha"), 3, models.ConflictFieldEmail},
		{"role", validDraft("c@example.com", "88888888", models.RolePilot, "Alpha"), 4, models.ConflictFieldRoleInTeam},
		{"number", validDraft("d@example.com", "77777777", models.RoleCompanion1, "Alpha"), 1, models.ConflictFieldNumber},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.store.Persist(ctx, models.NewRegistrationRecord(tc.draft, team, tc.num, time.Now()))
			var conflict *models.ConflictError
			require.ErrorAs(t, err, &conflict)
			assert.Equal(t, tc.field, conflict.Field)
		})
	}
}

func TestRegistration_PersistRejectedBySchema(t *testing.T) {
	s := newRegistrationStack(t)
	team := models.TeamAssignment{GroupName: "Alpha", Channel: 145.5, Contact: "Luis", TeamNumber: 7}

	draft := validDraft("ana@example.com", "1234", models.RolePilot, "Alpha")
	err := s.store.Persist(context.Background(), models.NewRegistrationRecord(draft, team, 1, time.Now()))

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	fields := make([]string, 0, len(validation.Fields))
	for _, f := range validation.Fields {
		fields = append(fields, f.Field)
	}
	assert.Contains(t, fields, "document_number", "the rejected property is named")
	assert.NotContains(t, fields, "registration")

	total, err := s.store.Collection().CountDocuments(context.Background(), bson.M{})
	require.NoError(t, err)
	assert.Zero(t, total, "a rejected record is not partially written")
}

func TestRegistration_GroupEditDoesNotRewriteCommittedRecords(t *testing.T) {
	s := newRegistrationStack(t)
	s.insertGroup(t, "Alpha", 7)
	ctx := context.Background()

	before, err := s.register(t, "ana@example.com", "12345678", models.RolePilot, "alpha")
	require.NoError(t, err)
	require.Equal(t, 145.5, before.Channel)

	req := models.TeamGroupRequest{Name: "Alpha", Channel: 147.25, Contact: "Marta"}
	updated, err := s.groups.UpdateGroup(ctx, 7, req)
	require.NoError(t, err)
	assert.Equal(t, 147.25, updated.Channel)

	stored, err := s.store.GetByNumber(ctx, before.Number)
	require.NoError(t, err)
	assert.Equal(t, 145.5, stored.Channel, "committed record keeps the channel it was given")
	assert.Equal(t, "Luis", stored.GroupContact)

	after, err := s.register(t, "beto@example.com", "87654321", models.RoleCoPilot, "Alpha")
	require.NoError(t, err)
	assert.Equal(t, int64(7), after.TeamNumber)
	assert.Equal(t, 147.25, after.Channel)
	assert.Equal(t, "Marta", after.GroupContact)

	require.NoError(t, s.groups.DeactivateGroup(ctx, 7))
	_, err = s.register(t, "caro@example.com", "11223344", models.RoleCoPilot, "Alpha")
	assert.ErrorIs(t, err, models.ErrUnknownGroup)

	stored, err = s.store.GetByNumber(ctx, after.Number)
	require.NoError(t, err)
	assert.True(t, stored.Active, "retiring a group leaves its registrations active")
}
