package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/carbon/internal/emissions"
)

type mockRepo struct {
	activities map[string]Activity
	claimCount int64
	claimToken string
	claimUser  string
}

func newMockRepo() *mockRepo {
	return &mockRepo{activities: make(map[string]Activity)}
}

func (m *mockRepo) Create(ctx context.Context, activity Activity) error {
	m.activities[activity.ID] = activity
	return nil
}

func (m *mockRepo) Get(ctx context.Context, owner Owner, activityID string) (*Activity, error) {
	activity, ok := m.activities[activityID]
	if !ok || activity.Owner != owner {
		return nil, nil
	}
	return &activity, nil
}

func (m *mockRepo) Update(ctx context.Context, activity Activity) error {
	if _, ok := m.activities[activity.ID]; !ok {
		return ErrActivityNotFound
	}
	m.activities[activity.ID] = activity
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, owner Owner, activityID string) (bool, error) {
	activity, ok := m.activities[activityID]
	if !ok || activity.Owner != owner {
		return false, nil
	}
	delete(m.activities, activityID)
	return true, nil
}

func (m *mockRepo) ListByOwner(ctx context.Context, owner Owner) ([]Activity, error) {
	out := make([]Activity, 0)
	for _, activity := range m.activities {
		if activity.Owner == owner {
			out = append(out, activity)
		}
	}
	return out, nil
}

func (m *mockRepo) Summarize(ctx context.Context, owner Owner) (*Summary, error) {
	summary := &Summary{}
	for _, activity := range m.activities {
		if activity.Owner == owner {
			summary.TotalEmissionsKg += activity.EmissionKg
			summary.ActivityCount++
		}
	}
	return summary, nil
}

func (m *mockRepo) ClaimSessionActivities(ctx context.Context, sessionToken, userID string) (int64, error) {
	m.claimToken = sessionToken
	m.claimUser = userID
	return m.claimCount, nil
}

func newTestService(repo *mockRepo) *Service {
	return NewService(repo, emissions.NewEstimator(nil, nil))
}

func TestLogActivityComputesEmissionLocally(t *testing.T) {
	repo := newMockRepo()
	service := newTestService(repo)

	activity, err := service.LogActivity(context.Background(), LogActivityInput{
		Owner:        OwnedByUser("user-1"),
		ActivityType: "driving",
		Quantity:     100,
		Region:       "US",
		OccurredAt:   time.Date(2026, time.January, 5, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, 21.00, activity.EmissionKg)
	require.Equal(t, "km", activity.Unit)
	require.Equal(t, "local", activity.EmissionSource)
	require.Equal(t, "US", activity.Region)
	require.NotEmpty(t, activity.ID)

	stored, ok := repo.activities[activity.ID]
	require.True(t, ok)
	require.Equal(t, *activity, stored)
}

func TestLogActivityCoercesUnknownRegion(t *testing.T) {
	service := newTestService(newMockRepo())

	activity, err := service.LogActivity(context.Background(), LogActivityInput{
		Owner:        OwnedBySession("sess-1"),
		ActivityType: "electricity",
		Quantity:     10,
		Region:       "xx",
		OccurredAt:   time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, "US", activity.Region)

	activity, err = service.LogActivity(context.Background(), LogActivityInput{
		Owner:        OwnedBySession("sess-1"),
		ActivityType: "electricity",
		Quantity:     10,
		OccurredAt:   time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, "US", activity.Region)
}

func TestLogActivityRequiresOwner(t *testing.T) {
	service := newTestService(newMockRepo())

	_, err := service.LogActivity(context.Background(), LogActivityInput{
		ActivityType: "driving",
		Quantity:     10,
		OccurredAt:   time.Now(),
	})
	require.ErrorIs(t, err, ErrOwnerRequired)
}

func TestLogActivityValidation(t *testing.T) {
	service := newTestService(newMockRepo())

	_, err := service.LogActivity(context.Background(), LogActivityInput{
		Owner:        OwnedByUser("user-1"),
		ActivityType: "sailing",
		Quantity:     -5,
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "activity_type")
	require.Contains(t, validationErr.Fields, "quantity")
	require.Contains(t, validationErr.Fields, "occurred_at")
}

func TestUpdateActivityRecomputesEmission(t *testing.T) {
	repo := newMockRepo()
	service := newTestService(repo)
	owner := OwnedByUser("user-1")

	activity, err := service.LogActivity(context.Background(), LogActivityInput{
		Owner:        owner,
		ActivityType: "driving",
		Quantity:     100,
		OccurredAt:   time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, 21.00, activity.EmissionKg)

	quantity := 200.0
	updated, err := service.UpdateActivity(context.Background(), owner, activity.ID, UpdateActivityInput{
		Quantity: &quantity,
	})
	require.NoError(t, err)
	require.Equal(t, 42.00, updated.EmissionKg)
	require.Equal(t, "km", updated.Unit)
	require.Equal(t, "local", updated.EmissionSource)
}

func TestUpdateActivityTypeChangeSwitchesUnit(t *testing.T) {
	repo := newMockRepo()
	service := newTestService(repo)
	owner := OwnedBySession("sess-9")

	activity, err := service.LogActivity(context.Background(), LogActivityInput{
		Owner:        owner,
		ActivityType: "driving",
		Quantity:     10,
		OccurredAt:   time.Now(),
	})
	require.NoError(t, err)

	activityType := "electricity"
	updated, err := service.UpdateActivity(context.Background(), owner, activity.ID, UpdateActivityInput{
		ActivityType: &activityType,
	})
	require.NoError(t, err)
	require.Equal(t, "kWh", updated.Unit)
	require.Equal(t, 4.20, updated.EmissionKg)
}

func TestUpdateActivityRejectsInvalidPatch(t *testing.T) {
	repo := newMockRepo()
	service := newTestService(repo)
	owner := OwnedByUser("user-1")

	activity, err := service.LogActivity(context.Background(), LogActivityInput{
		Owner:        owner,
		ActivityType: "driving",
		Quantity:     10,
		OccurredAt:   time.Now(),
	})
	require.NoError(t, err)

	bad := -1.0
	_, err = service.UpdateActivity(context.Background(), owner, activity.ID, UpdateActivityInput{
		Quantity: &bad,
	})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "quantity")

	// Stored record untouched by the rejected patch.
	stored := repo.activities[activity.ID]
	require.Equal(t, 10.0, stored.Quantity)
}

func TestUpdateActivityOutsideScopeIsNotFound(t *testing.T) {
	repo := newMockRepo()
	service := newTestService(repo)

	activity, err := service.LogActivity(context.Background(), LogActivityInput{
		Owner:        OwnedByUser("user-1"),
		ActivityType: "driving",
		Quantity:     10,
		OccurredAt:   time.Now(),
	})
	require.NoError(t, err)

	quantity := 20.0
	_, err = service.UpdateActivity(context.Background(), OwnedByUser("user-2"), activity.ID, UpdateActivityInput{
		Quantity: &quantity,
	})
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestDeleteActivityOutsideScopeIsNotFound(t *testing.T) {
	repo := newMockRepo()
	service := newTestService(repo)

	activity, err := service.LogActivity(context.Background(), LogActivityInput{
		Owner:        OwnedBySession("sess-1"),
		ActivityType: "driving",
		Quantity:     10,
		OccurredAt:   time.Now(),
	})
	require.NoError(t, err)

	err = service.DeleteActivity(context.Background(), OwnedBySession("sess-2"), activity.ID)
	require.ErrorIs(t, err, ErrActivityNotFound)

	require.NoError(t, service.DeleteActivity(context.Background(), OwnedBySession("sess-1"), activity.ID))
}

func TestListActivitiesTotalsAreRounded(t *testing.T) {
	repo := newMockRepo()
	service := newTestService(repo)
	owner := OwnedByUser("user-1")

	for _, quantity := range []float64{33.3, 33.3, 33.3} {
		_, err := service.LogActivity(context.Background(), LogActivityInput{
			Owner:        owner,
			ActivityType: "food_chicken",
			Quantity:     quantity,
			OccurredAt:   time.Now(),
		})
		require.NoError(t, err)
	}

	activities, total, err := service.ListActivities(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, activities, 3)
	require.Equal(t, 689.31, total)
}

func TestClaimRequiresSessionToken(t *testing.T) {
	service := newTestService(newMockRepo())

	_, err := service.ClaimSessionActivities(context.Background(), "", "user-1")
	require.ErrorIs(t, err, ErrSessionTokenRequired)
}

func TestClaimDelegatesToRepository(t *testing.T) {
	repo := newMockRepo()
	repo.claimCount = 2
	service := newTestService(repo)

	count, err := service.ClaimSessionActivities(context.Background(), "token-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
	require.Equal(t, "token-1", repo.claimToken)
	require.Equal(t, "user-1", repo.claimUser)
}

func TestClaimZeroMatchesIsNotAnError(t *testing.T) {
	service := newTestService(newMockRepo())

	count, err := service.ClaimSessionActivities(context.Background(), "unknown-token", "user-1")
	require.NoError(t, err)
	require.Zero(t, count)
}
