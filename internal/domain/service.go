// Package domain defines the business logic for the carbon service.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"example.com/carbon/internal/emissions"
	"example.com/carbon/internal/observability"
)

// ActivityRepository captures persistence operations for activities.
type ActivityRepository interface {
	Create(ctx context.Context, activity Activity) error
	Get(ctx context.Context, owner Owner, activityID string) (*Activity, error)
	Update(ctx context.Context, activity Activity) error
	Delete(ctx context.Context, owner Owner, activityID string) (bool, error)
	ListByOwner(ctx context.Context, owner Owner) ([]Activity, error)
	Summarize(ctx context.Context, owner Owner) (*Summary, error)
	// ClaimSessionActivities reassigns every activity that is anonymous
	// under sessionToken (and not owned by any account) to userID, as a
	// single conditional update. Returns the number of rows moved.
	ClaimSessionActivities(ctx context.Context, sessionToken, userID string) (int64, error)
}

// Estimator is the emission-calculation port consumed by the service.
type Estimator interface {
	Estimate(ctx context.Context, activityType string, quantity float64, region string) (emissions.Estimate, bool)
}

// Service orchestrates activity workflows.
type Service struct {
	repo      ActivityRepository
	estimator Estimator
}

// NewService constructs a Service.
func NewService(repo ActivityRepository, estimator Estimator) *Service {
	return &Service{repo: repo, estimator: estimator}
}

// LogActivityInput captures the payload from the API layer.
type LogActivityInput struct {
	Owner        Owner
	ActivityType string
	Description  string
	Quantity     float64
	Region       string
	OccurredAt   time.Time
}

// UpdateActivityInput is a partial patch; nil fields are left unchanged.
// Emission fields are always recomputed from the resulting record.
type UpdateActivityInput struct {
	ActivityType *string
	Description  *string
	Quantity     *float64
	Region       *string
	OccurredAt   *time.Time
}

// LogActivity validates the input, computes the emission estimate and
// persists the record. Provider trouble never fails the save; the local
// factor table is the availability guarantee.
func (s *Service) LogActivity(ctx context.Context, input LogActivityInput) (*Activity, error) {
	if input.Owner.IsZero() {
		return nil, ErrOwnerRequired
	}
	if err := validateActivity(input.ActivityType, input.Quantity, input.OccurredAt); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	activity := Activity{
		ID:           uuid.NewString(),
		Owner:        input.Owner,
		ActivityType: input.ActivityType,
		Description:  input.Description,
		Quantity:     input.Quantity,
		Region:       emissions.NormalizeRegion(input.Region),
		OccurredAt:   input.OccurredAt.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.applyEstimate(ctx, &activity)

	if err := s.repo.Create(ctx, activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// UpdateActivity applies the patch to an owner-scoped activity and
// recomputes the emission fields before persisting.
func (s *Service) UpdateActivity(ctx context.Context, owner Owner, activityID string, input UpdateActivityInput) (*Activity, error) {
	activity, err := s.repo.Get(ctx, owner, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}

	if input.ActivityType != nil {
		activity.ActivityType = *input.ActivityType
	}
	if input.Description != nil {
		activity.Description = *input.Description
	}
	if input.Quantity != nil {
		activity.Quantity = *input.Quantity
	}
	if input.Region != nil {
		activity.Region = emissions.NormalizeRegion(*input.Region)
	}
	if input.OccurredAt != nil {
		activity.OccurredAt = input.OccurredAt.UTC()
	}

	if err := validateActivity(activity.ActivityType, activity.Quantity, activity.OccurredAt); err != nil {
		return nil, err
	}

	activity.UpdatedAt = time.Now().UTC()
	s.applyEstimate(ctx, activity)

	if err := s.repo.Update(ctx, *activity); err != nil {
		return nil, err
	}
	return activity, nil
}

// GetActivity fetches an activity inside the owner's scope.
func (s *Service) GetActivity(ctx context.Context, owner Owner, activityID string) (*Activity, error) {
	activity, err := s.repo.Get(ctx, owner, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// DeleteActivity removes an owner-scoped activity.
func (s *Service) DeleteActivity(ctx context.Context, owner Owner, activityID string) error {
	deleted, err := s.repo.Delete(ctx, owner, activityID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrActivityNotFound
	}
	return nil
}

// ListActivities returns the owner's activities, newest occurrence first,
// with list totals for display.
func (s *Service) ListActivities(ctx context.Context, owner Owner) ([]Activity, float64, error) {
	activities, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, 0, err
	}
	var total float64
	for _, activity := range activities {
		total += activity.EmissionKg
	}
	return activities, emissions.Round2(total), nil
}

// EmissionSummary aggregates the owner's activities by type and by day.
func (s *Service) EmissionSummary(ctx context.Context, owner Owner) (*Summary, error) {
	return s.repo.Summarize(ctx, owner)
}

// ClaimSessionActivities transfers every unowned anonymous activity under
// sessionToken to userID. Re-running a claim after a successful one
// yields 0, not an error.
func (s *Service) ClaimSessionActivities(ctx context.Context, sessionToken, userID string) (int64, error) {
	if sessionToken == "" {
		return 0, ErrSessionTokenRequired
	}
	count, err := s.repo.ClaimSessionActivities(ctx, sessionToken, userID)
	if err != nil {
		return 0, err
	}
	observability.RecordClaimed(count)
	return count, nil
}

// applyEstimate recomputes the derived emission fields. The estimator
// only reports no-estimate for unknown types, which validation has
// already rejected on every path through here.
func (s *Service) applyEstimate(ctx context.Context, activity *Activity) {
	estimate, ok := s.estimator.Estimate(ctx, activity.ActivityType, activity.Quantity, activity.Region)
	if !ok {
		return
	}
	activity.EmissionKg = estimate.EmissionKg
	activity.Unit = estimate.Unit
	activity.EmissionSource = estimate.Source
}

func validateActivity(activityType string, quantity float64, occurredAt time.Time) error {
	v := NewValidationError()
	if activityType == "" {
		v.Add("activity_type", "is required")
	} else if !emissions.KnownType(activityType) {
		v.Add("activity_type", "is not included in the list")
	}
	if quantity <= 0 {
		v.Add("quantity", "must be greater than 0")
	}
	if occurredAt.IsZero() {
		v.Add("occurred_at", "is required")
	}
	if v.Empty() {
		return nil
	}
	return v
}
