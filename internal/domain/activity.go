package domain

import "time"

// OwnerKind discriminates the Owner union.
type OwnerKind int

const (
	// OwnerNone marks an orphaned activity (its account was deleted).
	OwnerNone OwnerKind = iota
	// OwnerUser means the activity belongs to an authenticated account.
	OwnerUser
	// OwnerSession means the activity belongs to an anonymous session.
	OwnerSession
)

// Owner identifies who an activity belongs to: exactly one of an
// authenticated user id or an anonymous session token, never both.
type Owner struct {
	kind         OwnerKind
	userID       string
	sessionToken string
}

// OwnedByUser builds an account owner.
func OwnedByUser(userID string) Owner {
	return Owner{kind: OwnerUser, userID: userID}
}

// OwnedBySession builds an anonymous-session owner.
func OwnedBySession(token string) Owner {
	return Owner{kind: OwnerSession, sessionToken: token}
}

// Kind returns the discriminator.
func (o Owner) Kind() OwnerKind { return o.kind }

// UserID returns the account id when the owner is a user.
func (o Owner) UserID() (string, bool) {
	return o.userID, o.kind == OwnerUser
}

// SessionToken returns the session token when the owner is anonymous.
func (o Owner) SessionToken() (string, bool) {
	return o.sessionToken, o.kind == OwnerSession
}

// IsZero reports whether no owner is set.
func (o Owner) IsZero() bool { return o.kind == OwnerNone }

// Activity is a single logged event with its computed emission.
// Unit, EmissionKg and EmissionSource are derived by the estimator on
// every write and are never caller-settable.
type Activity struct {
	ID             string
	Owner          Owner
	ActivityType   string
	Description    string
	Quantity       float64
	Region         string
	Unit           string
	EmissionKg     float64
	EmissionSource string
	OccurredAt     time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TypeEmission is one slice of the by-type breakdown.
type TypeEmission struct {
	ActivityType string
	EmissionKg   float64
	Count        int
}

// DailyEmission is one point of the emissions time series.
type DailyEmission struct {
	Day        time.Time
	EmissionKg float64
}

// Summary aggregates an owner's activities for dashboard display.
type Summary struct {
	TotalEmissionsKg float64
	ActivityCount    int
	ByType           []TypeEmission
	Daily            []DailyEmission
}
