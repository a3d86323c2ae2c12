package emissions

import (
	"context"
	"log"
	"math"

	"example.com/carbon/internal/observability"
)

// ProviderEstimate is a successful answer from the external rate provider.
type ProviderEstimate struct {
	CO2eKg     float64
	CO2eUnit   string
	Source     string
	SourceYear int
}

// RateProvider is the port to the external emission-factor service.
// Implementations must return an error rather than block past their
// timeout budget; the estimator treats every error as "use the fallback".
type RateProvider interface {
	// Configured reports whether a credential is present. An
	// unconfigured provider is skipped without any network I/O.
	Configured() bool
	// Estimate fetches a regionally adjusted CO2e value for one activity.
	Estimate(ctx context.Context, activityType string, quantity float64, region string) (*ProviderEstimate, error)
}

// Estimate is the computed emission for an activity.
type Estimate struct {
	EmissionKg float64
	Unit       string
	Source     string
}

// SourceLocal tags estimates computed from the static factor table.
const SourceLocal = "local"

// Estimator maps an activity to a CO2e estimate, consulting the rate
// provider first and falling back to the local factor table on any
// provider trouble. Safe for concurrent use.
type Estimator struct {
	provider RateProvider
	logger   *log.Logger
}

// NewEstimator constructs an Estimator. provider may be nil, in which
// case every estimate comes from the local table.
func NewEstimator(provider RateProvider, logger *log.Logger) *Estimator {
	if logger == nil {
		logger = log.Default()
	}
	return &Estimator{provider: provider, logger: logger}
}

// Estimate computes the emission for the given inputs. The second return
// is false when activityType is outside the known set, in which case no
// emission was computed. Provider failures are absorbed: the caller
// always gets a usable estimate for a known type.
func (e *Estimator) Estimate(ctx context.Context, activityType string, quantity float64, region string) (Estimate, bool) {
	factor, ok := LocalFactors[activityType]
	if !ok {
		return Estimate{}, false
	}

	region = NormalizeRegion(region)

	if e.provider != nil && e.provider.Configured() {
		if est, err := e.provider.Estimate(ctx, activityType, quantity, region); err == nil && est != nil {
			observability.RecordEstimate("provider")
			// Unit label stays local so displayed units are stable
			// regardless of what the provider reports.
			return Estimate{
				EmissionKg: Round2(est.CO2eKg),
				Unit:       factor.Unit,
				Source:     est.Source,
			}, true
		} else if err != nil {
			e.logger.Printf("emissions: provider estimate failed, using local factor: %v", err)
		}
	}

	observability.RecordEstimate(SourceLocal)
	return Estimate{
		EmissionKg: Round2(quantity * factor.Factor),
		Unit:       factor.Unit,
		Source:     SourceLocal,
	}, true
}

// Round2 rounds to two decimal places, the precision stored and displayed
// for emission values.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
