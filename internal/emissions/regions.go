package emissions

import "strings"

// DefaultRegion is substituted for missing or unrecognized region codes.
const DefaultRegion = "US"

// Regions the upstream factor provider supports. Codes outside this list
// coerce to DefaultRegion rather than failing the request.
var validRegions = map[string]struct{}{
	"US": {}, "GB": {}, "DE": {}, "FR": {}, "AU": {}, "CA": {}, "JP": {},
	"CN": {}, "IN": {}, "BR": {}, "ES": {}, "IT": {}, "NL": {}, "BE": {},
	"AT": {}, "CH": {}, "SE": {}, "NO": {}, "DK": {}, "FI": {}, "PL": {},
	"PT": {}, "IE": {}, "NZ": {}, "SG": {}, "HK": {}, "KR": {}, "TW": {},
	"MX": {}, "AR": {}, "CL": {}, "CO": {}, "ZA": {},
}

// NormalizeRegion upcases the code and coerces anything outside the
// allow-list (including the empty string) to DefaultRegion.
func NormalizeRegion(region string) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	if _, ok := validRegions[region]; ok {
		return region
	}
	return DefaultRegion
}
