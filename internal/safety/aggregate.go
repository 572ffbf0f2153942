package safety

import (
	"cmp"
	"slices"
)

var recommendationByType = map[RiskType]string{
	RiskManipulation: "Consider setting clear boundaries about what you're comfortable with",
	RiskGaslighting:  "Trust your perception of events - your feelings are valid",
	RiskPressuring:   "You have the right to say no and take your time",
	RiskToxicity:     "Consider if this conversation pattern is healthy for you",
	RiskRedFlag:      "Pay attention to your gut feeling about this situation",
	RiskViolence:     "This situation may be unsafe - please reach out for support",
}

var supportCatalog = []SupportResource{
	{
		Title:       "National Domestic Violence Hotline",
		Description: "24/7 support for anyone experiencing abuse",
		Phone:       "1-800-799-7233",
		Website:     "https://www.thehotline.org",
	},
	{
		Title:       "Love Is Respect",
		Description: "Support for young people in relationships",
		Phone:       "1-866-331-9474",
		Website:     "https://www.loveisrespect.org",
	},
	{
		Title:       "Crisis Text Line",
		Description: "Text HOME to 741741 for free 24/7 support",
		Phone:       "Text HOME to 741741",
		Website:     "https://www.crisistextline.org",
	},
}

// Aggregate sorts flags by descending severity (stable) and keeps the first
// flag of each type. Evidence of dropped duplicates is not merged into the
// survivor. The input slice is not modified.
func Aggregate(flags []RiskFlag) []RiskFlag {
	sorted := slices.Clone(flags)
	slices.SortStableFunc(sorted, func(a, b RiskFlag) int {
		return cmp.Compare(b.Severity.Rank(), a.Severity.Rank())
	})

	seen := make(map[RiskType]bool, len(sorted))
	out := make([]RiskFlag, 0, len(sorted))
	for _, f := range sorted {
		if seen[f.Type] {
			continue
		}
		seen[f.Type] = true
		out = append(out, f)
	}
	return out
}

// OverallRisk scores a flag set. Two or more medium flags escalate to high.
func OverallRisk(flags []RiskFlag) RiskLevel {
	if len(flags) == 0 {
		return RiskNone
	}

	medium := 0
	for _, f := range flags {
		switch f.Severity {
		case SeverityHigh:
			return RiskHigh
		case SeverityMedium:
			medium++
		}
	}

	switch {
	case medium >= 2:
		return RiskHigh
	case medium == 1:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Recommendations maps each flag type to its advice, deduplicated in
// first-seen order. Types without advice contribute nothing.
func Recommendations(flags []RiskFlag) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, f := range flags {
		rec, ok := recommendationByType[f.Type]
		if !ok || seen[rec] {
			continue
		}
		seen[rec] = true
		out = append(out, rec)
	}
	return out
}

// SupportResources returns the support catalog when any flag is high
// severity and an empty list otherwise.
func SupportResources(flags []RiskFlag) []SupportResource {
	for _, f := range flags {
		if f.Severity == SeverityHigh {
			return slices.Clone(supportCatalog)
		}
	}
	return []SupportResource{}
}
