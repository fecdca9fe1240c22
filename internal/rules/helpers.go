package rules

import (
	"strings"

	"github.com/donor-eligibility-engine/internal/domain"
)

// negativeIndicators are checked before positive ones: "Non-Reactive"
// contains "reactive" and must classify negative.
var negativeIndicators = []string{"non-reactive", "nonreactive", "not detected", "negative", "neg"}

var positiveIndicators = []string{"positive", "reactive", "detected"}

// isPositiveResult classifies a raw lab result string. Negative
// indicators short-circuit, so a positive-sounding substring inside a
// negative phrase never counts.
func isPositiveResult(result string) bool {
	r := strings.ToLower(strings.TrimSpace(result))
	if r == "" {
		return false
	}
	for _, n := range negativeIndicators {
		if strings.Contains(r, n) {
			return false
		}
	}
	for _, p := range positiveIndicators {
		if strings.Contains(r, p) {
			return true
		}
	}
	return false
}

// isNegativeResult reports an explicitly negative result string.
func isNegativeResult(result string) bool {
	r := strings.ToLower(strings.TrimSpace(result))
	for _, n := range negativeIndicators {
		if strings.Contains(r, n) {
			return true
		}
	}
	return false
}

// serologyMatching returns serology rows whose test name contains any
// of the given substrings (case-insensitive).
func serologyMatching(labs []*domain.LaboratoryResult, substrings ...string) []*domain.LaboratoryResult {
	return labsMatching(labs, domain.TestSerology, substrings)
}

// culturesMatching returns culture rows whose test name contains any of
// the given substrings (case-insensitive).
func culturesMatching(labs []*domain.LaboratoryResult, substrings ...string) []*domain.LaboratoryResult {
	return labsMatching(labs, domain.TestCulture, substrings)
}

func labsMatching(labs []*domain.LaboratoryResult, category domain.TestCategory, substrings []string) []*domain.LaboratoryResult {
	var out []*domain.LaboratoryResult
	for _, lr := range labs {
		if lr == nil || lr.Category != category {
			continue
		}
		name := strings.ToLower(lr.TestName)
		for _, s := range substrings {
			if strings.Contains(name, s) {
				out = append(out, lr)
				break
			}
		}
	}
	return out
}

// cultureShowsGrowth reports a culture result that is neither "no
// growth" nor negative.
func cultureShowsGrowth(result string) bool {
	r := strings.ToLower(result)
	return !strings.Contains(r, "no growth") && !strings.Contains(r, "negative")
}

// allNegative reports whether every row reads negative or non-reactive.
// False for an empty set: absence of tests establishes nothing.
func allNegative(labs []*domain.LaboratoryResult) bool {
	if len(labs) == 0 {
		return false
	}
	for _, lr := range labs {
		if !isNegativeResult(lr.ResultValue) {
			return false
		}
	}
	return true
}

// anyTrue reports whether any of the named fields is explicitly true.
func anyTrue(fields domain.FieldMap, keys ...string) bool {
	for _, k := range keys {
		if fields.ExplicitTrue(k) {
			return true
		}
	}
	return false
}

// containsAny reports whether s contains any of the substrings, all
// compared lowercase.
func containsAny(s string, substrings ...string) bool {
	ls := strings.ToLower(s)
	for _, sub := range substrings {
		if strings.Contains(ls, sub) {
			return true
		}
	}
	return false
}

// isSkin reports whether the rule is being evaluated for skin tissue,
// preferring the dispatch tissue and falling back to an extracted
// tissue_type field for criteria configured without tissue dispatch.
func isSkin(in Input) bool {
	if in.Tissue == domain.SKIN {
		return true
	}
	if in.Tissue == domain.MUSCULOSKELETAL {
		return false
	}
	return containsAny(in.Fields.String("tissue_type"), "skin")
}

func isMusculoskeletal(in Input) bool {
	if in.Tissue == domain.MUSCULOSKELETAL {
		return true
	}
	if in.Tissue == domain.SKIN {
		return false
	}
	return containsAny(in.Fields.String("tissue_type"), "musculoskeletal", "bone", "tendon")
}

func acceptable(reasoning string) domain.Verdict {
	return domain.Verdict{Result: domain.ACCEPTABLE, Reasoning: reasoning}
}

func unacceptable(reasoning string) domain.Verdict {
	return domain.Verdict{Result: domain.UNACCEPTABLE, Reasoning: reasoning}
}

func discretion(reasoning string) domain.Verdict {
	return domain.Verdict{Result: domain.MD_DISCRETION, Reasoning: reasoning}
}
