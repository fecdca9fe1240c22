// Package rules implements the acceptance criteria rule library: one
// pure function per evaluation-logic identifier, each mapping extracted
// fields, laboratory results and donor info to a tri-state verdict with
// reasoning. Rules never perform I/O and never fail; missing data is
// "not established", not an error.
package rules

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/donor-eligibility-engine/internal/domain"
)

// DonorInfo is the demographic slice of donor data visible to rules.
type DonorInfo struct {
	Age    *int
	Gender string
}

// Input carries everything a rule function may consult. Fields is the
// merged extracted-data map for the criterion across all contributing
// documents.
type Input struct {
	Fields domain.FieldMap
	Labs   []*domain.LaboratoryResult
	Donor  DonorInfo
	Config domain.CriterionConfig
	Tissue domain.TissueType
}

// Func is a single criterion rule. Implementations must be total:
// exactly one verdict for any input, no panics for missing data.
type Func func(in Input) domain.Verdict

// Registry maps evaluation-logic identifiers to rule functions. It is
// populated once at startup and read-only afterwards.
type Registry struct {
	rules map[string]Func
	log   *logrus.Logger
}

// NewRegistry builds the registry with every known rule installed.
func NewRegistry(log *logrus.Logger) *Registry {
	r := &Registry{
		rules: make(map[string]Func),
		log:   log,
	}
	r.registerAll()
	return r
}

// Has reports whether a rule is installed for the identifier.
func (r *Registry) Has(ruleID string) bool {
	_, ok := r.rules[ruleID]
	return ok
}

// RuleIDs returns all installed identifiers, sorted.
func (r *Registry) RuleIDs() []string {
	ids := make([]string, 0, len(r.rules))
	for id := range r.rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Evaluate dispatches to the rule for ruleID. An unknown identifier
// yields MD_DISCRETION, never ACCEPTABLE: unconfigured criteria fail
// safe to human review. A panicking rule is downgraded the same way so
// one bad criterion cannot abort a donor's evaluation run.
func (r *Registry) Evaluate(ruleID string, in Input) (verdict domain.Verdict) {
	fn, ok := r.rules[ruleID]
	if !ok {
		r.log.WithFields(logrus.Fields{
			"rule_id":   ruleID,
			"criterion": in.Config.Name,
		}).Warn("No evaluation rule installed, defaulting to MD discretion")
		return domain.Verdict{
			Result:    domain.MD_DISCRETION,
			Reasoning: fmt.Sprintf("Evaluation logic %s not implemented", ruleID),
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithFields(logrus.Fields{
				"rule_id":   ruleID,
				"criterion": in.Config.Name,
				"panic":     rec,
			}).Error("Rule function panicked")
			verdict = domain.Verdict{
				Result:    domain.MD_DISCRETION,
				Reasoning: fmt.Sprintf("Error evaluating criterion: %v", rec),
			}
		}
	}()

	verdict = fn(in)
	if !verdict.Result.IsValid() {
		verdict = domain.Verdict{
			Result:    domain.MD_DISCRETION,
			Reasoning: fmt.Sprintf("Rule %s produced an invalid verdict", ruleID),
		}
	}
	return verdict
}

func (r *Registry) register(ruleID string, fn Func) {
	r.rules[ruleID] = fn
}
