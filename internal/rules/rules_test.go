package rules

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donor-eligibility-engine/internal/domain"
)

func testRegistry() *Registry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewRegistry(log)
}

func intPtr(v int) *int { return &v }

// Every installed rule must be total: an empty input yields exactly one
// valid verdict and never panics.
func TestAllRulesTotalOnEmptyInput(t *testing.T) {
	r := testRegistry()
	require.NotEmpty(t, r.RuleIDs())

	for _, id := range r.RuleIDs() {
		v := r.Evaluate(id, Input{Fields: domain.FieldMap{}})
		assert.True(t, v.Result.IsValid(), "rule %s returned invalid verdict %q", id, v.Result)
		assert.NotEmpty(t, v.Reasoning, "rule %s returned empty reasoning", id)
	}
}

func TestEvaluateUnknownRuleDefaultsToDiscretion(t *testing.T) {
	r := testRegistry()
	v := r.Evaluate("no_such_criteria", Input{Fields: domain.FieldMap{}})
	assert.Equal(t, domain.MD_DISCRETION, v.Result)
	assert.Equal(t, "Evaluation logic no_such_criteria not implemented", v.Reasoning)
}

func TestEvaluateRecoversFromPanickingRule(t *testing.T) {
	r := testRegistry()
	r.register("exploding", func(Input) domain.Verdict { panic("boom") })

	v := r.Evaluate("exploding", Input{Fields: domain.FieldMap{}})
	assert.Equal(t, domain.MD_DISCRETION, v.Result)
	assert.Contains(t, v.Reasoning, "boom")
}

func TestAgeCriteria(t *testing.T) {
	r := testRegistry()

	v := r.Evaluate("age_criteria", Input{Fields: domain.FieldMap{}})
	assert.Equal(t, domain.MD_DISCRETION, v.Result)
	assert.Equal(t, "Age not available", v.Reasoning)

	v = r.Evaluate("age_criteria", Input{Fields: domain.FieldMap{}, Donor: DonorInfo{Age: intPtr(45)}})
	assert.Equal(t, domain.ACCEPTABLE, v.Result)

	// 73 fits musculoskeletal 15-75 but not skin 12-70
	v = r.Evaluate("age_criteria", Input{Fields: domain.FieldMap{}, Donor: DonorInfo{Age: intPtr(73)}})
	assert.Equal(t, domain.MD_DISCRETION, v.Result)

	v = r.Evaluate("age_criteria", Input{Fields: domain.FieldMap{}, Donor: DonorInfo{Age: intPtr(80)}})
	assert.Equal(t, domain.UNACCEPTABLE, v.Result)

	// age extracted from documents when demographics lack it
	v = r.Evaluate("age_criteria", Input{Fields: domain.FieldMap{"donor_age": "30"}})
	assert.Equal(t, domain.ACCEPTABLE, v.Result)
}

func TestHIVCriteria(t *testing.T) {
	r := testRegistry()

	labs := []*domain.LaboratoryResult{
		{Category: domain.TestSerology, TestName: "HIV-1/2 Ab", ResultValue: "Reactive"},
	}
	v := r.Evaluate("hiv_criteria", Input{Fields: domain.FieldMap{}, Labs: labs})
	assert.Equal(t, domain.UNACCEPTABLE, v.Result)
	assert.Contains(t, v.Reasoning, "HIV-1/2 Ab")

	labs[0].ResultValue = "Non-Reactive"
	v = r.Evaluate("hiv_criteria", Input{Fields: domain.FieldMap{}, Labs: labs})
	assert.Equal(t, domain.ACCEPTABLE, v.Result)

	// no tests and no history: unclear, not acceptable
	v = r.Evaluate("hiv_criteria", Input{Fields: domain.FieldMap{}})
	assert.Equal(t, domain.MD_DISCRETION, v.Result)

	v = r.Evaluate("hiv_criteria", Input{Fields: domain.FieldMap{"hiv_history": true}})
	assert.Equal(t, domain.MD_DISCRETION, v.Result)

	v = r.Evaluate("hiv_criteria", Input{Fields: domain.FieldMap{"exposed_to_hiv_12_months": "yes"}})
	assert.Equal(t, domain.UNACCEPTABLE, v.Result)
}

// A positive blood culture without a sepsis diagnosis is a
// contradiction between sources; it must escalate, not auto-decide.
func TestSepsisBloodCultureContradiction(t *testing.T) {
	r := testRegistry()

	labs := []*domain.LaboratoryResult{
		{Category: domain.TestCulture, TestName: "Blood Culture x2", ResultValue: "Staphylococcus epidermidis"},
	}
	v := r.Evaluate("sepsis_criteria", Input{Fields: domain.FieldMap{}, Labs: labs})
	assert.Equal(t, domain.MD_DISCRETION, v.Result)
	assert.Contains(t, v.Reasoning, "Positive blood culture")

	// documented diagnosis outranks the culture contradiction
	v = r.Evaluate("sepsis_criteria", Input{
		Fields: domain.FieldMap{"sepsis_diagnosis": true},
		Labs:   labs,
	})
	assert.Equal(t, domain.UNACCEPTABLE, v.Result)

	v = r.Evaluate("sepsis_criteria", Input{Fields: domain.FieldMap{}})
	assert.Equal(t, domain.ACCEPTABLE, v.Result)
}

func TestSepticemiaContaminationPossibility(t *testing.T) {
	r := testRegistry()
	labs := []*domain.LaboratoryResult{
		{Category: domain.TestCulture, TestName: "Blood Culture", ResultValue: "Gram-positive cocci"},
	}

	v := r.Evaluate("septicemia_criteria", Input{Fields: domain.FieldMap{}, Labs: labs})
	assert.Equal(t, domain.UNACCEPTABLE, v.Result)

	v = r.Evaluate("septicemia_criteria", Input{
		Fields: domain.FieldMap{"contamination_possibility": true},
		Labs:   labs,
	})
	assert.Equal(t, domain.MD_DISCRETION, v.Result)
}

func TestExplicitFalseIsNotDisqualifying(t *testing.T) {
	r := testRegistry()

	// "no" answers and absent fields both read as not established
	v := r.Evaluate("hiv_aids_criteria", Input{Fields: domain.FieldMap{
		"aids_diagnosed": "no",
		"hiv_infected":   false,
		"needle_tracks":  nil,
	}})
	assert.Equal(t, domain.ACCEPTABLE, v.Result)

	v = r.Evaluate("hiv_aids_criteria", Input{Fields: domain.FieldMap{"aids_diagnosed": "Yes"}})
	assert.Equal(t, domain.UNACCEPTABLE, v.Result)
}

func TestTattooCriteriaTissueSpecific(t *testing.T) {
	r := testRegistry()
	fields := domain.FieldMap{"tattoo_areas": true}

	v := r.Evaluate("tattoo_criteria", Input{Fields: fields, Tissue: domain.SKIN})
	assert.Equal(t, domain.UNACCEPTABLE, v.Result)

	// tattooed areas alone do not exclude musculoskeletal grafts
	v = r.Evaluate("tattoo_criteria", Input{Fields: fields, Tissue: domain.MUSCULOSKELETAL})
	assert.Equal(t, domain.ACCEPTABLE, v.Result)

	v = r.Evaluate("tattoo_criteria", Input{
		Fields: domain.FieldMap{"tattoo_shared_instruments_12_months": "yes"},
		Tissue: domain.MUSCULOSKELETAL,
	})
	assert.Equal(t, domain.UNACCEPTABLE, v.Result)

	v = r.Evaluate("tattoo_criteria", Input{
		Fields: domain.FieldMap{"tattoo_over_12_months": true},
		Tissue: domain.MUSCULOSKELETAL,
	})
	assert.Equal(t, domain.MD_DISCRETION, v.Result)
}

func TestTraumaCriteriaTissueSpecific(t *testing.T) {
	r := testRegistry()
	fields := domain.FieldMap{"extensive_deep_abrasions_lacerations": true}

	v := r.Evaluate("trauma_criteria", Input{Fields: fields, Tissue: domain.SKIN})
	assert.Equal(t, domain.UNACCEPTABLE, v.Result)

	v = r.Evaluate("trauma_criteria", Input{Fields: fields, Tissue: domain.MUSCULOSKELETAL})
	assert.Equal(t, domain.MD_DISCRETION, v.Result)
}

func TestAutoimmuneCriteria(t *testing.T) {
	r := testRegistry()

	v := r.Evaluate("autoimmune_criteria", Input{
		Fields: domain.FieldMap{"autoimmune_type": "Scleroderma"},
		Tissue: domain.SKIN,
	})
	assert.Equal(t, domain.UNACCEPTABLE, v.Result)

	lupus := domain.FieldMap{"autoimmune_type": "Systemic Lupus Erythematosus"}
	v = r.Evaluate("autoimmune_criteria", Input{Fields: lupus, Tissue: domain.MUSCULOSKELETAL})
	assert.Equal(t, domain.UNACCEPTABLE, v.Result)

	v = r.Evaluate("autoimmune_criteria", Input{Fields: lupus, Tissue: domain.SKIN})
	assert.Equal(t, domain.MD_DISCRETION, v.Result)

	v = r.Evaluate("autoimmune_criteria", Input{
		Fields: domain.FieldMap{"autoimmune_type": "Lupus", "skin_manifestations": true},
		Tissue: domain.SKIN,
	})
	assert.Equal(t, domain.UNACCEPTABLE, v.Result)
}

func TestCancerCriteria(t *testing.T) {
	r := testRegistry()

	v := r.Evaluate("cancer_criteria", Input{Fields: domain.FieldMap{"cancer_type": "Metastatic Melanoma"}})
	assert.Equal(t, domain.UNACCEPTABLE, v.Result)

	v = r.Evaluate("cancer_criteria", Input{Fields: domain.FieldMap{
		"cancer_type": "Meningioma",
		"benign":      "benign, resected 2015",
	}})
	assert.Equal(t, domain.ACCEPTABLE, v.Result)

	v = r.Evaluate("cancer_criteria", Input{Fields: domain.FieldMap{"cancer_type": "prostate adenocarcinoma"}})
	assert.Equal(t, domain.MD_DISCRETION, v.Result)

	v = r.Evaluate("cancer_criteria", Input{Fields: domain.FieldMap{}})
	assert.Equal(t, domain.ACCEPTABLE, v.Result)
}

func TestWestNileVirusWindow(t *testing.T) {
	r := testRegistry()

	v := r.Evaluate("west_nile_virus_criteria", Input{Fields: domain.FieldMap{
		"wnv_diagnosis":                 true,
		"days_since_diagnosis_or_onset": 60,
	}})
	assert.Equal(t, domain.UNACCEPTABLE, v.Result)

	v = r.Evaluate("west_nile_virus_criteria", Input{Fields: domain.FieldMap{
		"wnv_diagnosis":                 true,
		"days_since_diagnosis_or_onset": 200,
	}})
	assert.Equal(t, domain.ACCEPTABLE, v.Result)

	// diagnosis without a date is outside the window by default
	v = r.Evaluate("west_nile_virus_criteria", Input{Fields: domain.FieldMap{"wnv_diagnosis": true}})
	assert.Equal(t, domain.ACCEPTABLE, v.Result)
}

func TestOsteomyelitisChildhoodException(t *testing.T) {
	r := testRegistry()

	fields := domain.FieldMap{
		"osteomyelitis_past_history": true,
		"prior_age_12_females":       true,
		"no_treatment_10_years":      true,
	}
	v := r.Evaluate("osteomyelitis_criteria", Input{Fields: fields, Donor: DonorInfo{Gender: "Female"}})
	assert.Equal(t, domain.ACCEPTABLE, v.Result)

	v = r.Evaluate("osteomyelitis_criteria", Input{Fields: fields, Donor: DonorInfo{Gender: "Male"}})
	assert.Equal(t, domain.UNACCEPTABLE, v.Result)
}

func TestCoolingCriteria(t *testing.T) {
	r := testRegistry()

	v := r.Evaluate("cooling_criteria", Input{Fields: domain.FieldMap{
		"cooled_within_12_hours":   true,
		"skin_prep_within_24_hours": true,
	}})
	assert.Equal(t, domain.ACCEPTABLE, v.Result)

	v = r.Evaluate("cooling_criteria", Input{Fields: domain.FieldMap{
		"cooled_then_not_cooled":    true,
		"not_cooled_time_cumulative": 12,
	}})
	assert.Equal(t, domain.ACCEPTABLE, v.Result)

	v = r.Evaluate("cooling_criteria", Input{Fields: domain.FieldMap{"cooled_within_12_hours": true}})
	assert.Equal(t, domain.MD_DISCRETION, v.Result)
}

func TestAATBTBViableCellsRiskFactors(t *testing.T) {
	r := testRegistry()

	v := r.Evaluate("aatb_new_tb_criteria", Input{Fields: domain.FieldMap{"tb_disease_history_ever": true}})
	assert.Equal(t, domain.UNACCEPTABLE, v.Result)

	v = r.Evaluate("aatb_new_tb_criteria", Input{
		Fields: domain.FieldMap{"viable_cells_tissue": true},
		Donor:  DonorInfo{Age: intPtr(70)},
	})
	assert.Equal(t, domain.UNACCEPTABLE, v.Result)

	// risk factors only matter for tissue retaining viable cells
	v = r.Evaluate("aatb_new_tb_criteria", Input{
		Fields: domain.FieldMap{"tb_exposure_2_years": true},
		Donor:  DonorInfo{Age: intPtr(70)},
	})
	assert.Equal(t, domain.ACCEPTABLE, v.Result)
}
