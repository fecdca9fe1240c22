package rules

import (
	"fmt"
	"strings"

	"github.com/donor-eligibility-engine/internal/domain"
)

const (
	msAgeMin     = 15
	msAgeMax     = 75
	msAltAgeMin  = 12
	msAltAgeMax  = 70
	skinAgeMin   = 12
	skinAgeMax   = 70
)

// evaluateAge checks the donor's age against the musculoskeletal and
// skin recovery ranges. Missing age is never assumed acceptable.
func evaluateAge(in Input) domain.Verdict {
	age := in.Donor.Age
	if age == nil {
		if n, ok := in.Fields.Number("donor_age"); ok {
			v := int(n)
			age = &v
		}
	}
	if age == nil {
		return discretion("Age not available")
	}

	a := *age
	msOK := (a >= msAgeMin && a <= msAgeMax) || (a >= msAltAgeMin && a <= msAltAgeMax)
	skinOK := a >= skinAgeMin && a <= skinAgeMax

	switch {
	case msOK && skinOK:
		return acceptable(fmt.Sprintf("Age %d meets criteria for both tissue types", a))
	case msOK || skinOK:
		return discretion(fmt.Sprintf("Age %d: MS=%t, Skin=%t - requires review for tissue-specific eligibility", a, msOK, skinOK))
	default:
		return unacceptable(fmt.Sprintf("Age %d outside acceptable range for all tissue types", a))
	}
}

var unacceptableCancers = []string{
	"breast", "colon", "melanoma", "hematologic", "unknown primary",
	"metastasizing cns", "glioblastoma", "astrocytoma", "medulloblastoma",
}

var benignNeoplasms = []string{
	"pituitary adenoma", "optic nerve glioma", "hemangioblastoma",
	"schwannoma", "neurofibroma", "hamartoma", "meningioma",
	"colloid cyst", "dermoid cyst", "craniopharyngioma", "lipoma",
}

// evaluateCancer distinguishes always-disqualifying malignancies,
// recent malignancies, listed benign neoplasms, and the skin-cancer and
// cervical carcinoma-in-situ cases that go to review.
func evaluateCancer(in Input) domain.Verdict {
	cancerType := strings.ToLower(in.Fields.String("cancer_type"))

	if cancerType != "" && containsAny(cancerType, unacceptableCancers...) {
		return unacceptable(fmt.Sprintf("History of unacceptable malignancy: %s", cancerType))
	}

	if in.Fields.String("diagnosis_date") != "" {
		since := strings.ToLower(in.Fields.String("time_since_death"))
		if strings.Contains(since, "5") || strings.Contains(since, "within") {
			return unacceptable("Malignancy within 5 years of death")
		}
	}

	if cancerType != "" && containsAny(cancerType, benignNeoplasms...) &&
		strings.Contains(strings.ToLower(in.Fields.String("benign")), "benign") {
		return acceptable(fmt.Sprintf("Benign neoplasm: %s", cancerType))
	}

	if containsAny(cancerType, "basal", "squamous") &&
		!in.Fields.ExplicitTrue("recurrence") &&
		strings.Contains(strings.ToLower(in.Fields.String("recurrence_period")), "6 months") {
		return discretion(fmt.Sprintf("Basal or squamous cell skin cancer without recurrence: %s - requires review", cancerType))
	}

	if strings.Contains(cancerType, "cervical") && strings.Contains(cancerType, "intraepithelial") {
		return discretion(fmt.Sprintf("Cervical intraepithelial neoplasia: %s - requires review", cancerType))
	}

	if cancerType != "" {
		return discretion(fmt.Sprintf("Cancer history requires review: %s", cancerType))
	}
	return acceptable("No cancer history found")
}

var systemicAutoimmune = []string{
	"polyarteritis nodosa", "sarcoidosis", "progressive systemic sclerosis", "scleroderma",
}

var reviewableAutoimmune = []string{
	"rheumatoid arthritis", "systemic lupus erythematosus", "lupus", "sle",
	"polymyositis", "sjogren", "ankylosing spondylitis", "psoriatic arthritis", "reiters",
}

// evaluateAutoimmune disqualifies systemic disorders for both tissues.
// The connective tissue disorders disqualify musculoskeletal grafts but
// may allow skin recovery when skin is not involved.
func evaluateAutoimmune(in Input) domain.Verdict {
	diseaseType := strings.ToLower(in.Fields.String("autoimmune_type"))
	if diseaseType == "" {
		diseaseType = strings.ToLower(in.Fields.String("disease_type"))
	}

	if diseaseType != "" && containsAny(diseaseType, systemicAutoimmune...) {
		return unacceptable(fmt.Sprintf("Systemic autoimmune disorder unacceptable for all tissue: %s", diseaseType))
	}

	if diseaseType != "" && containsAny(diseaseType, reviewableAutoimmune...) {
		if isSkin(in) && !in.Fields.ExplicitTrue("skin_manifestations") {
			return discretion(fmt.Sprintf("Autoimmune disorder without skin manifestations: %s - skin recovery requires review", diseaseType))
		}
		return unacceptable(fmt.Sprintf("Autoimmune disorder unacceptable for musculoskeletal tissue: %s", diseaseType))
	}
	return acceptable("No disqualifying autoimmune disorder found")
}

func evaluateDementia(in Input) domain.Verdict {
	if anyTrue(in.Fields, "dementia_unknown_etiology", "memory_loss_unknown_etiology") {
		return unacceptable("Dementia or memory loss of unknown etiology")
	}
	if in.Fields.ExplicitTrue("dementia_caused_by_cva_brain_tumor_trauma_toxic") &&
		in.Fields.ExplicitTrue("no_tse_evidence") {
		return discretion("Dementia caused by CVA, brain tumor, head trauma, or toxic/metabolic causes with no evidence of TSE - requires review")
	}
	return acceptable("No dementia concerns found")
}

func evaluateDelirium(in Input) domain.Verdict {
	if anyTrue(in.Fields, "delirium_caused_by_toxic_metabolic", "delirium_caused_by_head_trauma") {
		return discretion("Delirium caused by toxic/metabolic causes or head trauma - requires review")
	}
	return acceptable("No delirium concerns found")
}

func evaluateDiabetes(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("amputation_diabetic_foot_ulcer_osteomyelitis") &&
		in.Fields.ExplicitTrue("surgery_resolution_greater_than_12_months") {
		return discretion("Amputation due to diabetic foot ulcer or osteomyelitis with surgical resolution more than 12 months ago - requires review")
	}
	return acceptable("No disqualifying diabetes complications found")
}

func evaluateBleedingDisorder(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("clotting_factor_concentrates_more_than_5_years_ago") {
		return discretion("Receipt of clotting factor concentrates more than 5 years ago - requires review")
	}
	return acceptable("No bleeding disorder concerns found")
}

func evaluateBoneDisease(in Input) domain.Verdict {
	diseaseType := strings.ToLower(in.Fields.String("bone_disease_type"))
	if diseaseType == "" {
		diseaseType = strings.ToLower(in.Fields.String("disease_type"))
	}

	if diseaseType != "" && containsAny(diseaseType, "osteomalacia", "metabolic_bone_disease", "osteoporosis") && isMusculoskeletal(in) {
		return unacceptable(fmt.Sprintf("Bone disease unacceptable for musculoskeletal tissue: %s", diseaseType))
	}
	if containsAny(diseaseType, "osteoarthritis", "overuse") {
		return acceptable(fmt.Sprintf("Acceptable degenerative condition: %s", diseaseType))
	}
	return acceptable("No disqualifying bone disease found")
}

func evaluateGout(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("acute_gout") {
		return discretion("Acute gout - requires review")
	}
	if in.Fields.ExplicitTrue("gout_diagnosis") {
		return discretion("Gout diagnosis - requires review")
	}
	return acceptable("No gout concerns found")
}

func evaluateGrowthHormone(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("human_pituitary_growth_hormone") {
		return unacceptable("Receipt of human pituitary-derived growth hormone")
	}
	if in.Fields.ExplicitTrue("recombinant_growth_hormone") {
		return acceptable("Receipt of recombinant growth hormone is acceptable")
	}
	return acceptable("No growth hormone concerns found")
}

func evaluateGuillainBarre(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("past_history") {
		if in.Fields.ExplicitTrue("medically_treated") &&
			in.Fields.ExplicitTrue("full_recovery") &&
			in.Fields.ExplicitTrue("no_recurrence") {
			return discretion("Past history of Guillain-Barre syndrome, medically treated with full recovery and no recurrence - requires review")
		}
		return unacceptable("Past history of Guillain-Barre syndrome")
	}
	return acceptable("No Guillain-Barre syndrome history found")
}

func evaluateHemodialysis(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("long_term_hemodialysis_chronic_kidney_failure") {
		return unacceptable("Long-term hemodialysis for chronic kidney failure")
	}
	if in.Fields.ExplicitTrue("short_term_hemodialysis_acute_renal_failure") {
		return discretion("Short-term hemodialysis for acute renal failure - requires review")
	}
	return acceptable("No hemodialysis concerns found")
}

func evaluateJaundice(in Input) domain.Verdict {
	if isSkin(in) && in.Fields.ExplicitTrue("jaundice_areas") {
		return unacceptable("Skin cannot be recovered from jaundiced areas")
	}
	if in.Fields.ExplicitTrue("jaundice_unexplained_undiagnosed") &&
		in.Fields.ExplicitTrue("not_drugs_mononucleosis_bile_duct") {
		return discretion("Unexplained or undiagnosed jaundice not attributable to drugs, mononucleosis, or bile duct obstruction - requires review")
	}
	return acceptable("No jaundice concerns found")
}

func evaluateLiverDisease(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("unexplained_liver_disease_symptoms") {
		return unacceptable("Unexplained symptoms of liver disease")
	}
	return acceptable("No liver disease concerns found")
}

func evaluateLongTermIllness(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("long_term_illness") {
		return discretion("Long-term illness - requires review")
	}
	return acceptable("No long-term illness found")
}

func evaluateLongTermSteroidTherapy(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("long_term_steroid_therapy") {
		return discretion("Long-term steroid therapy - requires review")
	}
	return acceptable("No long-term steroid therapy found")
}

func evaluateLouGehrigDisease(in Input) domain.Verdict {
	if anyTrue(in.Fields, "als_current", "als_past") {
		return unacceptable("Current or past history of amyotrophic lateral sclerosis")
	}
	return acceptable("No ALS history found")
}

func evaluateMultipleSclerosis(in Input) domain.Verdict {
	if anyTrue(in.Fields, "ms_current", "ms_past") {
		return unacceptable("Current or past history of multiple sclerosis")
	}
	return acceptable("No multiple sclerosis history found")
}

func evaluateMuscularDystrophy(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("muscular_dystrophy") {
		return discretion("Muscular dystrophy - requires review")
	}
	return acceptable("No muscular dystrophy found")
}

func evaluateNonTumorShunts(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("non_tumor_related_shunts") {
		return discretion("Non-tumor related shunts - requires review")
	}
	return acceptable("No non-tumor related shunts found")
}

// evaluateOsteomyelitis allows the resolved-childhood-case exception:
// infection before age 12 (females) or 14 (males) with no treatment in
// the last 10 years.
func evaluateOsteomyelitis(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("osteomyelitis_other_history") {
		return unacceptable("Other history of osteomyelitis")
	}
	if in.Fields.ExplicitTrue("osteomyelitis_past_history") {
		gender := strings.ToLower(in.Donor.Gender)
		childhood := (gender == "female" && in.Fields.ExplicitTrue("prior_age_12_females")) ||
			(gender == "male" && in.Fields.ExplicitTrue("prior_age_14_males"))
		if childhood && in.Fields.ExplicitTrue("no_treatment_10_years") {
			return acceptable("Past history of osteomyelitis prior to age 12 (females) or 14 (males) with no treatment in past 10 years")
		}
		return unacceptable("Past history of osteomyelitis")
	}
	return acceptable("No osteomyelitis history found")
}

func evaluateReyesSyndrome(in Input) domain.Verdict {
	if anyTrue(in.Fields, "reyes_syndrome_past", "reyes_syndrome_current") {
		return unacceptable("Current or past history of Reye's syndrome")
	}
	return acceptable("No Reye's syndrome history found")
}

func evaluateRheumaticFever(in Input) domain.Verdict {
	if strings.EqualFold(in.Fields.String("tissue_type"), "pericardium") {
		if anyTrue(in.Fields, "rheumatic_fever", "bacterial_endocarditis",
			"semilunar_valvular_heart_disease", "heart_disease_unknown_etiology") {
			return unacceptable("Rheumatic fever, bacterial endocarditis, semilunar valvular heart disease, or heart disease of unknown etiology excludes pericardium recovery")
		}
	}
	return acceptable("No rheumatic fever concerns found")
}

// evaluateCJD covers the Creutzfeldt-Jakob exclusions, allowing
// familial cases ruled out by gene sequencing.
func evaluateCJD(in Input) domain.Verdict {
	if anyTrue(in.Fields, "cjd_diagnosis", "cjd_family_history_non_iatrogenic") {
		if in.Fields.ExplicitTrue("gene_sequencing_no_mutation") {
			return acceptable("CJD family history ruled out by gene sequencing showing no mutation")
		}
		return unacceptable("Diagnosis or non-iatrogenic family history of Creutzfeldt-Jakob disease")
	}
	if anyTrue(in.Fields, "dura_mater_transplant", "pituitary_growth_hormone", "cjd_blood_relatives") {
		return unacceptable("Receipt of dura mater transplant, human pituitary-derived growth hormone, or CJD in blood relatives")
	}
	return acceptable("No CJD risk factors found")
}

func evaluateTransplant(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("non_synthetic_dura_mater") {
		return unacceptable("Receipt of non-synthetic dura mater transplant")
	}
	if in.Fields.ExplicitTrue("epicel_receipt") {
		return unacceptable("Receipt of Epicel")
	}
	if in.Fields.ExplicitTrue("human_dura_allograft_tissue") {
		return unacceptable("Receipt of human dura allograft tissue")
	}
	if in.Fields.ExplicitTrue("xenograft_living_cells") {
		return unacceptable("Receipt of xenograft containing living cells")
	}
	if in.Fields.ExplicitTrue("xenograft_non_living_cells") {
		return acceptable("Receipt of xenograft without living cells is acceptable")
	}
	if in.Fields.ExplicitTrue("human_tissue_transplant_screened") {
		return acceptable("Receipt of screened human tissue transplant is acceptable")
	}
	if in.Fields.String("transplant_type") != "" {
		return discretion(fmt.Sprintf("Transplant history requires review: %s", in.Fields.String("transplant_type")))
	}
	return acceptable("No transplant history found")
}

func evaluateImmunizations(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("live_virus_vaccine") {
		if in.Fields.ExplicitTrue("four_weeks_since_last_dose") {
			return acceptable("Live virus vaccine with four weeks or more since last dose")
		}
		return unacceptable("Live virus vaccine within four weeks of death")
	}
	if in.Fields.ExplicitTrue("live_attenuated_virus_vaccine") {
		return acceptable("Live attenuated virus vaccine is acceptable")
	}
	return acceptable("No immunization concerns found")
}
