package rules

import (
	"fmt"

	"github.com/donor-eligibility-engine/internal/domain"
)

// evaluateHIV screens serology rows for HIV tests and the extracted
// history fields. Any positive result is disqualifying; exposure within
// 12 months is disqualifying, older exposure history goes to review.
func evaluateHIV(in Input) domain.Verdict {
	tests := serologyMatching(in.Labs, "hiv")
	for _, t := range tests {
		if isPositiveResult(t.ResultValue) {
			return unacceptable(fmt.Sprintf("Positive HIV test result: %s = %s", t.TestName, t.ResultValue))
		}
	}

	history := anyTrue(in.Fields, "hiv_history", "hiv_exposure")
	exposed12 := in.Fields.ExplicitTrue("exposed_to_hiv_12_months")
	if history || exposed12 {
		if exposed12 {
			return unacceptable("Exposed to HIV in preceding 12 months")
		}
		return discretion("HIV exposure history requires review")
	}

	if in.Fields.ExplicitTrue("needle_tracks") {
		return unacceptable("Needle tracks or signs of IV drug abuse")
	}

	if allNegative(tests) {
		return acceptable("All HIV tests negative/non-reactive")
	}
	return discretion("HIV status unclear - requires review")
}

func evaluateHIVAIDS(in Input) domain.Verdict {
	if anyTrue(in.Fields, "aids_diagnosed", "hiv_infected", "positive_test", "needle_tracks", "iv_drug_abuse") {
		return unacceptable("Diagnosed with AIDS/HIV or signs of IV drug abuse")
	}
	return acceptable("No AIDS/HIV diagnosis or IV drug abuse signs")
}

func evaluateHepatitis(in Input) domain.Verdict {
	tests := serologyMatching(in.Labs, "hepatitis", "hbsag", "hbv", "hcv", "anti-hbc", "anti-hcv")
	for _, t := range tests {
		if isPositiveResult(t.ResultValue) {
			return unacceptable(fmt.Sprintf("Positive hepatitis test result: %s = %s", t.TestName, t.ResultValue))
		}
	}

	if in.Fields.ExplicitTrue("resided_with_hepatitis_person_12_months") {
		return unacceptable("Resided with hepatitis person in preceding 12 months")
	}
	if in.Fields.ExplicitTrue("hepatitis_c_treated_cured") {
		return acceptable("Hepatitis C treated and cured")
	}
	if anyTrue(in.Fields, "unexplained_liver_disease_symptoms", "active_hepatitis_diagnosis") {
		return unacceptable("Unexplained liver disease or active hepatitis")
	}
	if anyTrue(in.Fields, "hepatitis_b_vaccine", "hbsab_positive") {
		return acceptable("Hepatitis B vaccine received or HBsAb positive")
	}

	if allNegative(tests) {
		return acceptable("All hepatitis tests negative/non-reactive")
	}
	return discretion("Hepatitis status unclear - requires review")
}

// evaluateSepsis flags a documented diagnosis as disqualifying; a
// positive blood culture without a diagnosis is a contradiction that
// escalates to review rather than auto-deciding.
func evaluateSepsis(in Input) domain.Verdict {
	if anyTrue(in.Fields, "sepsis_diagnosis", "bacteremia", "septicemia", "sepsis_syndrome", "systemic_infection", "septic_shock") {
		return unacceptable("Documented medical diagnosis of sepsis or clinical evidence consistent with sepsis")
	}

	for _, c := range culturesMatching(in.Labs, "blood") {
		if cultureShowsGrowth(c.ResultValue) {
			return discretion(fmt.Sprintf("Positive blood culture result: %s - requires review for sepsis", c.ResultValue))
		}
	}

	if in.Fields.ExplicitTrue("uncertainty_regarding_sepsis") {
		return discretion("Uncertainty regarding sepsis findings")
	}
	return acceptable("No sepsis diagnosis or evidence found")
}

func evaluateSepticemia(in Input) domain.Verdict {
	for _, c := range culturesMatching(in.Labs, "blood") {
		if cultureShowsGrowth(c.ResultValue) {
			if in.Fields.ExplicitTrue("contamination_possibility") {
				return discretion(fmt.Sprintf("Positive blood culture may indicate contamination: %s", c.ResultValue))
			}
			return unacceptable(fmt.Sprintf("Positive blood culture indicative of septicemia: %s", c.ResultValue))
		}
	}

	if anyTrue(in.Fields, "septicemia_evidence", "positive_blood_culture") {
		return unacceptable("Evidence or medical diagnosis of septicemia")
	}
	return acceptable("No septicemia evidence found")
}

func evaluateTuberculosis(in Input) domain.Verdict {
	if anyTrue(in.Fields, "tb_diagnosis", "tb_symptoms_history") {
		return unacceptable("Diagnosis or history of symptoms associated with TB")
	}
	if in.Fields.ExplicitTrue("active_tb_infection") {
		return unacceptable("Evidence of significant active TB infection")
	}
	if in.Fields.ExplicitTrue("tb_test_positive") {
		if !in.Fields.ExplicitTrue("tb_diagnosed") && !in.Fields.ExplicitTrue("tb_symptoms") {
			return discretion("Positive TB test but no diagnosis or symptoms - requires review")
		}
	}
	return acceptable("No TB diagnosis or symptoms found")
}

func evaluateSyphilis(in Input) domain.Verdict {
	for _, t := range serologyMatching(in.Labs, "syphilis") {
		if isPositiveResult(t.ResultValue) {
			return unacceptable(fmt.Sprintf("Positive syphilis test result: %s = %s", t.TestName, t.ResultValue))
		}
	}
	return acceptable("No positive syphilis test results")
}

func evaluateHTLV(in Input) domain.Verdict {
	for _, t := range serologyMatching(in.Labs, "htlv") {
		if isPositiveResult(t.ResultValue) {
			return unacceptable(fmt.Sprintf("Positive HTLV I/II test result: %s = %s", t.TestName, t.ResultValue))
		}
	}
	return acceptable("No positive HTLV I/II test results")
}

// evaluateWestNileVirus applies the 120-day exclusion window to both
// positive tests and clinical diagnoses.
func evaluateWestNileVirus(in Input) domain.Verdict {
	daysSinceTest := 999.0
	if n, ok := in.Fields.Number("days_since_test"); ok {
		daysSinceTest = n
	}
	for _, t := range serologyMatching(in.Labs, "west nile") {
		if isPositiveResult(t.ResultValue) && daysSinceTest <= 120 {
			return unacceptable(fmt.Sprintf("Positive WNV test in preceding 120 days: %s = %s", t.TestName, t.ResultValue))
		}
	}

	daysSinceDiagnosis := 999.0
	if n, ok := in.Fields.Number("days_since_diagnosis_or_onset"); ok {
		daysSinceDiagnosis = n
	}
	if in.Fields.ExplicitTrue("wnv_diagnosis") && daysSinceDiagnosis <= 120 {
		return unacceptable(fmt.Sprintf("WNV diagnosis within 120 days: %.0f days ago", daysSinceDiagnosis))
	}
	return acceptable("No WNV diagnosis or positive test in preceding 120 days")
}

func evaluateInfection(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("sores_cutaneous_infection_breakdown") {
		return unacceptable("Sores and/or sites of cutaneous infection and/or breakdown")
	}
	if in.Fields.ExplicitTrue("significant_active_infection") {
		return unacceptable("Diagnosis of significant active infections")
	}
	if in.Fields.ExplicitTrue("active_bacterial_viral_meningitis_encephalitis") {
		return unacceptable("Active bacterial or viral meningitis or encephalitis")
	}
	if in.Fields.ExplicitTrue("meningitis_resolved_6_months") {
		return acceptable("Meningitis infection resolved and clinical symptoms have not recurred within past six months")
	}
	if in.Fields.ExplicitTrue("herpes_zoster_inactive_healed") {
		return acceptable("Herpes zoster (inactive or healed)")
	}
	return acceptable("No significant active infections found")
}

// activeInfectionRule covers the family of criteria that disqualify
// only on evidence of a significant active infection.
func activeInfectionRule(activeField, clearReasoning string) Func {
	return func(in Input) domain.Verdict {
		if in.Fields.ExplicitTrue("significant_active_infection") || in.Fields.ExplicitTrue(activeField) {
			return unacceptable("Evidence of significant active infections")
		}
		return acceptable(clearReasoning)
	}
}

func evaluateCOVID(in Input) domain.Verdict {
	if anyTrue(in.Fields, "covid_symptoms", "covid_risk_factors") {
		return discretion("Donors with clinical symptoms or risk factors")
	}
	return acceptable("No COVID symptoms or risk factors found")
}

func evaluateEncephalitis(in Input) domain.Verdict {
	if anyTrue(in.Fields, "encephalitis_current", "encephalitis_past") {
		return unacceptable("Current or past history of encephalitis")
	}
	return acceptable("No encephalitis history found")
}

func evaluateLeprosy(in Input) domain.Verdict {
	if anyTrue(in.Fields, "leprosy_current", "leprosy_past") {
		return unacceptable("Current or past history of leprosy")
	}
	return acceptable("No leprosy history found")
}

func evaluateMalaria(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("malaria_resident_arrived_us_3_years") {
		return unacceptable("Residents of malarial areas who arrived in the U.S. within 3 years")
	}
	if in.Fields.ExplicitTrue("malaria_treated_within_3_years") {
		return unacceptable("Treated for malaria within past three years")
	}
	if in.Fields.ExplicitTrue("malaria_travel_6_months_no_prophylaxis") {
		return unacceptable("Visited endemic malarial areas in past six months and did not take anti-malarial drugs for prophylaxis")
	}
	return acceptable("No malaria risk factors found")
}

func evaluateRabies(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("bitten_scratched_suspected_rabies_6_months") {
		return unacceptable("Bitten and/or scratched by an animal suspected to be infected within past six months")
	}
	if in.Fields.ExplicitTrue("suspected_rabies") {
		return unacceptable("Suspected rabies")
	}
	if in.Fields.ExplicitTrue("rabies_vaccine_after_bite") && in.Fields.ExplicitTrue("one_year_after_last_shot") {
		return acceptable("Receipt of rabies vaccine after bite from rabid animal one year after last shot")
	}
	return acceptable("No rabies concerns found")
}

func evaluateSIRS(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("sirs_due_to_infection") {
		return unacceptable("SIRS due to infection")
	}
	if in.Fields.ExplicitTrue("sirs_other_causes") {
		return discretion("SIRS from other causes may be acceptable and will be reviewed")
	}
	return acceptable("No SIRS found")
}

func evaluateSmallpox(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("smallpox_vaccine") {
		return discretion("Smallpox vaccine - obtain the following information: date vaccine obtained, presence or absence of scab, how scab removed, any complications")
	}
	return acceptable("No smallpox vaccine found")
}

func evaluateSTDSTI(in Input) domain.Verdict {
	stdType := in.Fields.String("std_sti_type")
	treated12 := in.Fields.ExplicitTrue("treated_within_12_months")

	if containsAny(stdType, "syphilis", "gonorrhea") && stdType != "" && treated12 {
		return unacceptable("Donors diagnosed with or treated for syphilis or gonorrhea within preceding 12 months")
	}
	if in.Fields.ExplicitTrue("std_sti_other") && treated12 {
		return discretion("Donors diagnosed with or treated for STDs/STIs other than syphilis or gonorrhea within preceding 12 months")
	}
	if in.Fields.ExplicitTrue("std_sti_history_more_than_12_months") {
		return discretion("Donors with previous history of symptoms or conditions or a history of STDs/STIs more than 12 months ago")
	}
	if in.Fields.ExplicitTrue("sexual_relations_active_std_sti_12_months") {
		return discretion("Donors who had sexual relations with an individual who had an active STD/STI within preceding 12 months")
	}
	return acceptable("No STD/STI concerns found")
}

func evaluateLongTermInfection(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("long_term_infection_current") {
		return unacceptable("Current history of long-term (more than 3 months) bacterial, fungal, viral infections, or diseases of unknown origin")
	}
	return acceptable("No long-term infection found")
}

func evaluateChagasDisease(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("chagas_treated_within_3_years") {
		return unacceptable("Donors treated for trypanosoma cruzi within past 3 years")
	}
	return acceptable("No Chagas disease treatment within past 3 years")
}

func evaluateHIVGroupO(in Input) domain.Verdict {
	if anyTrue(in.Fields, "born_lived_africa_countries", "sexual_partner_africa_countries") {
		return unacceptable("Donors or their sexual partners who were born or lived in certain countries of Africa")
	}
	if anyTrue(in.Fields, "blood_transfusion_africa", "medical_treatment_africa") {
		return unacceptable("Receipt of a blood transfusion or any medical treatment that involved blood in countries of Africa")
	}
	return acceptable("No HIV Group O risk factors found")
}

func evaluateHIVHepatitisMedication(in Input) domain.Verdict {
	if anyTrue(in.Fields, "medications_unknown_reason", "aids_prophylactic_treatment", "hepatitis_prophylactic_treatment") {
		return unacceptable("Medication(s) taken for unknown reason or treatment or prophylactic treatment of AIDS or hepatitis B or C")
	}
	return acceptable("No HIV/Hepatitis medication concerns found")
}

func evaluateHIVHepatitisPhysicalEvidence(in Input) domain.Verdict {
	if anyTrue(in.Fields, "physical_evidence_hiv", "physical_evidence_hepatitis", "physical_evidence_communicable_disease") {
		return unacceptable("Physical evidence of conditions or physical characteristics of HIV infection (AIDS), hepatitis or active relevant communicable diseases")
	}
	return acceptable("No physical evidence of HIV, hepatitis, or communicable diseases found")
}

func evaluateNeedleStick(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("exposed_12_months_hiv_hbv_hcv") {
		return unacceptable("Exposed in preceding 12 months to known or suspected HIV, HBV, and/or HCV infected blood through percutaneous inoculation or through contact with an open wound, non-intact skin, or mucous membrane")
	}
	if in.Fields.ExplicitTrue("sexual_relations_exposed_person_12_months") {
		return discretion("Donor had sexual relations with a person who has been exposed in preceding 12 months to known or suspected HIV, HBV, and/or HCV infected blood")
	}
	return acceptable("No needle stick exposure found")
}

// evaluateAATBTB applies the AATB tuberculosis addendum, with the
// stricter risk-factor screen for tissues intended to retain viable
// cells.
func evaluateAATBTB(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("tb_disease_history_ever") {
		return unacceptable("Persons with a history (ever) of tuberculosis disease")
	}
	if in.Fields.ExplicitTrue("tb_latent_infection_diagnosed_within_2_years") {
		return unacceptable("Persons with a history of (latent) tuberculosis infection initially diagnosed within the past two (2) years")
	}

	if in.Fields.ExplicitTrue("viable_cells_tissue") {
		age65Plus := in.Donor.Age != nil && *in.Donor.Age >= 65
		if age65Plus || anyTrue(in.Fields,
			"tb_travel_immigration_2_years", "tb_exposure_2_years", "tb_latent_2_years_ago",
			"tb_homelessness_2_years", "tb_incarceration_2_years", "tb_esrd_transplant") {
			return unacceptable("For tissues intended to ultimately retain viable cells - various risk factors present")
		}
		if in.Fields.ExplicitTrue("exposure_risk_factor") && in.Fields.ExplicitTrue("reactivation_risk_factor") {
			return unacceptable("Potential donors with at least one risk factor from each column (exposure and reactivation) are ineligible")
		}
	}
	return acceptable("No AATB New TB Criteria risk factors found")
}
