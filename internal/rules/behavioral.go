package rules

import (
	"fmt"
	"strings"

	"github.com/donor-eligibility-engine/internal/domain"
)

// evaluateHighRiskBehavior screens the behavioral exclusion windows.
// Twelve-month behaviors disqualify outright, five-year behaviors
// disqualify, and older IV drug use goes to medical director review.
func evaluateHighRiskBehavior(in Input) domain.Verdict {
	if anyTrue(in.Fields,
		"sex_for_money_drugs_12_months", "female_male_partner_msm_5_years",
		"sex_with_iv_drug_user_12_months", "sex_with_hiv_hepatitis_12_months") {
		return unacceptable("High risk behavior within preceding 12 months")
	}
	if anyTrue(in.Fields, "sex_for_money_drugs_5_years", "male_msm_5_years", "iv_drug_use_5_years") {
		return unacceptable("High risk behavior within preceding 5 years")
	}
	if in.Fields.ExplicitTrue("iv_drug_use_more_than_5_years") {
		return discretion("IV drug use more than 5 years ago - requires review")
	}
	return acceptable("No high risk behaviors found")
}

func evaluateIVDrugUse(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("iv_drug_use_5_years") {
		return unacceptable("Non-medical IV drug use within preceding 5 years")
	}
	if in.Fields.ExplicitTrue("iv_drug_use_more_than_5_years") {
		var details []string
		for _, k := range []string{"drug_type", "route", "duration"} {
			if v := in.Fields.String(k); v != "" {
				details = append(details, fmt.Sprintf("%s: %s", k, v))
			}
		}
		reasoning := "IV drug use more than 5 years ago - requires review"
		if len(details) > 0 {
			reasoning = fmt.Sprintf("%s (%s)", reasoning, strings.Join(details, ", "))
		}
		return discretion(reasoning)
	}
	return acceptable("No IV drug use found")
}

func evaluateHighRiskNonIVDrugUse(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("non_iv_drug_use") {
		return discretion("Non-IV drug use - consider factors such as drug used, route, frequency, duration of use, date of last use, social history, and lifestyle")
	}
	return acceptable("No non-IV drug use found")
}

func evaluateIncarceration(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("incarceration_72_hours_12_months") {
		return unacceptable("Incarceration for more than 72 consecutive hours within preceding 12 months")
	}
	if in.Fields.ExplicitTrue("incarceration_1_year") {
		var details []string
		for _, k := range []string{"incarceration_length", "circumstances"} {
			if v := in.Fields.String(k); v != "" {
				details = append(details, fmt.Sprintf("%s: %s", k, v))
			}
		}
		reasoning := "Incarceration within past year - requires review"
		if len(details) > 0 {
			reasoning = fmt.Sprintf("%s (%s)", reasoning, strings.Join(details, ", "))
		}
		return discretion(reasoning)
	}
	return acceptable("No incarceration history found")
}

// evaluateTattoo disqualifies skin recovery over tattooed areas, recent
// high-risk tattooing anywhere, and sends older tattoos to review.
func evaluateTattoo(in Input) domain.Verdict {
	if isSkin(in) && in.Fields.ExplicitTrue("tattoo_areas") {
		return unacceptable("Skin cannot be recovered from tattooed areas")
	}
	if anyTrue(in.Fields,
		"tattoo_shared_instruments_12_months", "tattoo_outside_us_canada_12_months",
		"tattoo_high_risk_lifestyle_12_months") {
		return unacceptable("Tattoo applied under high-risk conditions within preceding 12 months")
	}
	if in.Fields.ExplicitTrue("tattoo_over_12_months") {
		return discretion("Tattoo more than 12 months ago - requires review")
	}
	return acceptable("No tattoo concerns found")
}

func evaluatePiercingAcupuncture(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("shared_instruments_12_months") {
		return unacceptable("Piercing or acupuncture with shared instruments within preceding 12 months")
	}
	if in.Fields.ExplicitTrue("piercing_acupuncture_outside_us_canada_12_months") {
		return unacceptable("Piercing or acupuncture outside the U.S. or Canada within preceding 12 months")
	}
	return acceptable("No piercing or acupuncture concerns found")
}

func evaluateGenitaliaPiercing(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("genitalia_piercing") {
		return discretion("Genitalia piercing - requires review")
	}
	return acceptable("No genitalia piercing found")
}

func evaluatePerianalCondyloma(in Input) domain.Verdict {
	if strings.EqualFold(in.Donor.Gender, "male") && in.Fields.ExplicitTrue("anal_intercourse_evidence") {
		return unacceptable("Perianal condyloma in a male donor as evidence of anal intercourse")
	}
	return acceptable("No perianal condyloma concerns found")
}

func evaluateRefusedBloodDonor(in Input) domain.Verdict {
	if anyTrue(in.Fields, "deferred_unknown_reasons", "deferred_diseases_infections", "deferred_positive_serologic") {
		return unacceptable("Previously deferred as a blood donor for unknown reasons, diseases, infections, or positive serologic tests")
	}
	if in.Fields.ExplicitTrue("deferred_other_circumstances") {
		return discretion("Previously deferred as a blood donor under other circumstances - requires review")
	}
	return acceptable("No blood donor deferral history found")
}

// evaluateTravel applies the geographic exclusions for malaria, Chagas
// disease, and TSE risk areas, including the UK/Europe residency
// windows.
func evaluateTravel(in Input) domain.Verdict {
	if anyTrue(in.Fields,
		"malarial_areas_arrived_us_3_years", "chagas_areas_arrived_us_3_years",
		"tse_areas_arrived_us_3_years") {
		return unacceptable("Resident of malarial, Chagas, or TSE risk areas who arrived in the U.S. within past 3 years")
	}
	if in.Fields.ExplicitTrue("uk_3_months_1980_1996") {
		return unacceptable("Spent three months or more cumulatively in the U.K. from 1980 through 1996")
	}
	if in.Fields.ExplicitTrue("blood_transfusion_uk_france_1980_present") {
		return unacceptable("Receipt of a blood transfusion in the U.K. or France from 1980 to the present")
	}
	if in.Fields.ExplicitTrue("europe_5_years_1980_present") {
		return unacceptable("Lived five years or more cumulatively in Europe from 1980 to the present")
	}
	if in.Fields.ExplicitTrue("malarial_areas_6_months_no_prophylaxis") {
		return discretion("Travel to malarial areas within past six months without prophylaxis - requires review")
	}
	return acceptable("No travel-related risk factors found")
}

func evaluateUSMilitary(in Input) domain.Verdict {
	if anyTrue(in.Fields, "military_northern_europe_6_months_1980_1990", "military_europe_6_months_1980_1996") {
		return unacceptable("U.S. military member, civilian military employee, or dependent who spent six months or more on or associated with a military base in Europe during the exclusion period")
	}
	if in.Fields.ExplicitTrue("uk_3_months_1980_1996") {
		return unacceptable("Spent three months or more cumulatively in the U.K. from 1980 through 1996")
	}
	return acceptable("No U.S. military residency risk factors found")
}
