package rules

import (
	"strings"

	"github.com/donor-eligibility-engine/internal/domain"
)

// evaluateCooling checks the body cooling and recovery timing windows.
// Anything that does not match a documented acceptable combination goes
// to review rather than auto-rejecting on timing alone.
func evaluateCooling(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("cooled_within_12_hours") && in.Fields.ExplicitTrue("skin_prep_within_24_hours") {
		return acceptable("Body cooled within 12 hours of death and skin prep started within 24 hours of death")
	}
	if in.Fields.ExplicitTrue("not_cooled_within_12_hours") && in.Fields.ExplicitTrue("skin_prep_within_15_hours") {
		return acceptable("Body not cooled within 12 hours but skin prep started within 15 hours of death")
	}
	if in.Fields.ExplicitTrue("cooled_then_not_cooled") {
		if n, ok := in.Fields.Number("not_cooled_time_cumulative"); ok && n <= 15 {
			return acceptable("Cumulative non-cooled time within 15 hours")
		}
	}
	return discretion("Cooling criteria unclear - requires review")
}

func evaluateAutopsy(in Input) domain.Verdict {
	if isSkin(in) {
		return acceptable("Autopsy is acceptable for skin")
	}
	if strings.EqualFold(in.Fields.String("tissue_type"), "en_bloc_oa_grafts") &&
		in.Fields.ExplicitTrue("autopsy_performed") {
		if !strings.Contains(strings.ToLower(in.Fields.String("autopsy_type")), "limited") {
			return discretion("Full autopsy performed before en bloc OA graft recovery - requires review")
		}
	}
	return acceptable("No autopsy concerns found")
}

func evaluateToxicology(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("toxicology_positive") {
		return discretion("Positive toxicology results - requires review")
	}
	return acceptable("No toxicology concerns found")
}

func evaluateBowelPerforation(in Input) domain.Verdict {
	if anyTrue(in.Fields, "perforation_during_dissection", "bowel_contents_observed") {
		return unacceptable("Bowel perforation during dissection or bowel contents observed in body cavity")
	}
	if in.Fields.ExplicitTrue("post_autopsy") && in.Fields.ExplicitTrue("tissue_separating_hemipelvis") {
		return acceptable("Post-autopsy recovery with tissue separating the hemipelvis from bowel contents")
	}
	return acceptable("No bowel perforation concerns found")
}

func evaluateContamination(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("tissue_dropped_outside_sterile_field") {
		return unacceptable("Tissue dropped outside the sterile field")
	}
	return acceptable("No contamination concerns found")
}

func evaluateDrowning(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("drowning_occurred") && isSkin(in) {
		return discretion("Drowning - skin recovery reviewed case by case considering water type, submersion time, and body condition")
	}
	return acceptable("No drowning concerns found")
}

func evaluateFracture(in Input) domain.Verdict {
	fractureType := strings.ToLower(in.Fields.String("fracture_type"))
	if strings.Contains(fractureType, "open") {
		return acceptable("Open fracture site can be draped out of the recovery field")
	}
	if strings.Contains(fractureType, "simple") && strings.Contains(fractureType, "closed") {
		return acceptable("Simple closed fracture is acceptable")
	}
	return acceptable("No fracture concerns found")
}

func evaluateProstheticImplants(in Input) domain.Verdict {
	if in.Fields.ExplicitTrue("prosthetic_implants") {
		return discretion("Bone with prosthetic implants may be recovered - requires review")
	}
	return acceptable("No prosthetic implant concerns found")
}

// evaluateTrauma disqualifies skin recovery over extensive trauma and
// sends musculoskeletal recovery to review.
func evaluateTrauma(in Input) domain.Verdict {
	if anyTrue(in.Fields, "extensive_deep_abrasions_lacerations", "adipose_environmental_contaminants") {
		if isSkin(in) {
			return unacceptable("Extensive deep abrasions, lacerations, or adipose exposure to environmental contaminants excludes skin recovery")
		}
		return discretion("Extensive trauma - musculoskeletal recovery requires review")
	}
	return acceptable("No trauma concerns found")
}
