package rules

// registerAll installs every evaluation-logic identifier the criteria
// catalog may reference. The identifiers are the stable contract with
// the catalog; renaming one here breaks configured criteria.
func (r *Registry) registerAll() {
	r.register("age_criteria", evaluateAge)
	r.register("cancer_criteria", evaluateCancer)
	r.register("hiv_criteria", evaluateHIV)
	r.register("hiv_aids_criteria", evaluateHIVAIDS)
	r.register("hepatitis_criteria", evaluateHepatitis)
	r.register("sepsis_criteria", evaluateSepsis)
	r.register("septicemia_criteria", evaluateSepticemia)
	r.register("tuberculosis_criteria", evaluateTuberculosis)
	r.register("high_risk_behavior_criteria", evaluateHighRiskBehavior)
	r.register("iv_drug_use_criteria", evaluateIVDrugUse)
	r.register("incarceration_criteria", evaluateIncarceration)
	r.register("syphilis_criteria", evaluateSyphilis)
	r.register("htlv_criteria", evaluateHTLV)
	r.register("west_nile_virus_criteria", evaluateWestNileVirus)
	r.register("infection_criteria", evaluateInfection)
	r.register("cooling_criteria", evaluateCooling)
	r.register("autopsy_criteria", evaluateAutopsy)
	r.register("toxicology_criteria", evaluateToxicology)
	r.register("autoimmune_criteria", evaluateAutoimmune)
	r.register("dementia_criteria", evaluateDementia)
	r.register("bleeding_disorder_criteria", evaluateBleedingDisorder)
	r.register("bone_disease_criteria", evaluateBoneDisease)
	r.register("bowel_perforation_criteria", evaluateBowelPerforation)
	r.register("chagas_disease_criteria", evaluateChagasDisease)
	r.register("chicken_pox_criteria", activeInfectionRule("chicken_pox_active", "No active chicken pox infection found"))
	r.register("contamination_criteria", evaluateContamination)
	r.register("covid_criteria", evaluateCOVID)
	r.register("creutzfeldt_jakob_disease_criteria", evaluateCJD)
	r.register("delirium_criteria", evaluateDelirium)
	r.register("diabetes_criteria", evaluateDiabetes)
	r.register("drowning_criteria", evaluateDrowning)
	r.register("encephalitis_criteria", evaluateEncephalitis)
	r.register("fracture_criteria", evaluateFracture)
	r.register("gout_criteria", evaluateGout)
	r.register("growth_hormone_criteria", evaluateGrowthHormone)
	r.register("guillain_barre_criteria", evaluateGuillainBarre)
	r.register("hemodialysis_criteria", evaluateHemodialysis)
	r.register("herpes_ii_criteria", activeInfectionRule("herpes_ii_active", "No active herpes II infection found"))
	r.register("high_risk_non_iv_drug_use_criteria", evaluateHighRiskNonIVDrugUse)
	r.register("hiv_group_o_criteria", evaluateHIVGroupO)
	r.register("hiv_hepatitis_criteria", evaluateHIVHepatitisMedication)
	r.register("hiv_hepatitis_communicable_disease_criteria", evaluateHIVHepatitisPhysicalEvidence)
	r.register("immunizations_criteria", evaluateImmunizations)
	r.register("jaundice_criteria", evaluateJaundice)
	r.register("leprosy_criteria", evaluateLeprosy)
	r.register("liver_disease_criteria", evaluateLiverDisease)
	r.register("long_term_illness_criteria", evaluateLongTermIllness)
	r.register("long_term_steroid_therapy_criteria", evaluateLongTermSteroidTherapy)
	r.register("long_term_infection_criteria", evaluateLongTermInfection)
	r.register("lou_gehrig_disease_criteria", evaluateLouGehrigDisease)
	r.register("malaria_criteria", evaluateMalaria)
	r.register("measles_criteria", activeInfectionRule("measles_active", "No active measles infection found"))
	r.register("meningitis_criteria", activeInfectionRule("meningitis_active", "No active meningitis infection found"))
	r.register("multiple_sclerosis_criteria", evaluateMultipleSclerosis)
	r.register("mumps_criteria", activeInfectionRule("mumps_active", "No active mumps infection found"))
	r.register("muscular_dystrophy_criteria", evaluateMuscularDystrophy)
	r.register("needle_stick_criteria", evaluateNeedleStick)
	r.register("non_tumor_related_shunts_criteria", evaluateNonTumorShunts)
	r.register("osteomyelitis_criteria", evaluateOsteomyelitis)
	r.register("perianal_condyloma_criteria", evaluatePerianalCondyloma)
	r.register("genitalia_piercing_criteria", evaluateGenitaliaPiercing)
	r.register("piercing_acupuncture_criteria", evaluatePiercingAcupuncture)
	r.register("prosthetic_implants_criteria", evaluateProstheticImplants)
	r.register("rabies_criteria", evaluateRabies)
	r.register("refused_blood_donor_criteria", evaluateRefusedBloodDonor)
	r.register("reyes_syndrome_criteria", evaluateReyesSyndrome)
	r.register("rheumatic_fever_criteria", evaluateRheumaticFever)
	r.register("rubella_criteria", activeInfectionRule("rubella_active", "No active rubella infection found"))
	r.register("std_sti_criteria", evaluateSTDSTI)
	r.register("smallpox_criteria", evaluateSmallpox)
	r.register("sirs_criteria", evaluateSIRS)
	r.register("tattoo_criteria", evaluateTattoo)
	r.register("transplant_criteria", evaluateTransplant)
	r.register("trauma_criteria", evaluateTrauma)
	r.register("travel_criteria", evaluateTravel)
	r.register("aatb_new_tb_criteria", evaluateAATBTB)
	r.register("typhus_criteria", activeInfectionRule("typhus_active", "No active typhus infection found"))
	r.register("us_military_criteria", evaluateUSMilitary)
}
