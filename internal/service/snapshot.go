// Package service implements the evaluation pipeline: criterion
// evaluation, per-tissue aggregation, the evaluation trigger, and
// similarity-based outcome prediction.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/donor-eligibility-engine/internal/domain"
)

// SnapshotBuilder freezes a donor case into a parameter snapshot.
type SnapshotBuilder struct {
	donors      domain.DonorRepository
	labs        domain.LabResultRepository
	eligibility domain.EligibilityRepository
	log         *logrus.Logger
}

func NewSnapshotBuilder(donors domain.DonorRepository, labs domain.LabResultRepository,
	eligibility domain.EligibilityRepository, log *logrus.Logger) *SnapshotBuilder {
	return &SnapshotBuilder{donors: donors, labs: labs, eligibility: eligibility, log: log}
}

// Build assembles the snapshot from demographics, lab results grouped
// by category, and the critical findings recorded on the donor's
// eligibility decisions.
func (b *SnapshotBuilder) Build(ctx context.Context, donorID uuid.UUID) (*domain.ParameterSnapshot, error) {
	donor, err := b.donors.GetByID(ctx, donorID)
	if err != nil {
		return nil, err
	}

	labs, err := b.labs.ListByDonor(ctx, donorID)
	if err != nil {
		return nil, err
	}

	snapshot := &domain.ParameterSnapshot{
		Demographics: domain.DonorDemographics{
			Age:         donor.Age,
			Gender:      donor.Gender,
			DonorNumber: donor.DonorNumber,
		},
		CauseOfDeath:   donor.CauseOfDeath,
		TissueTypes:    donor.TissueTypes,
		MedicalHistory: donor.MedicalHistory,
		Timestamp:      time.Now().UTC(),
	}
	if donor.DateOfBirth != nil {
		snapshot.Demographics.DateOfBirth = donor.DateOfBirth.Format("2006-01-02")
	}

	for _, lr := range labs {
		line := fmt.Sprintf("%s = %s", lr.TestName, lr.ResultValue)
		switch lr.Category {
		case domain.TestSerology:
			snapshot.LabResults.Serology = append(snapshot.LabResults.Serology, line)
		case domain.TestCulture:
			snapshot.LabResults.Cultures = append(snapshot.LabResults.Cultures, line)
		default:
			snapshot.LabResults.Other = append(snapshot.LabResults.Other, line)
		}
	}

	snapshot.CriticalFindings = b.collectCriticalFindings(ctx, donorID)
	return snapshot, nil
}

// collectCriticalFindings gathers blocking and discretion criteria from
// both tissue decisions, deduplicated by criterion name. Missing
// eligibility rows are not an error; an undecided donor simply has no
// findings yet.
func (b *SnapshotBuilder) collectCriticalFindings(ctx context.Context, donorID uuid.UUID) []domain.CriterionRef {
	seen := make(map[string]bool)
	var findings []domain.CriterionRef

	for _, tissue := range []domain.TissueType{domain.MUSCULOSKELETAL, domain.SKIN} {
		rec, err := b.eligibility.Get(ctx, donorID, tissue)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				b.log.WithError(err).WithFields(logrus.Fields{
					"donor_id":    donorID,
					"tissue_type": tissue,
				}).Warn("Could not load eligibility for snapshot")
			}
			continue
		}
		for _, ref := range append(rec.BlockingCriteria, rec.DiscretionCriteria...) {
			if !seen[ref.Name] {
				seen[ref.Name] = true
				findings = append(findings, ref)
			}
		}
	}
	return findings
}

// SnapshotText renders a snapshot into the deterministic text form used
// for embedding generation. Field order is fixed so equal snapshots
// embed identically.
func SnapshotText(s *domain.ParameterSnapshot) string {
	var parts []string

	if s.Demographics.Age != nil {
		parts = append(parts, fmt.Sprintf("Age: %d", *s.Demographics.Age))
	}
	if s.Demographics.Gender != "" {
		parts = append(parts, fmt.Sprintf("Gender: %s", s.Demographics.Gender))
	}
	if s.CauseOfDeath != "" {
		parts = append(parts, fmt.Sprintf("Cause of Death: %s", s.CauseOfDeath))
	}
	if len(s.TissueTypes) > 0 {
		parts = append(parts, fmt.Sprintf("Tissue Types: %s", strings.Join(s.TissueTypes, ", ")))
	}
	if len(s.LabResults.Serology) > 0 {
		parts = append(parts, fmt.Sprintf("Serology: %s", strings.Join(s.LabResults.Serology, "; ")))
	}
	if len(s.LabResults.Cultures) > 0 {
		parts = append(parts, fmt.Sprintf("Culture: %s", strings.Join(s.LabResults.Cultures, "; ")))
	}
	if len(s.CriticalFindings) > 0 {
		names := make([]string, len(s.CriticalFindings))
		for i, f := range s.CriticalFindings {
			names[i] = f.Name
		}
		parts = append(parts, fmt.Sprintf("Critical Findings: %s", strings.Join(names, ", ")))
	}
	if len(s.MedicalHistory) > 0 {
		var history []string
		for _, category := range sortedKeys(s.MedicalHistory) {
			if s.MedicalHistory[category] != "" {
				history = append(history, fmt.Sprintf("%s: %s", category, s.MedicalHistory[category]))
			}
		}
		if len(history) > 0 {
			parts = append(parts, fmt.Sprintf("Medical History: %s", strings.Join(history, "; ")))
		}
	}

	return strings.Join(parts, ". ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
