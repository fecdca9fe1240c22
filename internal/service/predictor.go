package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/donor-eligibility-engine/internal/anchor"
	"github.com/donor-eligibility-engine/internal/domain"
)

// criteriaMatchWeight is the score each matched structured criterion
// contributes in the fallback matcher (age range, gender, cause of
// death, tissue type).
const criteriaMatchWeight = 0.2

// CriteriaMatch is one structured-matching result from the fallback
// similarity path.
type CriteriaMatch struct {
	DonorID  uuid.UUID                `json:"donor_id"`
	Outcome  domain.AnchorOutcome     `json:"outcome"`
	Score    float64                  `json:"score"`
	Matches  map[string]bool          `json:"match_details"`
	Snapshot domain.ParameterSnapshot `json:"parameter_snapshot"`
}

// Predictor records anchor decisions and predicts outcomes for
// undecided donors from their nearest anchor neighbors.
type Predictor struct {
	snapshots *SnapshotBuilder
	anchors   anchor.Store
	embedder  domain.Embedder
	cfg       domain.PredictorConfig
	log       *logrus.Logger
}

func NewPredictor(snapshots *SnapshotBuilder, anchors anchor.Store, embedder domain.Embedder,
	cfg domain.PredictorConfig, log *logrus.Logger) *Predictor {
	return &Predictor{snapshots: snapshots, anchors: anchors, embedder: embedder, cfg: cfg, log: log}
}

// RecordDecision freezes the donor's current state into a snapshot and
// stores it as an anchor decision. An embedding failure does not lose
// the decision: the anchor row is stored without a vector and stays out
// of similarity search until re-recorded.
func (p *Predictor) RecordDecision(ctx context.Context, donorID uuid.UUID, outcome domain.AnchorOutcome, source domain.OutcomeSource) (*domain.AnchorDecision, error) {
	snapshot, err := p.snapshots.Build(ctx, donorID)
	if err != nil {
		return nil, err
	}

	decision := &domain.AnchorDecision{
		DonorID:       donorID,
		Outcome:       outcome,
		Source:        source,
		Snapshot:      *snapshot,
		ThresholdUsed: p.cfg.SimilarityThreshold,
	}

	embedding, err := p.embedder.Embed(ctx, SnapshotText(snapshot))
	if err != nil {
		p.log.WithError(err).WithField("donor_id", donorID).Warn("Embedding failed, storing anchor without vector")
	} else {
		decision.Embedding = embedding
	}

	if err := p.anchors.Upsert(ctx, decision); err != nil {
		return nil, err
	}
	return decision, nil
}

// PredictOutcome runs similarity-weighted voting over anchor neighbors
// at or above the threshold. Callers may override the configured
// threshold and case limit; zero values fall back to config. A nil
// Outcome in the result means no prediction could be made; that is an
// answer, not an error, and an unreachable embedder is the same answer.
func (p *Predictor) PredictOutcome(ctx context.Context, donorID uuid.UUID, threshold float64, maxCases int) (*domain.PredictionResult, error) {
	if threshold <= 0 {
		threshold = p.cfg.SimilarityThreshold
	}
	if maxCases <= 0 {
		maxCases = p.cfg.MaxCases
	}

	snapshot, err := p.snapshots.Build(ctx, donorID)
	if err != nil {
		return nil, err
	}

	embedding, err := p.embedder.Embed(ctx, SnapshotText(snapshot))
	if err != nil {
		p.log.WithError(err).WithField("donor_id", donorID).Warn("Embedding failed, no prediction possible")
		return &domain.PredictionResult{
			Reasoning: "Could not generate embedding for prediction",
		}, nil
	}

	cases, err := p.anchors.SearchSimilar(ctx, embedding, maxCases, threshold)
	if err != nil {
		return nil, fmt.Errorf("searching similar cases: %w", err)
	}
	if len(cases) == 0 {
		return &domain.PredictionResult{
			Reasoning: fmt.Sprintf("No similar cases found with similarity >= %.2f", threshold),
		}, nil
	}

	var acceptedWeight, rejectedWeight float64
	for _, c := range cases {
		switch c.Outcome {
		case domain.OutcomeAccepted:
			acceptedWeight += c.Similarity
		case domain.OutcomeRejected:
			rejectedWeight += c.Similarity
		}
	}

	totalWeight := acceptedWeight + rejectedWeight
	if totalWeight == 0 || acceptedWeight == rejectedWeight {
		return &domain.PredictionResult{
			SimilarCases: cases,
			Reasoning:    "Similar cases found but votes are inconclusive",
		}, nil
	}

	outcome := domain.OutcomeAccepted
	if rejectedWeight > acceptedWeight {
		outcome = domain.OutcomeRejected
	}
	confidence := (acceptedWeight - rejectedWeight) / totalWeight
	if confidence < 0 {
		confidence = -confidence
	}

	result := &domain.PredictionResult{
		Outcome:      &outcome,
		Confidence:   confidence,
		SimilarCases: cases,
		Reasoning: fmt.Sprintf("Based on %d similar cases. Weighted votes: Accepted=%.2f, Rejected=%.2f. Confidence: %.1f%%",
			len(cases), acceptedWeight, rejectedWeight, confidence*100),
	}

	p.log.WithFields(logrus.Fields{
		"donor_id":   donorID,
		"outcome":    outcome,
		"confidence": confidence,
		"cases":      len(cases),
	}).Info("Outcome predicted")
	return result, nil
}

// FindSimilarByCriteria is the structured fallback when no embedding is
// available: anchors are scored on age range (plus or minus 5 years),
// gender, cause-of-death substring, and tissue type overlap.
func (p *Predictor) FindSimilarByCriteria(ctx context.Context, donorID uuid.UUID, limit int) ([]CriteriaMatch, error) {
	snapshot, err := p.snapshots.Build(ctx, donorID)
	if err != nil {
		return nil, err
	}

	decisions, err := p.anchors.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing anchor decisions: %w", err)
	}

	var matches []CriteriaMatch
	for _, d := range decisions {
		if d.DonorID == donorID {
			continue
		}
		score, details := scoreCriteria(snapshot, &d.Snapshot)
		if score > 0 {
			matches = append(matches, CriteriaMatch{
				DonorID:  d.DonorID,
				Outcome:  d.Outcome,
				Score:    score,
				Matches:  details,
				Snapshot: d.Snapshot,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func scoreCriteria(query, candidate *domain.ParameterSnapshot) (float64, map[string]bool) {
	score := 0.0
	details := make(map[string]bool)

	if query.Demographics.Age != nil && candidate.Demographics.Age != nil {
		diff := *query.Demographics.Age - *candidate.Demographics.Age
		if diff >= -5 && diff <= 5 {
			score += criteriaMatchWeight
			details["age_match"] = true
		}
	}
	if query.Demographics.Gender != "" &&
		strings.EqualFold(query.Demographics.Gender, candidate.Demographics.Gender) {
		score += criteriaMatchWeight
		details["gender_match"] = true
	}
	if query.CauseOfDeath != "" && candidate.CauseOfDeath != "" &&
		strings.Contains(strings.ToLower(candidate.CauseOfDeath), strings.ToLower(query.CauseOfDeath)) {
		score += criteriaMatchWeight
		details["cause_of_death_match"] = true
	}
	if len(query.TissueTypes) > 0 {
	outer:
		for _, qt := range query.TissueTypes {
			for _, ct := range candidate.TissueTypes {
				if strings.EqualFold(qt, ct) {
					score += criteriaMatchWeight
					details["tissue_type_match"] = true
					break outer
				}
			}
		}
	}
	return score, details
}
