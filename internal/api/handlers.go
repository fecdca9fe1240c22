package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/donor-eligibility-engine/internal/domain"
	"github.com/donor-eligibility-engine/internal/service"
)

func abortWithError(c *gin.Context, status int, code, message, details string) {
	requestID := c.GetString("request_id")
	c.AbortWithStatusJSON(status, gin.H{
		"error": domain.NewAPIError(code, message, details, requestID),
	})
}

func parseDonorID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
			"donor id must be a UUID", err.Error())
		return uuid.Nil, false
	}
	return id, true
}

type createDonorRequest struct {
	DonorNumber    string            `json:"donor_number" binding:"required"`
	Age            *int              `json:"age"`
	Gender         string            `json:"gender"`
	DateOfBirth    *time.Time        `json:"date_of_birth"`
	CauseOfDeath   string            `json:"cause_of_death"`
	TissueTypes    []string          `json:"tissue_types"`
	MedicalHistory map[string]string `json:"medical_history"`
}

func (s *Server) handleCreateDonor(c *gin.Context) {
	var req createDonorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
			"invalid donor payload", err.Error())
		return
	}

	donor := &domain.Donor{
		ID:             uuid.New(),
		DonorNumber:    req.DonorNumber,
		Age:            req.Age,
		Gender:         req.Gender,
		DateOfBirth:    req.DateOfBirth,
		CauseOfDeath:   req.CauseOfDeath,
		TissueTypes:    req.TissueTypes,
		MedicalHistory: req.MedicalHistory,
	}
	if err := donor.Validate(); err != nil {
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
			"donor validation failed", err.Error())
		return
	}

	if err := s.deps.Donors.Create(c.Request.Context(), donor); err != nil {
		s.deps.Log.WithError(err).Error("Donor creation failed")
		abortWithError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError,
			"could not create donor", "")
		return
	}
	c.JSON(http.StatusCreated, donor)
}

func (s *Server) handleGetDonor(c *gin.Context) {
	id, ok := parseDonorID(c)
	if !ok {
		return
	}

	donor, err := s.deps.Donors.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, domain.ErrCodeNotFound, "donor not found", "")
			return
		}
		s.deps.Log.WithError(err).Error("Donor lookup failed")
		abortWithError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError,
			"could not load donor", "")
		return
	}
	c.JSON(http.StatusOK, donor)
}

func (s *Server) handleUpdateDonor(c *gin.Context) {
	id, ok := parseDonorID(c)
	if !ok {
		return
	}

	var req createDonorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
			"invalid donor payload", err.Error())
		return
	}

	donor := &domain.Donor{
		ID:             id,
		DonorNumber:    req.DonorNumber,
		Age:            req.Age,
		Gender:         req.Gender,
		DateOfBirth:    req.DateOfBirth,
		CauseOfDeath:   req.CauseOfDeath,
		TissueTypes:    req.TissueTypes,
		MedicalHistory: req.MedicalHistory,
	}
	if err := donor.Validate(); err != nil {
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
			"donor validation failed", err.Error())
		return
	}

	if err := s.deps.Donors.Update(c.Request.Context(), donor); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, domain.ErrCodeNotFound, "donor not found", "")
			return
		}
		s.deps.Log.WithError(err).Error("Donor update failed")
		abortWithError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError,
			"could not update donor", "")
		return
	}
	c.JSON(http.StatusOK, donor)
}

type registerDocumentRequest struct {
	FileName string `json:"file_name" binding:"required"`
}

// handleRegisterDocument records an uploaded document in UPLOADED state;
// the worker pool picks it up from there.
func (s *Server) handleRegisterDocument(c *gin.Context) {
	donorID, ok := parseDonorID(c)
	if !ok {
		return
	}

	var req registerDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
			"invalid document payload", err.Error())
		return
	}

	if _, err := s.deps.Donors.GetByID(c.Request.Context(), donorID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, domain.ErrCodeNotFound, "donor not found", "")
			return
		}
		abortWithError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError,
			"could not load donor", "")
		return
	}

	doc := &domain.Document{
		ID:       uuid.New(),
		DonorID:  donorID,
		FileName: req.FileName,
		Status:   domain.DocumentUploaded,
	}
	if err := s.deps.Documents.Create(c.Request.Context(), doc); err != nil {
		s.deps.Log.WithError(err).Error("Document registration failed")
		abortWithError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError,
			"could not register document", "")
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(c *gin.Context) {
	donorID, ok := parseDonorID(c)
	if !ok {
		return
	}

	docs, err := s.deps.Documents.ListByDonor(c.Request.Context(), donorID)
	if err != nil {
		s.deps.Log.WithError(err).Error("Document listing failed")
		abortWithError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError,
			"could not list documents", "")
		return
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// handleEvaluate forces a full evaluation run for the donor, regardless
// of document readiness. Operators use it to re-run after manual data
// corrections. The run goes through the same per-donor lock as the
// automatic trigger so a concurrent trigger or sweep cannot interleave.
func (s *Server) handleEvaluate(c *gin.Context) {
	donorID, ok := parseDonorID(c)
	if !ok {
		return
	}

	if err := s.deps.Trigger.EvaluateNow(c.Request.Context(), donorID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, domain.ErrCodeNotFound, "donor not found", "")
			return
		}
		if errors.Is(err, domain.ErrEvaluationInProgress) {
			abortWithError(c, http.StatusConflict, domain.ErrCodeEvaluation,
				"evaluation already running for this donor, retry later", "")
			return
		}
		s.deps.Log.WithError(err).WithField("donor_id", donorID).Error("Evaluation run failed")
		if s.deps.Metrics != nil {
			s.deps.Metrics.EvaluationRun("error")
		}
		abortWithError(c, http.StatusInternalServerError, domain.ErrCodeEvaluation,
			"evaluation failed", "")
		return
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.EvaluationRun("ok")
	}
	c.JSON(http.StatusOK, gin.H{"donor_id": donorID, "evaluated": true})
}

func (s *Server) handleGetEligibility(c *gin.Context) {
	donorID, ok := parseDonorID(c)
	if !ok {
		return
	}

	tissue := domain.TissueType(c.Param("tissue"))
	if tissue != domain.MUSCULOSKELETAL && tissue != domain.SKIN {
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
			"tissue must be musculoskeletal or skin", "")
		return
	}

	record, err := s.deps.Evaluator.Eligibility(c.Request.Context(), donorID, tissue)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, domain.ErrCodeNotFound,
				"no eligibility decision for donor and tissue", "")
			return
		}
		s.deps.Log.WithError(err).Error("Eligibility lookup failed")
		abortWithError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError,
			"could not load eligibility", "")
		return
	}
	c.JSON(http.StatusOK, record)
}

type recordDecisionRequest struct {
	Outcome domain.AnchorOutcome `json:"outcome" binding:"required"`
	Source  domain.OutcomeSource `json:"source"`
}

func (s *Server) handleRecordDecision(c *gin.Context) {
	donorID, ok := parseDonorID(c)
	if !ok {
		return
	}

	var req recordDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
			"invalid decision payload", err.Error())
		return
	}
	if !req.Outcome.IsValid() {
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
			"outcome must be ACCEPTED or REJECTED", "")
		return
	}
	if req.Source == "" {
		req.Source = domain.SourceManualApproval
	}
	if !req.Source.IsValid() {
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
			"invalid outcome source", "")
		return
	}

	decision, err := s.deps.Predictor.RecordDecision(c.Request.Context(), donorID, req.Outcome, req.Source)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, domain.ErrCodeNotFound, "donor not found", "")
			return
		}
		s.deps.Log.WithError(err).Error("Recording decision failed")
		abortWithError(c, http.StatusInternalServerError, domain.ErrCodeInternalServer,
			"could not record decision", "")
		return
	}
	c.JSON(http.StatusCreated, decision)
}

func (s *Server) handlePredict(c *gin.Context) {
	donorID, ok := parseDonorID(c)
	if !ok {
		return
	}

	var threshold float64
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 || parsed > 1 {
			abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
				"threshold must be a number in (0, 1]", "")
			return
		}
		threshold = parsed
	}
	maxCases := 0
	if raw := c.Query("max_cases"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
				"max_cases must be an integer between 1 and 100", "")
			return
		}
		maxCases = parsed
	}

	result, err := s.deps.Predictor.PredictOutcome(c.Request.Context(), donorID, threshold, maxCases)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, domain.ErrCodeNotFound, "donor not found", "")
			return
		}
		s.deps.Log.WithError(err).Error("Prediction failed")
		if s.deps.Metrics != nil {
			s.deps.Metrics.PredictionRequest("error")
		}
		abortWithError(c, http.StatusBadGateway, domain.ErrCodeExternalAPI,
			"prediction unavailable", "")
		return
	}

	if s.deps.Metrics != nil {
		if result.Outcome != nil {
			s.deps.Metrics.PredictionRequest("predicted")
		} else {
			s.deps.Metrics.PredictionRequest("inconclusive")
		}
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleFindSimilar(c *gin.Context) {
	donorID, ok := parseDonorID(c)
	if !ok {
		return
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
				"limit must be an integer between 1 and 100", "")
			return
		}
		limit = parsed
	}

	matches, err := s.deps.Predictor.FindSimilarByCriteria(c.Request.Context(), donorID, limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, domain.ErrCodeNotFound, "donor not found", "")
			return
		}
		s.deps.Log.WithError(err).Error("Criteria similarity search failed")
		abortWithError(c, http.StatusInternalServerError, domain.ErrCodeInternalServer,
			"could not search similar cases", "")
		return
	}
	if matches == nil {
		matches = []service.CriteriaMatch{}
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}
