package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"consultor-integral/internal/backend"
	"consultor-integral/internal/recommend"
	"consultor-integral/internal/report"
	"consultor-integral/internal/util"
	"consultor-integral/internal/wizard"
)

// calculationJob tracks one outstanding bulk calculation.
type calculationJob struct {
	id        string
	sessionID string
	startedAt time.Time
}

func (s *Server) trackJob(sessionID string) *calculationJob {
	job := &calculationJob{
		id:        uuid.NewString(),
		sessionID: sessionID,
		startedAt: time.Now().UTC(),
	}
	s.jobMu.Lock()
	s.activeJobs[job.id] = job
	s.jobMu.Unlock()
	return job
}

func (s *Server) finishJob(job *calculationJob) {
	s.jobMu.Lock()
	delete(s.activeJobs, job.id)
	s.jobMu.Unlock()
}

// handleCalculate resolves the finished profile and runs the bulk consumption calculation.
// A calculator failure is answered in-band: 200 with the error and empty consumption.
func (s *Server) handleCalculate(c *gin.Context) {
	id, ctrl, ok := s.lookupSession(c)
	if !ok {
		return
	}
	profile, err := ctrl.BeginResolving()
	if err != nil {
		s.renderWizardError(c, err)
		return
	}

	job := s.trackJob(id)
	timer := util.StartTimer()
	defer func() {
		if r := recover(); r != nil {
			ctrl.CompleteResolving(nil, errors.New("calculation aborted"))
			s.sessions.save(id, ctrl)
			s.finishJob(job)
			panic(r)
		}
	}()

	s.commit(id, ctrl, SessionEvent{Type: EventCalculationStarted})

	consumption, calcErr := s.calculate(c.Request.Context(), ctrl, profile)
	ctrl.CompleteResolving(consumption, calcErr)
	s.finishJob(job)

	fields := logrus.Fields{
		"session":  id,
		"job":      job.id,
		"products": len(profile.Products),
		"segment":  profile.Segment,
		"traffic":  profile.TrafficLevel().String(),
		"duration": timer.Elapsed(),
	}
	event := SessionEvent{Type: EventCalculationFinished, DurationMs: timer.ElapsedMs()}
	if calcErr != nil {
		logrus.WithError(calcErr).WithFields(fields).Error("consumption calculation failed")
		event.Type = EventCalculationFailed
		event.Message = calcErr.Error()
	} else {
		logrus.WithFields(fields).Info("consumption calculated")
		event.Consumption = ctrl.Consumption()
	}
	s.commit(id, ctrl, event)

	c.JSON(http.StatusOK, s.recommendations(id, ctrl))
}

// calculate records the default reference of every product as the consultant's choice and
// asks the calculator for the monthly consumption with those references.
func (s *Server) calculate(ctx context.Context, ctrl *wizard.Controller, profile wizard.CompanyProfile) (recommend.ConsumptionResult, error) {
	defaults := recommend.DefaultReferences(s.catalog.Current(), profile.Products, profile.Segment, profile.TrafficLevel())
	chosen := make(map[string]string, len(defaults))
	for product, ref := range defaults {
		if ref != nil {
			chosen[product] = *ref
		}
	}
	ctrl.ReplaceReferences(chosen)

	if s.calculator == nil {
		return nil, backend.ErrNotConfigured
	}
	return s.calculator.Calculate(ctx, backend.CalculationRequest{
		CompanyData: backend.CompanyFromProfile(profile),
		Products:    append([]string{}, profile.Products...),
		References:  defaults,
	})
}

// handleRecalculate swaps one product's reference and recomputes its consumption. Errors are
// reported in-band; the reference is kept and the product is marked as failed.
func (s *Server) handleRecalculate(c *gin.Context) {
	id, ctrl, ok := s.lookupSession(c)
	if !ok {
		return
	}
	var req RecalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	product := strings.TrimSpace(req.Product)
	reference := strings.TrimSpace(req.Reference)
	if product == "" || reference == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("producto and referencia are required"))
		return
	}
	if ctrl.Phase() != wizard.PhaseDisplaying {
		s.renderWizardError(c, errNoResults)
		return
	}
	profile := ctrl.Profile()
	if !profile.HasProduct(product) {
		s.renderWizardError(c, fmt.Errorf("%w: %s", wizard.ErrUnknownProduct, product))
		return
	}

	resp := RecalculateResponse{Product: product, Reference: reference}
	timer := util.StartTimer()
	consumption, err := s.recalculate(c.Request.Context(), profile, product, reference)
	fields := logrus.Fields{
		"session":   id,
		"product":   product,
		"reference": reference,
		"duration":  timer.Elapsed(),
	}
	if err != nil {
		logrus.WithError(err).WithFields(fields).Error("consumption recalculation failed")
		if failErr := ctrl.FailConsumption(product, reference, err); failErr != nil {
			s.renderWizardError(c, failErr)
			return
		}
		resp.Error = err.Error()
		resp.Display = report.ConsumptionFailed
		s.commit(id, ctrl, SessionEvent{Type: EventReferenceSelected, Product: product, Reference: reference, Message: err.Error()})
		c.JSON(http.StatusOK, resp)
		return
	}

	if err := ctrl.SelectReference(product, reference); err != nil {
		s.renderWizardError(c, err)
		return
	}
	if err := ctrl.UpdateConsumption(product, consumption); err != nil {
		s.renderWizardError(c, err)
		return
	}
	logrus.WithFields(fields).Info("consumption recalculated")
	resp.Consumption = &consumption
	resp.Display = report.FormatConsumption(recommend.ConsumptionResult{product: consumption}, product, false)
	s.commit(id, ctrl, SessionEvent{
		Type:        EventConsumptionUpdated,
		Product:     product,
		Reference:   reference,
		Consumption: recommend.ConsumptionResult{product: consumption},
		DurationMs:  timer.ElapsedMs(),
	})
	c.JSON(http.StatusOK, resp)
}

func (s *Server) recalculate(ctx context.Context, profile wizard.CompanyProfile, product, reference string) (recommend.Consumption, error) {
	if s.calculator == nil {
		return recommend.Consumption{}, backend.ErrNotConfigured
	}
	return s.calculator.Recalculate(ctx, backend.RecalculationRequest{
		CompanyData: backend.CompanyFromProfile(profile),
		Product:     product,
		Reference:   reference,
	})
}
