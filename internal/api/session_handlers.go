package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"consultor-integral/internal/recommend"
	"consultor-integral/internal/report"
	"consultor-integral/internal/store"
	"consultor-integral/internal/wizard"
)

var errNoResults = errors.New("session has no results yet")

func (s *Server) handleCreateSession(c *gin.Context) {
	id, ctrl, err := s.sessions.create()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	logrus.WithField("session", id).Info("wizard session created")
	c.JSON(http.StatusCreated, s.sessionResponse(id, ctrl))
}

func (s *Server) handleGetSession(c *gin.Context) {
	id, ctrl, ok := s.lookupSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.sessionResponse(id, ctrl))
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	id, ctrl, ok := s.lookupSession(c)
	if !ok {
		return
	}
	if ctrl.Phase() == wizard.PhaseResolving {
		s.renderWizardError(c, wizard.ErrCalculationInFlight)
		return
	}
	if err := s.sessions.remove(id); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	s.notifier.Forget(id)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleSubmitStep(c *gin.Context) {
	id, ctrl, ok := s.lookupSession(c)
	if !ok {
		return
	}
	var input wizard.StepInput
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if err := ctrl.Submit(input); err != nil {
		s.renderWizardError(c, err)
		return
	}
	s.commit(id, ctrl, SessionEvent{Type: EventStep})
	c.JSON(http.StatusOK, s.sessionResponse(id, ctrl))
}

func (s *Server) handleBack(c *gin.Context) {
	id, ctrl, ok := s.lookupSession(c)
	if !ok {
		return
	}
	if err := ctrl.Back(); err != nil {
		s.renderWizardError(c, err)
		return
	}
	s.commit(id, ctrl, SessionEvent{Type: EventStep})
	c.JSON(http.StatusOK, s.sessionResponse(id, ctrl))
}

func (s *Server) handleRestart(c *gin.Context) {
	id, ctrl, ok := s.lookupSession(c)
	if !ok {
		return
	}
	if err := ctrl.Restart(); err != nil {
		s.renderWizardError(c, err)
		return
	}
	s.commit(id, ctrl, SessionEvent{Type: EventRestarted})
	c.JSON(http.StatusOK, s.sessionResponse(id, ctrl))
}

func (s *Server) handleRecommendations(c *gin.Context) {
	id, ctrl, ok := s.lookupSession(c)
	if !ok {
		return
	}
	if !ctrl.Ready() {
		s.renderWizardError(c, wizard.ErrProfileIncomplete)
		return
	}
	c.JSON(http.StatusOK, s.recommendations(id, ctrl))
}

func (s *Server) recommendations(id string, ctrl *wizard.Controller) RecommendationsResponse {
	snapshot := ctrl.Snapshot()
	profile := snapshot.Profile
	current := s.catalog.Current()
	consumption := snapshot.Consumption
	if consumption == nil {
		consumption = recommend.ConsumptionResult{}
	}
	return RecommendationsResponse{
		SessionID:   id,
		Phase:       snapshot.Phase,
		Report:      s.buildView(snapshot),
		Products:    recommend.Resolve(current, profile.Products, profile.Segment, profile.TrafficLevel()),
		Consumption: consumption,
		Failures:    snapshot.Failures,
		Error:       snapshot.CalculationError,
	}
}

func (s *Server) buildView(snapshot wizard.Snapshot) report.View {
	return report.BuildView(snapshot.Profile, s.catalog.Current(), snapshot.Consumption, snapshot.CalculationError,
		report.Options{ImageBasePath: s.imageBasePath, Failed: snapshot.Failures})
}

func (s *Server) handleReferenceOptions(c *gin.Context) {
	_, ctrl, ok := s.lookupSession(c)
	if !ok {
		return
	}
	product := strings.TrimSpace(c.Param("product"))
	profile := ctrl.Profile()
	if !profile.HasProduct(product) {
		s.renderWizardError(c, fmt.Errorf("%w: %s", wizard.ErrUnknownProduct, product))
		return
	}

	refs, err := s.catalog.References(c.Request.Context(), product)
	if err != nil {
		logrus.WithError(err).WithField("product", product).Warn("list product references")
		s.renderError(c, http.StatusBadGateway, err)
		return
	}

	previous := recommend.ChosenReference(profile.SelectedReferences, ctrl.Consumption(), product)
	options := recommend.SelectReferences(s.catalog.Current(), product, profile.Segment, profile.TrafficLevel(), refs, previous)
	current := strings.TrimSpace(c.Query("selected"))
	options = recommend.MarkSelected(options, current)
	if current == "" {
		current = previous
	}
	c.JSON(http.StatusOK, ReferenceOptionsResponse{Product: product, Current: current, Options: options})
}

func (s *Server) handleSelectReference(c *gin.Context) {
	id, ctrl, ok := s.lookupSession(c)
	if !ok {
		return
	}
	product := strings.TrimSpace(c.Param("product"))
	var req SelectReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("referencia is required"))
		return
	}
	if err := ctrl.SelectReference(product, reference); err != nil {
		s.renderWizardError(c, err)
		return
	}
	s.commit(id, ctrl, SessionEvent{Type: EventReferenceSelected, Product: product, Reference: reference})
	c.JSON(http.StatusOK, s.sessionResponse(id, ctrl))
}

func (s *Server) handleSaveReport(c *gin.Context) {
	id, ctrl, ok := s.lookupSession(c)
	if !ok {
		return
	}
	if ctrl.Phase() != wizard.PhaseDisplaying {
		s.renderWizardError(c, errNoResults)
		return
	}
	c.JSON(http.StatusOK, s.savePortfolio(c.Request.Context(), id, ctrl))
}

// savePortfolio stores the consultation locally and forwards it to the calculator. Failures
// are logged and reported, never fatal.
func (s *Server) savePortfolio(ctx context.Context, id string, ctrl *wizard.Controller) SaveReportResponse {
	record := report.BuildPortfolioRecord(ctrl.Profile(), ctrl.Consumption())
	resp := SaveReportResponse{Record: record}

	if err := s.db.SavePortfolio(record.Model(id)); err != nil {
		logrus.WithError(err).WithField("session", id).Warn("save portfolio locally")
		resp.Errors = append(resp.Errors, err.Error())
	} else {
		resp.SavedLocal = true
	}

	if s.calculator != nil {
		if err := s.calculator.SavePortfolio(ctx, record); err != nil {
			logrus.WithError(err).WithField("session", id).Warn("forward portfolio to calculator")
			resp.Errors = append(resp.Errors, err.Error())
		} else {
			resp.SavedRemote = true
		}
	}
	return resp
}

func (s *Server) handleReportHTML(c *gin.Context) {
	_, ctrl, ok := s.lookupSession(c)
	if !ok {
		return
	}
	snapshot := ctrl.Snapshot()
	if snapshot.Phase != wizard.PhaseDisplaying {
		s.renderWizardError(c, errNoResults)
		return
	}
	html, err := report.RenderString(s.buildView(snapshot))
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (s *Server) handleReportPDF(c *gin.Context) {
	id, ctrl, ok := s.lookupSession(c)
	if !ok {
		return
	}
	if ctrl.Phase() != wizard.PhaseDisplaying {
		s.renderWizardError(c, errNoResults)
		return
	}
	if s.pdf == nil {
		s.renderError(c, http.StatusServiceUnavailable, errors.New("pdf export disabled"))
		return
	}

	saved := s.savePortfolio(c.Request.Context(), id, ctrl)
	renderURL := s.reportBaseURL + "/api/sessions/" + url.PathEscape(id) + "/report.html"

	start := time.Now()
	pdf, err := s.pdf.PrintURL(c.Request.Context(), renderURL)
	if err != nil {
		logrus.WithError(err).WithField("session", id).Error("print report pdf")
		s.renderError(c, http.StatusBadGateway, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"session":     id,
		"bytes":       len(pdf),
		"duration":    time.Since(start),
		"saved_local": saved.SavedLocal,
	}).Info("report pdf exported")

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="recomendaciones-%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (s *Server) handleSessionStream(c *gin.Context) {
	id, _, ok := s.lookupSession(c)
	if !ok {
		return
	}
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(id, conn)
	logrus.WithFields(logrus.Fields{
		"session": id,
		"remote":  conn.RemoteAddr().String(),
	}).Info("session websocket connected")
	defer s.notifier.Unregister(id, client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("session", id).Info("session websocket closed")
			} else {
				logrus.WithError(err).Warn("session websocket unexpected close")
			}
			break
		}
	}
}

// lookupSession resolves the :id parameter, rendering 404 when it is unknown.
func (s *Server) lookupSession(c *gin.Context) (string, *wizard.Controller, bool) {
	id := strings.TrimSpace(c.Param("id"))
	ctrl, err := s.sessions.get(id)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("session %s not found", id))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return "", nil, false
	}
	return id, ctrl, true
}

// commit persists the session and pushes the event to its listeners.
func (s *Server) commit(id string, ctrl *wizard.Controller, event SessionEvent) {
	s.sessions.save(id, ctrl)
	snapshot := ctrl.Snapshot()
	event.SessionID = id
	event.Phase = snapshot.Phase
	event.Step = snapshot.Step
	event.StepID = snapshot.StepID
	s.notifier.Broadcast(event)
}

func (s *Server) renderWizardError(c *gin.Context, err error) {
	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": verr.Message,
			"step":  verr.Step,
			"field": verr.Field,
		})
	case errors.Is(err, wizard.ErrCalculationInFlight),
		errors.Is(err, wizard.ErrNotCollecting),
		errors.Is(err, wizard.ErrProfileIncomplete),
		errors.Is(err, errNoResults):
		s.renderError(c, http.StatusConflict, err)
	case errors.Is(err, wizard.ErrUnknownProduct):
		s.renderError(c, http.StatusNotFound, err)
	default:
		s.renderError(c, http.StatusBadRequest, err)
	}
}

func (s *Server) sessionResponse(id string, ctrl *wizard.Controller) SessionResponse {
	snapshot := ctrl.Snapshot()
	return SessionResponse{
		ID:        id,
		Snapshot:  snapshot,
		Current:   wizard.Steps[snapshot.Step],
		LastEvent: s.notifier.LastStatus(id),
	}
}
