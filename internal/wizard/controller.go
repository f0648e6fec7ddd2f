package wizard

import (
	"fmt"
	"sync"
	"time"

	"consultor-integral/internal/recommend"
)

// Phase is the coarse state of a wizard session.
type Phase string

const (
	PhaseCollecting Phase = "collecting"
	PhaseResolving  Phase = "resolving"
	PhaseDisplaying Phase = "displaying"
)

// Controller owns one consultant's questionnaire state. It is safe for concurrent use.
type Controller struct {
	mu          sync.Mutex
	phase       Phase
	step        int
	validated   []bool
	profile     CompanyProfile
	consumption recommend.ConsumptionResult
	calcErr     string
	failures    map[string]string
	updatedAt   time.Time
}

// Snapshot is the serialisable view of a controller.
type Snapshot struct {
	Phase            Phase                       `json:"phase"`
	Step             int                         `json:"step"`
	StepID           string                      `json:"step_id"`
	Ready            bool                        `json:"ready"`
	Profile          CompanyProfile              `json:"profile"`
	Consumption      recommend.ConsumptionResult `json:"consumption,omitempty"`
	CalculationError string                      `json:"calculation_error,omitempty"`
	Failures         map[string]string           `json:"failures,omitempty"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

// NewController starts a session at the first step with an empty profile.
func NewController() *Controller {
	c := &Controller{}
	c.reset()
	return c
}

func (c *Controller) reset() {
	c.phase = PhaseCollecting
	c.step = 0
	c.validated = make([]bool, len(Steps))
	c.profile = CompanyProfile{}
	c.consumption = nil
	c.calcErr = ""
	c.failures = nil
	c.touch()
}

func (c *Controller) touch() {
	c.updatedAt = time.Now().UTC()
}

// Submit validates the current step's input and advances. On the last step the profile
// becomes ready and the controller waits for BeginResolving.
func (c *Controller) Submit(input StepInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseCollecting {
		return ErrNotCollecting
	}
	stepID := Steps[c.step].ID
	updated, err := ApplyStep(stepID, input, c.profile)
	if err != nil {
		return err
	}
	c.profile = updated
	c.validated[c.step] = true
	if c.step < len(Steps)-1 {
		c.step++
	}
	c.touch()
	return nil
}

// Back moves one step backwards. From the results view it returns to the last step with the
// profile intact.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.phase {
	case PhaseResolving:
		return ErrCalculationInFlight
	case PhaseDisplaying:
		c.phase = PhaseCollecting
		c.step = len(Steps) - 1
		c.consumption = nil
		c.calcErr = ""
		c.failures = nil
	default:
		if c.step > 0 {
			c.step--
		}
	}
	c.touch()
	return nil
}

// BeginResolving moves a complete profile into the resolving phase and hands out a copy of
// it. Only one calculation may be outstanding at a time.
func (c *Controller) BeginResolving() (CompanyProfile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == PhaseResolving {
		return CompanyProfile{}, ErrCalculationInFlight
	}
	if !c.readyLocked() {
		return CompanyProfile{}, ErrProfileIncomplete
	}
	c.phase = PhaseResolving
	c.calcErr = ""
	c.touch()
	return c.profile.Clone(), nil
}

// CompleteResolving records the calculation outcome and always moves to the results view.
// A failed calculation leaves the consumption data empty.
func (c *Controller) CompleteResolving(result recommend.ConsumptionResult, calcErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseResolving {
		return
	}
	c.phase = PhaseDisplaying
	c.failures = nil
	if calcErr != nil {
		c.consumption = recommend.ConsumptionResult{}
		c.calcErr = calcErr.Error()
	} else {
		c.consumption = copyConsumption(result)
		c.calcErr = ""
	}
	c.touch()
}

// Restart clears the profile and returns to the first step.
func (c *Controller) Restart() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == PhaseResolving {
		return ErrCalculationInFlight
	}
	c.reset()
	return nil
}

// SelectReference records the consultant's choice of reference for a selected product.
func (c *Controller) SelectReference(product, reference string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.profile.HasProduct(product) {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, product)
	}
	if c.profile.SelectedReferences == nil {
		c.profile.SelectedReferences = make(map[string]string)
	}
	c.profile.SelectedReferences[product] = reference
	c.touch()
	return nil
}

// ReplaceReferences swaps every reference choice at once. Products that are not selected are
// ignored.
func (c *Controller) ReplaceReferences(refs map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]string, len(refs))
	for product, ref := range refs {
		if ref != "" && c.profile.HasProduct(product) {
			out[product] = ref
		}
	}
	c.profile.SelectedReferences = out
	c.touch()
}

// UpdateConsumption replaces one product's consumption after a single-product recalculation.
func (c *Controller) UpdateConsumption(product string, consumption recommend.Consumption) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.profile.HasProduct(product) {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, product)
	}
	if c.consumption == nil {
		c.consumption = recommend.ConsumptionResult{}
	}
	c.consumption[product] = consumption
	delete(c.failures, product)
	c.touch()
	return nil
}

// FailConsumption records a failed single-product recalculation. The reference stays chosen
// and the product's previous consumption is dropped, so it reports the failure instead of a
// figure computed for another reference.
func (c *Controller) FailConsumption(product, reference string, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.profile.HasProduct(product) {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, product)
	}
	if c.profile.SelectedReferences == nil {
		c.profile.SelectedReferences = make(map[string]string)
	}
	c.profile.SelectedReferences[product] = reference
	delete(c.consumption, product)
	if c.failures == nil {
		c.failures = make(map[string]string)
	}
	message := "recalculation failed"
	if err != nil {
		message = err.Error()
	}
	c.failures[product] = message
	c.touch()
	return nil
}

// Failures returns the products whose last recalculation failed, with the error message.
func (c *Controller) Failures() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyFailures(c.failures)
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Profile returns a copy of the profile collected so far.
func (c *Controller) Profile() CompanyProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile.Clone()
}

// Consumption returns a copy of the latest calculation result.
func (c *Controller) Consumption() recommend.ConsumptionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyConsumption(c.consumption)
}

// Ready reports whether every step has been validated.
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyLocked()
}

func (c *Controller) readyLocked() bool {
	for _, ok := range c.validated {
		if !ok {
			return false
		}
	}
	return true
}

// Snapshot captures the controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Phase:            c.phase,
		Step:             c.step,
		StepID:           Steps[c.step].ID,
		Ready:            c.readyLocked(),
		Profile:          c.profile.Clone(),
		Consumption:      copyConsumption(c.consumption),
		CalculationError: c.calcErr,
		Failures:         copyFailures(c.failures),
		UpdatedAt:        c.updatedAt,
	}
}

// Restore rebuilds a controller from a snapshot. The step id wins over the stored index when
// both are present. A snapshot taken mid-calculation comes back on the last step, ready to
// calculate again.
func Restore(s Snapshot) *Controller {
	c := NewController()
	c.profile = s.Profile.Clone()
	c.phase = s.Phase
	c.step = s.Step
	if idx := StepIndex(s.StepID); idx >= 0 {
		c.step = idx
	}
	if c.step < 0 || c.step >= len(Steps) {
		c.step = 0
	}
	for i := range c.validated {
		c.validated[i] = s.Ready || i < c.step
	}
	c.consumption = copyConsumption(s.Consumption)
	c.calcErr = s.CalculationError
	c.failures = copyFailures(s.Failures)
	switch c.phase {
	case PhaseResolving:
		c.phase = PhaseCollecting
		c.step = len(Steps) - 1
	case PhaseDisplaying, PhaseCollecting:
	default:
		c.phase = PhaseCollecting
	}
	if !s.UpdatedAt.IsZero() {
		c.updatedAt = s.UpdatedAt
	}
	return c
}

func copyFailures(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyConsumption(in recommend.ConsumptionResult) recommend.ConsumptionResult {
	if in == nil {
		return nil
	}
	out := make(recommend.ConsumptionResult, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
