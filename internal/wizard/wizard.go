// Package wizard implements the multi-step quotation wizard: a named
// step machine over a single accumulated form draft, with query-style
// resumability and durable scratch state.
package wizard

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BITS-DEVSEC/im-client/internal/catalog"
	"github.com/BITS-DEVSEC/im-client/internal/nav"
)

var (
	ErrUnknownInsuranceType = errors.New("insurance type not found in catalog")
	ErrUnknownCoverageType  = errors.New("coverage type not found in catalog")
)

// Persister is the draft persistence protocol the wizard calls at its
// checkpoints.
type Persister interface {
	// Submit saves the draft (isDraft=true) or submits it as final,
	// returning the backend record id.
	Submit(ctx context.Context, draft *FormDraft, isDraft bool) (int, error)
	// Rehydrate fetches a saved record and re-derives a flat draft.
	Rehydrate(ctx context.Context, id int) (*FormDraft, error)
}

type Wizard struct {
	step  Step
	draft *FormDraft

	catalog   *catalog.Loader
	persister Persister
	route     RouteState
	scratch   ScratchStore
	navigator nav.Navigator
	log       *zap.SugaredLogger
}

func New(cat *catalog.Loader, persister Persister, route RouteState, scratch ScratchStore, navigator nav.Navigator, log *zap.SugaredLogger) *Wizard {
	return &Wizard{
		step:      StepInsuranceCategory,
		draft:     NewFormDraft(),
		catalog:   cat,
		persister: persister,
		route:     route,
		scratch:   scratch,
		navigator: navigator,
		log:       log,
	}
}

func (w *Wizard) Step() Step {
	return w.step
}

// Draft exposes the accumulated form state. The wizard is the sole
// writer; callers treat it as read-only.
func (w *Wizard) Draft() *FormDraft {
	return w.draft
}

// Resume reconstructs the wizard from the route values: the step name
// (falling back to the first step when absent or unrecognized) and,
// when a draftId is present, the rehydrated backend draft. Without a
// draft id, the durable scratch copy is restored.
func (w *Wizard) Resume(ctx context.Context) {
	vals := w.route.Read()
	step, ok := ParseStep(vals.Get("step"))
	if !ok || step == StepInsuranceCategory {
		w.transitionTo(StepInsuranceCategory)
		return
	}

	if id, err := strconv.Atoi(vals.Get("draftId")); err == nil && id > 0 {
		draft, err := w.persister.Rehydrate(ctx, id)
		if err != nil {
			w.log.Warnw("draft rehydration failed", "draftId", id, "err", err)
			w.transitionTo(StepInsuranceCategory)
			return
		}
		w.draft = draft
		w.step = step
		w.afterTransition()
		return
	}

	if saved, ok, err := w.scratch.Load(); err == nil && ok {
		w.draft = saved
	} else if err != nil {
		w.log.Warnw("scratch load failed", "err", err)
	}
	w.step = step
	w.afterTransition()
}

// Back moves to the step's fixed predecessor.
func (w *Wizard) Back() {
	w.transitionTo(BackOf(w.step))
}

// SelectCategory handles the first step. Motor always routes into the
// motor sub-graph; Home and Life resolve the catalog entry by
// case-insensitive name and fail closed when no match exists.
func (w *Wizard) SelectCategory(name string) error {
	switch strings.ToLower(name) {
	case "motor":
		if t, ok := w.catalog.FindByName(name); ok {
			w.draft.InsuranceTypeID = t.ID
		}
		w.transitionTo(StepMotorInsuranceType)
		return nil
	case "home":
		t, ok := w.catalog.FindByName(name)
		if !ok {
			w.log.Errorw("insurance type not found", "name", name)
			return ErrUnknownInsuranceType
		}
		w.draft.InsuranceTypeID = t.ID
		w.transitionTo(StepHomeInsuranceType)
		return nil
	case "life":
		t, ok := w.catalog.FindByName(name)
		if !ok {
			w.log.Errorw("insurance type not found", "name", name)
			return ErrUnknownInsuranceType
		}
		w.draft.InsuranceTypeID = t.ID
		w.transitionTo(StepLifeInsuranceType)
		return nil
	default:
		w.log.Errorw("unknown insurance category", "name", name)
		return ErrUnknownInsuranceType
	}
}

// SelectCoverage resolves a coverage type of the currently selected
// insurance type by name (case-insensitive, spaces and dashes
// interchangeable) and advances into the matching options step. Fails
// closed without transition when the coverage is not in the catalog.
func (w *Wizard) SelectCoverage(name string) error {
	t, ok := w.catalog.FindByID(w.draft.InsuranceTypeID)
	if !ok {
		w.log.Errorw("selected insurance type missing from catalog", "id", w.draft.InsuranceTypeID)
		return ErrUnknownInsuranceType
	}
	want := slugify(name)
	for _, c := range t.CoverageTypes {
		if slugify(c.Name) == want {
			w.draft.CoverageTypeID = c.ID
			switch w.step {
			case StepHomeInsuranceType:
				w.transitionTo(StepHomeInsuranceOptions)
			case StepLifeInsuranceType:
				w.transitionTo(StepLifeInsuranceOptions)
			default:
				w.transitionTo(StepSelectCompensation)
			}
			return nil
		}
	}
	w.log.Errorw("coverage type not found", "name", name, "insurance_type_id", t.ID)
	return ErrUnknownCoverageType
}

// SubmitCompensation records the chosen coverage amount and advances.
func (w *Wizard) SubmitCompensation(amount float64) {
	w.draft.CoverageAmount = amount
	w.transitionTo(StepVehicleDetails)
}

// SubmitVehicleDetails merges the vehicle detail and address fields
// into the draft and advances.
func (w *Wizard) SubmitVehicleDetails(details VehicleDetails, address ResidenceAddress) {
	w.draft.VehicleDetails = details
	w.draft.ResidenceAddress = address
	w.transitionTo(StepVehicleDetails2)
}

// SubmitVehicleAttributes merges the vehicle attribute fields into the
// draft and advances to the photo step.
func (w *Wizard) SubmitVehicleAttributes(attrs VehicleAttributes) {
	w.draft.VehicleAttributes = attrs
	w.transitionTo(StepCarPhotos)
}

func (w *Wizard) AttachPhoto(slot PhotoSlot, filename string, data []byte) {
	w.draft.SetPhoto(slot, PendingPhoto(filename, data))
	w.persistScratch()
}

func (w *Wizard) RemovePhoto(slot PhotoSlot) {
	w.draft.SetPhoto(slot, Photo{})
	w.persistScratch()
}

// SaveDraft is the photo-step checkpoint: it persists the draft and
// moves to the terminal display step. The transition does not wait on
// the save succeeding; the protocol reports its own outcome.
func (w *Wizard) SaveDraft(ctx context.Context) {
	if id, err := w.persister.Submit(ctx, w.draft, true); err == nil {
		w.draft.DraftID = id
	}
	w.transitionTo(StepCompareQuotes)
}

// SubmitFinal performs the final (validated) submission. On success
// the scratch copy and the retained draft id are discarded and the
// user is redirected to the policies list.
func (w *Wizard) SubmitFinal(ctx context.Context) error {
	_, err := w.persister.Submit(ctx, w.draft, false)
	if err != nil {
		return err
	}
	if clearErr := w.scratch.Clear(); clearErr != nil {
		w.log.Warnw("scratch clear failed", "err", clearErr)
	}
	w.draft = NewFormDraft()
	w.step = StepInsuranceCategory
	w.mirrorRoute()
	w.navigator.Go(nav.ScreenPolicies, nil)
	return nil
}

// transitionTo moves to a step, treating entry into the category step
// as a hard reset boundary: the draft returns to defaults and the
// durable scratch copy is discarded so no stale data bleeds across
// sessions.
func (w *Wizard) transitionTo(s Step) {
	if s == StepInsuranceCategory {
		w.draft = NewFormDraft()
		if err := w.scratch.Clear(); err != nil {
			w.log.Warnw("scratch clear failed", "err", err)
		}
	}
	w.step = s
	w.afterTransition()
}

func (w *Wizard) afterTransition() {
	w.mirrorRoute()
	if w.step != StepInsuranceCategory {
		w.persistScratch()
	}
}

func (w *Wizard) mirrorRoute() {
	vals := url.Values{"step": {string(w.step)}}
	if w.draft.DraftID > 0 {
		vals.Set("draftId", strconv.Itoa(w.draft.DraftID))
	}
	w.route.Write(vals)
}

func (w *Wizard) persistScratch() {
	if err := w.scratch.Save(w.draft); err != nil {
		w.log.Warnw("scratch save failed", "err", err)
	}
}

func slugify(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(s, "-", " "))), "-")
}
