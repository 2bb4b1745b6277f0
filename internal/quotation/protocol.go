// Package quotation implements the draft persistence protocol: saving
// the wizard's form draft to the backend (create-or-update), final
// submission with its validation gate, and rehydrating a saved draft.
package quotation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/BITS-DEVSEC/im-client/internal/api"
	"github.com/BITS-DEVSEC/im-client/internal/notify"
	"github.com/BITS-DEVSEC/im-client/internal/session"
	"github.com/BITS-DEVSEC/im-client/internal/wizard"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrValidation       = errors.New("required fields missing")
	// ErrNotOwner is raised client-side when a fetched draft belongs
	// to a different user. Not a network error.
	ErrNotOwner = errors.New("draft owned by another user")
)

const validationMsg = "Please complete all required fields and upload at least one of front, chassis number, or libre photo"

type Protocol struct {
	api      *api.Client
	session  *session.Store
	notifier notify.Notifier
	log      *zap.SugaredLogger
}

func NewProtocol(client *api.Client, sess *session.Store, notifier notify.Notifier, log *zap.SugaredLogger) *Protocol {
	return &Protocol{api: client, session: sess, notifier: notifier, log: log}
}

// Submit persists the draft. isDraft=true saves arbitrarily incomplete
// state; isDraft=false is the validated final submission. A known
// draft id turns the call into a partial update of that record so
// repeated saves never create duplicates.
func (p *Protocol) Submit(ctx context.Context, draft *wizard.FormDraft, isDraft bool) (int, error) {
	user, ok := p.session.CurrentUser()
	token := p.session.AccessToken()
	if !ok || token == "" {
		notify.Failure(p.notifier, "You must be logged in to submit a quotation request")
		return 0, ErrNotAuthenticated
	}

	if !isDraft {
		if missing := missingFields(draft); len(missing) > 0 {
			p.log.Errorw("final submission validation failed", "missing", missing)
			notify.Failure(p.notifier, validationMsg)
			return 0, fmt.Errorf("%w: %v", ErrValidation, missing)
		}
	}

	status := "pending"
	if isDraft {
		status = "draft"
	}
	body := payload{
		UserID:            user.ID,
		InsuranceTypeID:   draft.InsuranceTypeID,
		CoverageTypeID:    draft.CoverageTypeID,
		Status:            status,
		FormData: formData{
			CoverageAmount:          draft.CoverageAmount,
			VehicleDetails:          draft.VehicleDetails,
			CurrentResidenceAddress: draft.ResidenceAddress,
		},
		VehicleAttributes: draft.VehicleAttributes,
	}

	var files []api.FilePart
	for _, slot := range wizard.PhotoSlots {
		photo := draft.Photo(slot)
		if photo.State != wizard.PhotoPending {
			continue
		}
		files = append(files, api.FilePart{
			Field:    fmt.Sprintf("vehicle_attributes[%s]", photoFieldMap[slot]),
			Filename: photo.Filename,
			Data:     photo.Data,
		})
	}

	hadID := draft.DraftID > 0
	method, path := http.MethodPost, "/quotation_requests/"
	if hadID {
		method, path = http.MethodPatch, fmt.Sprintf("/quotation_requests/%d", draft.DraftID)
	}

	raw, err := p.api.DoMultipart(ctx, method, path, body, files, token)
	if err != nil {
		msg := api.Message(err, "Failed to submit quotation request")
		p.log.Warnw("quotation submit failed", "method", method, "err", err)
		notify.Failure(p.notifier, msg)
		return 0, err
	}

	var created struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		notify.Failure(p.notifier, "Failed to submit quotation request")
		return 0, err
	}
	id := created.ID
	if id == 0 {
		id = draft.DraftID
	}

	switch {
	case isDraft && !hadID:
		notify.Success(p.notifier, fmt.Sprintf("Draft #%d saved successfully!", id))
	case hadID:
		notify.Success(p.notifier, fmt.Sprintf("Quotation request #%d updated successfully!", id))
	default:
		notify.Success(p.notifier, "Quotation request submitted successfully")
	}
	return id, nil
}

// Rehydrate fetches a stored record and re-derives the flat form
// draft. The ids come from the embedded insurance/coverage objects,
// never from locally cached values, and the record must belong to the
// current session's user. Previously uploaded photos become stored
// URL markers, not binaries.
func (p *Protocol) Rehydrate(ctx context.Context, id int) (*wizard.FormDraft, error) {
	user, ok := p.session.CurrentUser()
	token := p.session.AccessToken()
	if !ok || token == "" {
		return nil, ErrNotAuthenticated
	}

	raw, err := p.api.DoJSON(ctx, http.MethodGet, fmt.Sprintf("/quotation_requests/%d", id), nil, token)
	if err != nil {
		msg := api.Message(err, "Failed to load draft")
		notify.Failure(p.notifier, msg)
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		notify.Failure(p.notifier, "Failed to load draft")
		return nil, err
	}

	if rec.User.ID != user.ID {
		p.log.Errorw("draft ownership mismatch", "draft_user", rec.User.ID, "session_user", user.ID)
		notify.Failure(p.notifier, "You are not authorized to open this draft")
		return nil, ErrNotOwner
	}

	draft := wizard.NewFormDraft()
	draft.DraftID = rec.ID
	draft.InsuranceTypeID = rec.InsuranceType.ID
	draft.CoverageTypeID = rec.CoverageType.ID
	draft.CoverageAmount = rec.FormData.CoverageAmount
	draft.VehicleDetails = rec.FormData.VehicleDetails
	draft.ResidenceAddress = rec.FormData.CurrentResidenceAddress
	draft.VehicleAttributes = wizard.VehicleAttributes{
		PlateNumber:       rec.Vehicle.PlateNumber,
		ChassisNumber:     rec.Vehicle.ChassisNumber,
		EngineNumber:      rec.Vehicle.EngineNumber,
		Make:              rec.Vehicle.Make,
		Model:             rec.Vehicle.Model,
		YearOfManufacture: rec.Vehicle.YearOfManufacture,
		EstimatedValue:    float64(rec.Vehicle.EstimatedValue),
	}
	for _, slot := range wizard.PhotoSlots {
		if url := rec.photoURL(slot); url != "" {
			draft.SetPhoto(slot, wizard.StoredPhoto(url))
		}
	}
	return draft, nil
}

// List fetches the user's quotation requests for the resume-a-draft
// listing.
func (p *Protocol) List(ctx context.Context) ([]Summary, error) {
	token := p.session.AccessToken()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	raw, err := p.api.DoJSON(ctx, http.MethodGet, "/quotation_requests/", nil, token)
	if err != nil {
		msg := api.Message(err, "Failed to load drafts")
		notify.Failure(p.notifier, msg)
		return nil, err
	}
	var recs []record
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(recs))
	for _, r := range recs {
		out = append(out, Summary{
			ID:                r.ID,
			Status:            r.Status,
			Make:              r.Vehicle.Make,
			Model:             r.Vehicle.Model,
			YearOfManufacture: r.Vehicle.YearOfManufacture,
			PlateNumber:       r.Vehicle.PlateNumber,
			CoverageTypeName:  r.CoverageType.Name,
		})
	}
	return out, nil
}

// missingFields mirrors the final-submission validation list. Drafts
// skip it entirely.
func missingFields(d *wizard.FormDraft) []string {
	var missing []string
	if d.InsuranceTypeID <= 0 {
		missing = append(missing, "insurance_type_id")
	}
	if d.CoverageTypeID <= 0 {
		missing = append(missing, "coverage_type_id")
	}
	if d.VehicleDetails.VehicleType == "" {
		missing = append(missing, "vehicle_type")
	}
	if d.VehicleDetails.VehicleUsage == "" {
		missing = append(missing, "vehicle_usage")
	}
	if d.VehicleDetails.NumberOfPassengers <= 0 {
		missing = append(missing, "number_of_passengers")
	}
	if d.VehicleDetails.CarPrice <= 0 {
		missing = append(missing, "car_price")
	}
	if d.ResidenceAddress.Region == "" {
		missing = append(missing, "region")
	}
	if d.ResidenceAddress.Zone == "" {
		missing = append(missing, "zone")
	}
	if d.ResidenceAddress.Woreda == "" {
		missing = append(missing, "woreda")
	}
	if d.ResidenceAddress.Kebele == "" {
		missing = append(missing, "kebele")
	}
	if d.VehicleAttributes.PlateNumber == "" {
		missing = append(missing, "plate_number")
	}
	if d.VehicleAttributes.ChassisNumber == "" {
		missing = append(missing, "chassis_number")
	}
	if d.VehicleAttributes.EngineNumber == "" {
		missing = append(missing, "engine_number")
	}
	if d.VehicleAttributes.Make == "" {
		missing = append(missing, "make")
	}
	if d.VehicleAttributes.Model == "" {
		missing = append(missing, "model")
	}
	if d.VehicleAttributes.YearOfManufacture <= 0 {
		missing = append(missing, "year_of_manufacture")
	}
	if d.VehicleAttributes.EstimatedValue <= 0 {
		missing = append(missing, "estimated_value")
	}
	if !d.HasRequiredPhoto() {
		missing = append(missing, "at least one of front, chassis number, or libre photo")
	}
	return missing
}
