package wizard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BITS-DEVSEC/im-client/internal/api"
	"github.com/BITS-DEVSEC/im-client/internal/catalog"
	"github.com/BITS-DEVSEC/im-client/internal/nav"
	"github.com/BITS-DEVSEC/im-client/internal/notify"
)

const catalogBody = `{"success":true,"data":[
	{"id":1,"name":"Motor","description":"","coverage_types":[
		{"id":1,"insurance_type_id":1,"name":"Third Party","description":""},
		{"id":2,"insurance_type_id":1,"name":"Own Damage","description":""},
		{"id":3,"insurance_type_id":1,"name":"Comprehensive","description":""}]},
	{"id":2,"name":"Home","description":"","coverage_types":[
		{"id":4,"insurance_type_id":2,"name":"Fire and Theft","description":""}]},
	{"id":3,"name":"Life","description":"","coverage_types":[
		{"id":6,"insurance_type_id":3,"name":"Term Life","description":""}]}
]}`

type submitCall struct {
	isDraft bool
	draftID int
}

type fakePersister struct {
	nextID     int
	submitErr  error
	submits    []submitCall
	rehydrated map[int]*FormDraft
}

func (f *fakePersister) Submit(ctx context.Context, d *FormDraft, isDraft bool) (int, error) {
	f.submits = append(f.submits, submitCall{isDraft: isDraft, draftID: d.DraftID})
	if f.submitErr != nil {
		return 0, f.submitErr
	}
	if f.nextID == 0 {
		f.nextID = 1
	}
	return f.nextID, nil
}

func (f *fakePersister) Rehydrate(ctx context.Context, id int) (*FormDraft, error) {
	if d, ok := f.rehydrated[id]; ok {
		return d, nil
	}
	return nil, errors.New("record not found")
}

type wizardEnv struct {
	wiz       *Wizard
	persister *fakePersister
	route     *MemoryRoute
	scratch   *MemoryScratch
	moves     *nav.Recorder
}

func newWizardEnv(t *testing.T) *wizardEnv {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(catalogBody))
	}))
	t.Cleanup(srv.Close)

	client, err := api.NewClient(api.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, zap.NewNop().Sugar())
	require.NoError(t, err)
	loader := catalog.NewLoader(client, &notify.Recorder{}, zap.NewNop().Sugar())
	loader.OnToken(context.Background(), "tok")

	env := &wizardEnv{
		persister: &fakePersister{rehydrated: map[int]*FormDraft{}},
		route:     &MemoryRoute{},
		scratch:   &MemoryScratch{},
		moves:     &nav.Recorder{},
	}
	env.wiz = New(loader, env.persister, env.route, env.scratch, env.moves, zap.NewNop().Sugar())
	return env
}

func (e *wizardEnv) advanceToPhotos(t *testing.T) {
	t.Helper()
	require.NoError(t, e.wiz.SelectCategory("motor"))
	require.NoError(t, e.wiz.SelectCoverage("Third Party"))
	e.wiz.SubmitCompensation(100000)
	e.wiz.SubmitVehicleDetails(
		VehicleDetails{VehicleType: "sedan", VehicleUsage: "private", NumberOfPassengers: 4, CarPrice: 900000},
		ResidenceAddress{Region: "Addis Ababa", Zone: "Z1", Woreda: "W2", Kebele: "K3"},
	)
	e.wiz.SubmitVehicleAttributes(VehicleAttributes{
		PlateNumber: "AA-123", ChassisNumber: "CH9", EngineNumber: "EN7",
		Make: "Toyota", Model: "Corolla", YearOfManufacture: 2019, EstimatedValue: 950000,
	})
	require.Equal(t, StepCarPhotos, e.wiz.Step())
}

func TestBackIsDeterministic(t *testing.T) {
	env := newWizardEnv(t)
	env.advanceToPhotos(t)
	env.wiz.Back()
	assert.Equal(t, StepVehicleDetails2, env.wiz.Step())
	env.wiz.Back()
	assert.Equal(t, StepVehicleDetails, env.wiz.Step())
	env.wiz.Back()
	assert.Equal(t, StepSelectCompensation, env.wiz.Step())
	env.wiz.Back()
	assert.Equal(t, StepMotorInsuranceType, env.wiz.Step())
	env.wiz.Back()
	assert.Equal(t, StepInsuranceCategory, env.wiz.Step())
	// Backing out of the first step stays put.
	env.wiz.Back()
	assert.Equal(t, StepInsuranceCategory, env.wiz.Step())
}

func TestCategoryEntryResetsDraftAndScratch(t *testing.T) {
	env := newWizardEnv(t)
	env.advanceToPhotos(t)
	env.wiz.AttachPhoto(PhotoFront, "front.jpg", []byte("x"))

	_, saved, err := env.scratch.Load()
	require.NoError(t, err)
	require.True(t, saved)

	for env.wiz.Step() != StepInsuranceCategory {
		env.wiz.Back()
	}

	d := env.wiz.Draft()
	assert.Zero(t, d.InsuranceTypeID)
	assert.Zero(t, d.CoverageAmount)
	assert.Equal(t, PhotoEmpty, d.Photo(PhotoFront).State)

	_, saved, err = env.scratch.Load()
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestSelectCategoryRouting(t *testing.T) {
	env := newWizardEnv(t)

	require.NoError(t, env.wiz.SelectCategory("Motor"))
	assert.Equal(t, StepMotorInsuranceType, env.wiz.Step())
	assert.Equal(t, 1, env.wiz.Draft().InsuranceTypeID)

	env.wiz.Back()
	require.NoError(t, env.wiz.SelectCategory("home"))
	assert.Equal(t, StepHomeInsuranceType, env.wiz.Step())
	assert.Equal(t, 2, env.wiz.Draft().InsuranceTypeID)

	env.wiz.Back()
	require.NoError(t, env.wiz.SelectCategory("LIFE"))
	assert.Equal(t, StepLifeInsuranceType, env.wiz.Step())
	assert.Equal(t, 3, env.wiz.Draft().InsuranceTypeID)
}

func TestSelectCategoryUnknownFailsClosed(t *testing.T) {
	env := newWizardEnv(t)
	err := env.wiz.SelectCategory("boat")
	assert.ErrorIs(t, err, ErrUnknownInsuranceType)
	assert.Equal(t, StepInsuranceCategory, env.wiz.Step())
}

func TestSelectCoverage(t *testing.T) {
	env := newWizardEnv(t)
	require.NoError(t, env.wiz.SelectCategory("motor"))

	// Name matching is case-insensitive with spaces and dashes
	// interchangeable.
	require.NoError(t, env.wiz.SelectCoverage("third-party"))
	assert.Equal(t, StepSelectCompensation, env.wiz.Step())
	assert.Equal(t, 1, env.wiz.Draft().CoverageTypeID)
}

func TestSelectCoverageUnknownFailsClosed(t *testing.T) {
	env := newWizardEnv(t)
	require.NoError(t, env.wiz.SelectCategory("motor"))
	err := env.wiz.SelectCoverage("Act of God")
	assert.ErrorIs(t, err, ErrUnknownCoverageType)
	assert.Equal(t, StepMotorInsuranceType, env.wiz.Step())
	assert.Zero(t, env.wiz.Draft().CoverageTypeID)
}

func TestHomeAndLifeOptionSteps(t *testing.T) {
	env := newWizardEnv(t)
	require.NoError(t, env.wiz.SelectCategory("home"))
	require.NoError(t, env.wiz.SelectCoverage("Fire and Theft"))
	assert.Equal(t, StepHomeInsuranceOptions, env.wiz.Step())

	env.wiz.Back()
	env.wiz.Back()
	require.NoError(t, env.wiz.SelectCategory("life"))
	require.NoError(t, env.wiz.SelectCoverage("Term Life"))
	assert.Equal(t, StepLifeInsuranceOptions, env.wiz.Step())
}

func TestRouteMirroring(t *testing.T) {
	env := newWizardEnv(t)
	require.NoError(t, env.wiz.SelectCategory("motor"))
	assert.Equal(t, string(StepMotorInsuranceType), env.route.Read().Get("step"))

	env.persister.nextID = 42
	env.advanceAndSave(t)
	vals := env.route.Read()
	assert.Equal(t, string(StepCompareQuotes), vals.Get("step"))
	assert.Equal(t, "42", vals.Get("draftId"))
}

func (e *wizardEnv) advanceAndSave(t *testing.T) {
	t.Helper()
	e.wiz.Back() // back to category from motor-insurance-type
	e.advanceToPhotos(t)
	e.wiz.SaveDraft(context.Background())
}

func TestSaveDraftCheckpointsAndAdvances(t *testing.T) {
	env := newWizardEnv(t)
	env.advanceToPhotos(t)
	env.persister.nextID = 7

	env.wiz.SaveDraft(context.Background())

	assert.Equal(t, StepCompareQuotes, env.wiz.Step())
	assert.Equal(t, 7, env.wiz.Draft().DraftID)
	require.Len(t, env.persister.submits, 1)
	assert.True(t, env.persister.submits[0].isDraft)
}

func TestSaveDraftAdvancesEvenOnFailure(t *testing.T) {
	env := newWizardEnv(t)
	env.advanceToPhotos(t)
	env.persister.submitErr = errors.New("backend down")

	env.wiz.SaveDraft(context.Background())

	assert.Equal(t, StepCompareQuotes, env.wiz.Step())
	assert.Zero(t, env.wiz.Draft().DraftID)
}

func TestSubmitFinalResetsAndNavigates(t *testing.T) {
	env := newWizardEnv(t)
	env.advanceToPhotos(t)
	env.persister.nextID = 9
	env.wiz.SaveDraft(context.Background())

	require.NoError(t, env.wiz.SubmitFinal(context.Background()))

	assert.Equal(t, StepInsuranceCategory, env.wiz.Step())
	assert.Zero(t, env.wiz.Draft().DraftID)
	_, saved, err := env.scratch.Load()
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Empty(t, env.route.Read().Get("draftId"))

	move, ok := env.moves.Last()
	require.True(t, ok)
	assert.Equal(t, nav.ScreenPolicies, move.Screen)

	require.Len(t, env.persister.submits, 2)
	assert.False(t, env.persister.submits[1].isDraft)
	assert.Equal(t, 9, env.persister.submits[1].draftID)
}

func TestSubmitFinalFailureKeepsState(t *testing.T) {
	env := newWizardEnv(t)
	env.advanceToPhotos(t)
	env.persister.submitErr = errors.New("validation failed")

	err := env.wiz.SubmitFinal(context.Background())
	require.Error(t, err)
	assert.Equal(t, StepCarPhotos, env.wiz.Step())
	_, moved := env.moves.Last()
	assert.False(t, moved)
}

func TestResumeWithDraftID(t *testing.T) {
	env := newWizardEnv(t)
	saved := NewFormDraft()
	saved.DraftID = 7
	saved.InsuranceTypeID = 1
	saved.CoverageAmount = 120000
	env.persister.rehydrated[7] = saved

	env.route.Write(url.Values{"step": {string(StepCarPhotos)}, "draftId": {"7"}})
	env.wiz.Resume(context.Background())

	assert.Equal(t, StepCarPhotos, env.wiz.Step())
	assert.Equal(t, 7, env.wiz.Draft().DraftID)
	assert.Equal(t, 120000.0, env.wiz.Draft().CoverageAmount)
}

func TestResumeRehydrationFailureFallsBack(t *testing.T) {
	env := newWizardEnv(t)
	env.route.Write(url.Values{"step": {string(StepCarPhotos)}, "draftId": {"404"}})
	env.wiz.Resume(context.Background())
	assert.Equal(t, StepInsuranceCategory, env.wiz.Step())
}

func TestResumeScratchFallback(t *testing.T) {
	env := newWizardEnv(t)
	d := NewFormDraft()
	d.InsuranceTypeID = 1
	d.CoverageAmount = 55000
	require.NoError(t, env.scratch.Save(d))

	env.route.Write(url.Values{"step": {string(StepVehicleDetails)}})
	env.wiz.Resume(context.Background())

	assert.Equal(t, StepVehicleDetails, env.wiz.Step())
	assert.Equal(t, 55000.0, env.wiz.Draft().CoverageAmount)
}

func TestResumeUnknownStepFallsBack(t *testing.T) {
	env := newWizardEnv(t)
	env.route.Write(url.Values{"step": {"teleport"}, "draftId": {strconv.Itoa(3)}})
	env.wiz.Resume(context.Background())
	assert.Equal(t, StepInsuranceCategory, env.wiz.Step())
}
