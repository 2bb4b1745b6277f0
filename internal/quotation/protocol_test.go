package quotation

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BITS-DEVSEC/im-client/internal/api"
	"github.com/BITS-DEVSEC/im-client/internal/mockapi"
	"github.com/BITS-DEVSEC/im-client/internal/nav"
	"github.com/BITS-DEVSEC/im-client/internal/notify"
	"github.com/BITS-DEVSEC/im-client/internal/session"
	"github.com/BITS-DEVSEC/im-client/internal/wizard"
)

func startMockBackend(t *testing.T) (*mockapi.Server, string) {
	t.Helper()
	srv := mockapi.New(mockapi.Config{AccessTTL: time.Hour}, zap.NewNop().Sugar())
	app := srv.App()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return srv, "http://" + ln.Addr().String()
}

type protocolEnv struct {
	srv   *mockapi.Server
	store *session.Store
	notes *notify.Recorder
	proto *Protocol
}

// newAuthedEnv registers and verifies a customer against the mock
// backend, returning a protocol bound to that authenticated session.
func newAuthedEnv(t *testing.T, srv *mockapi.Server, baseURL, phone string) *protocolEnv {
	t.Helper()
	client, err := api.NewClient(api.Config{BaseURL: baseURL, Timeout: 5 * time.Second}, zap.NewNop().Sugar())
	require.NoError(t, err)
	notes := &notify.Recorder{}
	store := session.NewStore(client, session.NewUserFile(t.TempDir()), notes, &nav.Recorder{}, zap.NewNop().Sugar())

	ctx := context.Background()
	require.NoError(t, store.RegisterCustomer(ctx, session.CustomerRegistration{
		PhoneNumber: phone, FIN: "FIN-" + phone, Password: "secret1", PasswordConfirmation: "secret1",
	}))
	code, ok := srv.Store().OTPFor(phone)
	require.True(t, ok)
	require.NoError(t, store.VerifyOTP(ctx, session.OTPVerification{PhoneNumber: phone, OTP: code}))
	notes.Reset()

	return &protocolEnv{
		srv:   srv,
		store: store,
		notes: notes,
		proto: NewProtocol(client, store, notes, zap.NewNop().Sugar()),
	}
}

func completeDraft() *wizard.FormDraft {
	d := wizard.NewFormDraft()
	d.InsuranceTypeID = 1
	d.CoverageTypeID = 3
	d.CoverageAmount = 200000
	d.VehicleDetails = wizard.VehicleDetails{
		VehicleType: "sedan", VehicleUsage: "private", NumberOfPassengers: 4, CarPrice: 900000,
	}
	d.ResidenceAddress = wizard.ResidenceAddress{Region: "Addis Ababa", Zone: "Z1", Woreda: "W2", Kebele: "K3"}
	d.VehicleAttributes = wizard.VehicleAttributes{
		PlateNumber: "AA-12345", ChassisNumber: "CH900", EngineNumber: "EN700",
		Make: "Toyota", Model: "Corolla", YearOfManufacture: 2019, EstimatedValue: 950000,
	}
	d.SetPhoto(wizard.PhotoFront, wizard.PendingPhoto("front.jpg", []byte("jpegbytes")))
	return d
}

func TestSubmitRequiresAuthentication(t *testing.T) {
	_, base := startMockBackend(t)
	client, err := api.NewClient(api.Config{BaseURL: base, Timeout: 5 * time.Second}, zap.NewNop().Sugar())
	require.NoError(t, err)
	notes := &notify.Recorder{}
	store := session.NewStore(client, session.NewUserFile(t.TempDir()), notes, &nav.Recorder{}, zap.NewNop().Sugar())
	proto := NewProtocol(client, store, notes, zap.NewNop().Sugar())

	_, err = proto.Submit(context.Background(), completeDraft(), true)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	sent := notes.All()
	require.Len(t, sent, 1)
	assert.Equal(t, "You must be logged in to submit a quotation request", sent[0].Message)
}

func TestFinalSubmissionValidationGate(t *testing.T) {
	srv, base := startMockBackend(t)
	env := newAuthedEnv(t, srv, base, "0911000001")

	incomplete := wizard.NewFormDraft()
	_, err := env.proto.Submit(context.Background(), incomplete, false)
	assert.ErrorIs(t, err, ErrValidation)

	// Rejected locally: nothing reached the backend.
	_, created := srv.Store().Quote(1)
	assert.False(t, created)

	sent := env.notes.All()
	require.Len(t, sent, 1)
	assert.Equal(t, validationMsg, sent[0].Message)
	assert.Equal(t, notify.Red, sent[0].Color)
}

func TestDraftSkipsValidation(t *testing.T) {
	srv, base := startMockBackend(t)
	env := newAuthedEnv(t, srv, base, "0911000002")

	// A nearly empty draft still saves.
	d := wizard.NewFormDraft()
	d.InsuranceTypeID = 1
	id, err := env.proto.Submit(context.Background(), d, true)
	require.NoError(t, err)
	assert.Greater(t, id, 0)

	rec, ok := srv.Store().Quote(id)
	require.True(t, ok)
	assert.Equal(t, "draft", rec.Status)
}

func TestDraftRoundTrip(t *testing.T) {
	srv, base := startMockBackend(t)
	env := newAuthedEnv(t, srv, base, "0911000003")
	ctx := context.Background()

	id, err := env.proto.Submit(ctx, completeDraft(), true)
	require.NoError(t, err)

	sent := env.notes.All()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Message, "Draft #")
	assert.Equal(t, notify.Green, sent[0].Color)
	env.notes.Reset()

	got, err := env.proto.Rehydrate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.DraftID)
	assert.Equal(t, 1, got.InsuranceTypeID)
	assert.Equal(t, 3, got.CoverageTypeID)
	assert.Equal(t, 200000.0, got.CoverageAmount)
	assert.Equal(t, "Toyota", got.VehicleAttributes.Make)
	assert.Equal(t, 950000.0, got.VehicleAttributes.EstimatedValue)
	assert.Equal(t, "Addis Ababa", got.ResidenceAddress.Region)

	// Uploaded photo comes back as a stored URL marker, not bytes.
	front := got.Photo(wizard.PhotoFront)
	assert.Equal(t, wizard.PhotoStored, front.State)
	assert.Contains(t, front.URL, "/uploads/")
	assert.Empty(t, front.Data)
	assert.Equal(t, wizard.PhotoEmpty, got.Photo(wizard.PhotoBack).State)

	// Saving again with the known id updates rather than duplicates.
	got.CoverageAmount = 300000
	again, err := env.proto.Submit(ctx, got, true)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	sent = env.notes.All()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Message, "updated successfully")

	rec, ok := srv.Store().Quote(id)
	require.True(t, ok)
	assert.Equal(t, 300000.0, rec.CoverageAmount)
	_, dup := srv.Store().Quote(id + 1)
	assert.False(t, dup)
}

func TestFinalSubmission(t *testing.T) {
	srv, base := startMockBackend(t)
	env := newAuthedEnv(t, srv, base, "0911000004")

	id, err := env.proto.Submit(context.Background(), completeDraft(), false)
	require.NoError(t, err)

	rec, ok := srv.Store().Quote(id)
	require.True(t, ok)
	assert.Equal(t, "pending", rec.Status)

	sent := env.notes.All()
	require.Len(t, sent, 1)
	assert.Equal(t, "Quotation request submitted successfully", sent[0].Message)
}

func TestRehydrateRejectsForeignDraft(t *testing.T) {
	srv, base := startMockBackend(t)
	owner := newAuthedEnv(t, srv, base, "0911000005")
	other := newAuthedEnv(t, srv, base, "0911000006")
	ctx := context.Background()

	id, err := owner.proto.Submit(ctx, completeDraft(), true)
	require.NoError(t, err)

	_, err = other.proto.Rehydrate(ctx, id)
	assert.ErrorIs(t, err, ErrNotOwner)
	sent := other.notes.All()
	require.Len(t, sent, 1)
	assert.Equal(t, "You are not authorized to open this draft", sent[0].Message)
}

func TestList(t *testing.T) {
	srv, base := startMockBackend(t)
	env := newAuthedEnv(t, srv, base, "0911000007")
	stranger := newAuthedEnv(t, srv, base, "0911000008")
	ctx := context.Background()

	_, err := env.proto.Submit(ctx, completeDraft(), true)
	require.NoError(t, err)

	list, err := env.proto.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "draft", list[0].Status)
	assert.Equal(t, "Toyota", list[0].Make)
	assert.Equal(t, "Comprehensive", list[0].CoverageTypeName)

	// Listings are scoped to the session's user.
	theirs, err := stranger.proto.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}
