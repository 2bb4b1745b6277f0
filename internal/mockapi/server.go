// Package mockapi is an in-memory stand-in for the marketplace backend,
// used by the development server and the end-to-end tests. It speaks
// the same envelope, auth flows and multipart quotation protocol the
// real backend does.
package mockapi

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/BITS-DEVSEC/im-client/internal/catalog"
	"github.com/BITS-DEVSEC/im-client/internal/wizard"
)

const refreshCookie = "refresh_token"

type Config struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Server struct {
	cfg   Config
	store *MemStore
	cat   []catalog.InsuranceType
	log   *zap.SugaredLogger
}

func New(cfg Config, log *zap.SugaredLogger) *Server {
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret"
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Server{
		cfg:   cfg,
		store: NewMemStore(),
		cat:   defaultCatalog(),
		log:   log,
	}
}

// Store exposes the backing store so tests can seed accounts and read
// generated codes.
func (s *Server) Store() *MemStore {
	return s.store
}

// App builds the fiber application with all routes registered.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Use(func(c *fiber.Ctx) error {
		err := c.Next()
		s.log.Infow("request", "method", c.Method(), "path", c.Path(), "status", c.Response().StatusCode())
		return err
	})

	auth := app.Group("/auth")
	auth.Post("/login", s.login)
	auth.Post("/customer_register", s.customerRegister)
	auth.Post("/register", s.register)
	auth.Post("/verify_otp", s.verifyOTP)
	auth.Post("/verify_email", s.verifyEmail)
	auth.Post("/forgot_password", s.forgotPassword)
	auth.Post("/reset_password", s.resetPassword)
	auth.Post("/refresh", s.refresh)
	auth.Delete("/logout", s.logout)

	app.Get("/api/insurance_types", s.requireAuth, s.insuranceTypes)

	app.Post("/quotation_requests/", s.requireAuth, s.createQuote)
	app.Get("/quotation_requests/", s.requireAuth, s.listQuotes)
	app.Get("/quotation_requests/:id", s.requireAuth, s.getQuote)
	app.Patch("/quotation_requests/:id", s.requireAuth, s.updateQuote)

	app.Get("/uploads/:key", s.serveUpload)

	return app
}

func ok(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data})
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": msg})
}

func failErrors(c *fiber.Ctx, status int, errs []string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "errors": errs})
}

func (s *Server) requireAuth(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	userID, err := ParseAccessToken(strings.TrimPrefix(header, prefix), s.cfg.JWTSecret)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	c.Locals("user_id", userID)
	return c.Next()
}

func (s *Server) currentUserID(c *fiber.Ctx) int {
	id, _ := c.Locals("user_id").(int)
	return id
}

func accountJSON(a *Account) fiber.Map {
	roles := a.Roles
	if roles == nil {
		roles = []string{}
	}
	return fiber.Map{
		"id":           a.ID,
		"email":        a.Email,
		"phone_number": a.PhoneNumber,
		"roles":        roles,
	}
}

func (s *Server) issueSession(c *fiber.Ctx, a *Account) (fiber.Map, error) {
	access, err := GenerateAccessToken(a.ID, s.cfg.JWTSecret, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh := uuid.NewString()
	s.store.CreateSession(refresh, a.ID)
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    refresh,
		Expires:  time.Now().Add(s.cfg.RefreshTTL),
		HTTPOnly: true,
		SameSite: "Lax",
		Path:     "/",
	})
	return fiber.Map{"user": accountJSON(a), "access_token": access}, nil
}

type loginReq struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

func (s *Server) login(c *fiber.Ctx) error {
	var req loginReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	var a *Account
	var found bool
	if req.Email != "" {
		a, found = s.store.AccountByEmail(req.Email)
	} else {
		a, found = s.store.AccountByPhone(req.PhoneNumber)
	}
	if !found || bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.Password)) != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	if !a.Verified {
		return fail(c, fiber.StatusUnauthorized, "Account not verified")
	}
	data, err := s.issueSession(c, a)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to issue token")
	}
	return ok(c, fiber.StatusOK, data)
}

type customerRegisterReq struct {
	PhoneNumber          string `json:"phone_number"`
	FIN                  string `json:"fin"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (s *Server) customerRegister(c *fiber.Ctx) error {
	var req customerRegisterReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	var errs []string
	if req.PhoneNumber == "" {
		errs = append(errs, "Phone number can't be blank")
	}
	if req.FIN == "" {
		errs = append(errs, "FIN can't be blank")
	}
	if len(req.Password) < 6 {
		errs = append(errs, "Password is too short (minimum is 6 characters)")
	}
	if req.Password != req.PasswordConfirmation {
		errs = append(errs, "Password confirmation doesn't match Password")
	}
	if _, taken := s.store.AccountByPhone(req.PhoneNumber); taken {
		errs = append(errs, "Phone number has already been taken")
	}
	if len(errs) > 0 {
		return failErrors(c, fiber.StatusUnprocessableEntity, errs)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "registration failed")
	}
	a := s.store.CreateAccount(&Account{
		PhoneNumber:  req.PhoneNumber,
		FIN:          req.FIN,
		PasswordHash: string(hash),
		Roles:        []string{"customer"},
	})

	code := fmt.Sprintf("%06d", rand.Intn(1000000))
	s.store.SetOTP(a.PhoneNumber, code)
	// No SMS gateway here; the code is only logged.
	s.log.Infow("otp issued", "phone", a.PhoneNumber, "code", code)
	return ok(c, fiber.StatusCreated, fiber.Map{"message": "OTP sent"})
}

type registerReq struct {
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	Role                 string `json:"role"`
}

func (s *Server) register(c *fiber.Ctx) error {
	var req registerReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	var errs []string
	if req.Email == "" {
		errs = append(errs, "Email can't be blank")
	}
	if len(req.Password) < 6 {
		errs = append(errs, "Password is too short (minimum is 6 characters)")
	}
	if req.Password != req.PasswordConfirmation {
		errs = append(errs, "Password confirmation doesn't match Password")
	}
	if _, taken := s.store.AccountByEmail(req.Email); taken {
		errs = append(errs, "Email has already been taken")
	}
	if len(errs) > 0 {
		return failErrors(c, fiber.StatusUnprocessableEntity, errs)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "registration failed")
	}
	role := req.Role
	if role == "" {
		role = "user"
	}
	a := s.store.CreateAccount(&Account{
		Email:        req.Email,
		PasswordHash: string(hash),
		Roles:        []string{role},
	})

	token := uuid.NewString()
	s.store.SetEmailToken(a.Email, token)
	s.log.Infow("verification token issued", "email", a.Email, "token", token)
	return ok(c, fiber.StatusCreated, fiber.Map{"user": accountJSON(a)})
}

type verifyOTPReq struct {
	PhoneNumber string `json:"phone_number"`
	OTP         string `json:"otp"`
}

func (s *Server) verifyOTP(c *fiber.Ctx) error {
	var req verifyOTPReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	if !s.store.ConsumeOTP(req.PhoneNumber, req.OTP) {
		return fail(c, fiber.StatusUnauthorized, "Invalid or expired OTP")
	}
	a, found := s.store.AccountByPhone(req.PhoneNumber)
	if !found {
		return fail(c, fiber.StatusUnauthorized, "Invalid or expired OTP")
	}
	a.Verified = true
	data, err := s.issueSession(c, a)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to issue token")
	}
	return ok(c, fiber.StatusOK, data)
}

type verifyEmailReq struct {
	Email             string `json:"email"`
	VerificationToken string `json:"verification_token"`
}

func (s *Server) verifyEmail(c *fiber.Ctx) error {
	var req verifyEmailReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	if !s.store.ConsumeEmailToken(req.Email, req.VerificationToken) {
		return fail(c, fiber.StatusUnprocessableEntity, "Invalid or expired verification token")
	}
	a, found := s.store.AccountByEmail(req.Email)
	if !found {
		return fail(c, fiber.StatusUnprocessableEntity, "Invalid or expired verification token")
	}
	a.Verified = true
	return ok(c, fiber.StatusOK, fiber.Map{"user": accountJSON(a)})
}

type forgotPasswordReq struct {
	Email string `json:"email"`
}

func (s *Server) forgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	// Same response whether or not the account exists.
	if _, found := s.store.AccountByEmail(req.Email); found {
		token := uuid.NewString()
		s.store.SetResetToken(req.Email, token)
		s.log.Infow("reset token issued", "email", req.Email, "token", token)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"message": "Reset instructions sent"})
}

type resetPasswordReq struct {
	Email                string `json:"email"`
	ResetToken           string `json:"reset_token"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (s *Server) resetPassword(c *fiber.Ctx) error {
	var req resetPasswordReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	var errs []string
	if len(req.Password) < 6 {
		errs = append(errs, "Password is too short (minimum is 6 characters)")
	}
	if req.Password != req.PasswordConfirmation {
		errs = append(errs, "Password confirmation doesn't match Password")
	}
	if len(errs) > 0 {
		return failErrors(c, fiber.StatusUnprocessableEntity, errs)
	}
	if !s.store.ConsumeResetToken(req.Email, req.ResetToken) {
		return fail(c, fiber.StatusUnprocessableEntity, "Invalid or expired reset token")
	}
	a, found := s.store.AccountByEmail(req.Email)
	if !found {
		return fail(c, fiber.StatusUnprocessableEntity, "Invalid or expired reset token")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "reset failed")
	}
	a.PasswordHash = string(hash)
	return ok(c, fiber.StatusOK, fiber.Map{"message": "Password updated"})
}

func (s *Server) refresh(c *fiber.Ctx) error {
	token := c.Cookies(refreshCookie)
	if token == "" {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	userID, found := s.store.SessionUser(token)
	if !found {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	a, found := s.store.AccountByID(userID)
	if !found {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	access, err := GenerateAccessToken(a.ID, s.cfg.JWTSecret, s.cfg.AccessTTL)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to issue token")
	}
	return ok(c, fiber.StatusOK, fiber.Map{"user": accountJSON(a), "access_token": access})
}

func (s *Server) logout(c *fiber.Ctx) error {
	if token := c.Cookies(refreshCookie); token != "" {
		s.store.DeleteSession(token)
	}
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Path:     "/",
	})
	return ok(c, fiber.StatusOK, fiber.Map{"message": "Logged out"})
}

func (s *Server) insuranceTypes(c *fiber.Ctx) error {
	return ok(c, fiber.StatusOK, s.cat)
}

// quotePayload is the JSON metadata part of the multipart submission.
type quotePayload struct {
	InsuranceTypeID int    `json:"insurance_type_id"`
	CoverageTypeID  int    `json:"coverage_type_id"`
	Status          string `json:"status"`
	FormData        struct {
		CoverageAmount          float64                 `json:"coverage_amount"`
		VehicleDetails          wizard.VehicleDetails   `json:"vehicle_details"`
		CurrentResidenceAddress wizard.ResidenceAddress `json:"current_residence_address"`
	} `json:"form_data"`
	VehicleAttributes wizard.VehicleAttributes `json:"vehicle_attributes"`
}

func (s *Server) parseQuoteForm(c *fiber.Ctx) (*quotePayload, map[string]string, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, fmt.Errorf("expected multipart form: %w", err)
	}
	raw := form.Value["payload"]
	if len(raw) == 0 {
		return nil, nil, fmt.Errorf("missing payload part")
	}
	var p quotePayload
	if err := json.Unmarshal([]byte(raw[0]), &p); err != nil {
		return nil, nil, fmt.Errorf("malformed payload: %w", err)
	}

	photos := make(map[string]string)
	for field, headers := range form.File {
		name, ok := photoFieldName(field)
		if !ok || len(headers) == 0 {
			continue
		}
		f, err := headers[0].Open()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open upload %s: %w", field, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read upload %s: %w", field, err)
		}
		key := uuid.NewString() + "_" + headers[0].Filename
		s.store.SaveUpload(key, data)
		photos[name] = "/uploads/" + key
	}
	return &p, photos, nil
}

// photoFieldName unwraps vehicle_attributes[front_view_photo] style
// multipart field names.
func photoFieldName(field string) (string, bool) {
	const prefix = "vehicle_attributes["
	if !strings.HasPrefix(field, prefix) || !strings.HasSuffix(field, "]") {
		return "", false
	}
	return field[len(prefix) : len(field)-1], true
}

func (s *Server) createQuote(c *fiber.Ctx) error {
	p, photos, err := s.parseQuoteForm(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	status := p.Status
	if status == "" {
		status = "draft"
	}
	if status == "pending" && (p.InsuranceTypeID <= 0 || p.CoverageTypeID <= 0) {
		return failErrors(c, fiber.StatusUnprocessableEntity, []string{"Insurance type must exist", "Coverage type must exist"})
	}
	q := s.store.CreateQuote(&QuotationRecord{
		UserID:            s.currentUserID(c),
		Status:            status,
		InsuranceTypeID:   p.InsuranceTypeID,
		CoverageTypeID:    p.CoverageTypeID,
		CoverageAmount:    p.FormData.CoverageAmount,
		VehicleDetails:    p.FormData.VehicleDetails,
		ResidenceAddress:  p.FormData.CurrentResidenceAddress,
		VehicleAttributes: p.VehicleAttributes,
		PhotoURLs:         photos,
	})
	return ok(c, fiber.StatusCreated, s.quoteJSON(q))
}

func (s *Server) updateQuote(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid id")
	}
	q, found := s.store.Quote(id)
	if !found {
		return fail(c, fiber.StatusNotFound, "Quotation request not found")
	}
	if q.UserID != s.currentUserID(c) {
		return fail(c, fiber.StatusForbidden, "Forbidden")
	}
	p, photos, err := s.parseQuoteForm(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	if p.Status != "" {
		q.Status = p.Status
	}
	q.InsuranceTypeID = p.InsuranceTypeID
	q.CoverageTypeID = p.CoverageTypeID
	q.CoverageAmount = p.FormData.CoverageAmount
	q.VehicleDetails = p.FormData.VehicleDetails
	q.ResidenceAddress = p.FormData.CurrentResidenceAddress
	q.VehicleAttributes = p.VehicleAttributes
	for name, url := range photos {
		q.PhotoURLs[name] = url
	}
	return ok(c, fiber.StatusOK, s.quoteJSON(q))
}

func (s *Server) getQuote(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid id")
	}
	q, found := s.store.Quote(id)
	if !found {
		return fail(c, fiber.StatusNotFound, "Quotation request not found")
	}
	return ok(c, fiber.StatusOK, s.quoteJSON(q))
}

func (s *Server) listQuotes(c *fiber.Ctx) error {
	quotes := s.store.QuotesByUser(s.currentUserID(c))
	out := make([]fiber.Map, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, s.quoteJSON(q))
	}
	return ok(c, fiber.StatusOK, out)
}

func (s *Server) serveUpload(c *fiber.Ctx) error {
	data, found := s.store.Upload(c.Params("key"))
	if !found {
		return fail(c, fiber.StatusNotFound, "not found")
	}
	return c.Send(data)
}

// quoteJSON renders the nested record shape: the flat stored fields
// re-expanded with the embedded user, insurance type, coverage type and
// vehicle objects. Estimated value is serialized as a string, matching
// the backend's decimal columns.
func (s *Server) quoteJSON(q *QuotationRecord) fiber.Map {
	var userJSON fiber.Map
	if a, found := s.store.AccountByID(q.UserID); found {
		userJSON = accountJSON(a)
	} else {
		userJSON = fiber.Map{"id": q.UserID}
	}

	var itJSON, ctJSON fiber.Map
	for _, t := range s.cat {
		if t.ID == q.InsuranceTypeID {
			itJSON = fiber.Map{"id": t.ID, "name": t.Name}
		}
		for _, ct := range t.CoverageTypes {
			if ct.ID == q.CoverageTypeID {
				ctJSON = fiber.Map{"id": ct.ID, "insurance_type_id": ct.InsuranceTypeID, "name": ct.Name}
			}
		}
	}
	if itJSON == nil {
		itJSON = fiber.Map{"id": q.InsuranceTypeID}
	}
	if ctJSON == nil {
		ctJSON = fiber.Map{"id": q.CoverageTypeID, "insurance_type_id": q.InsuranceTypeID}
	}

	vehicle := fiber.Map{
		"id":                  q.ID,
		"plate_number":        q.VehicleAttributes.PlateNumber,
		"chassis_number":      q.VehicleAttributes.ChassisNumber,
		"engine_number":       q.VehicleAttributes.EngineNumber,
		"year_of_manufacture": q.VehicleAttributes.YearOfManufacture,
		"make":                q.VehicleAttributes.Make,
		"model":               q.VehicleAttributes.Model,
		"estimated_value":     strconv.FormatFloat(q.VehicleAttributes.EstimatedValue, 'f', -1, 64),
	}
	for _, name := range []string{
		"front_view_photo", "back_view_photo", "left_view_photo", "right_view_photo",
		"engine_photo", "chassis_number_photo", "libre_photo",
	} {
		vehicle[name+"_url"] = q.PhotoURLs[name]
	}

	return fiber.Map{
		"id":     q.ID,
		"status": q.Status,
		"form_data": fiber.Map{
			"coverage_amount":           q.CoverageAmount,
			"vehicle_details":           q.VehicleDetails,
			"current_residence_address": q.ResidenceAddress,
		},
		"user":           userJSON,
		"insurance_type": itJSON,
		"coverage_type":  ctJSON,
		"vehicle":        vehicle,
	}
}
