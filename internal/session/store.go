// Package session is the single source of truth for the authenticated
// user and the bearer access token. Nothing else in the client writes
// either; the refresh scheduler and the auth operations below are the
// only mutators.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/BITS-DEVSEC/im-client/internal/api"
	"github.com/BITS-DEVSEC/im-client/internal/nav"
	"github.com/BITS-DEVSEC/im-client/internal/notify"
)

// User is the durable anchor of a session. It is persisted to the
// state directory on login/verification; the access token never is.
type User struct {
	ID          int      `json:"id"`
	Email       string   `json:"email,omitempty"`
	PhoneNumber string   `json:"phone_number,omitempty"`
	Roles       []string `json:"roles"`
}

type Credentials struct {
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Password    string `json:"password"`
}

type CustomerRegistration struct {
	PhoneNumber          string `json:"phone_number"`
	FIN                  string `json:"fin"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type UserRegistration struct {
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	Role                 string `json:"role"`
}

type OTPVerification struct {
	PhoneNumber string `json:"phone_number"`
	OTP         string `json:"otp"`
}

type EmailVerification struct {
	Email             string `json:"email"`
	VerificationToken string `json:"verification_token"`
}

type PasswordReset struct {
	Email                string `json:"email"`
	ResetToken           string `json:"reset_token"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// sessionData is what the backend returns on login/verify/refresh.
type sessionData struct {
	User        *User  `json:"user"`
	AccessToken string `json:"access_token"`
}

const invalidCredentialsMsg = "Please check your phone number or password again"

type Store struct {
	mu          sync.Mutex
	user        *User
	accessToken string
	loading     bool
	listeners   []func(token string)

	api       *api.Client
	userFile  *UserFile
	notifier  notify.Notifier
	navigator nav.Navigator
	log       *zap.SugaredLogger
}

func NewStore(client *api.Client, userFile *UserFile, notifier notify.Notifier, navigator nav.Navigator, log *zap.SugaredLogger) *Store {
	return &Store{
		api:       client,
		userFile:  userFile,
		notifier:  notifier,
		navigator: navigator,
		log:       log,
	}
}

// IsAuthenticated holds iff both the user record and a token are set.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil && s.accessToken != ""
}

func (s *Store) CurrentUser() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// OnTokenChange registers a listener invoked (outside the store lock)
// every time the access token is set or cleared.
func (s *Store) OnTokenChange(fn func(token string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) setSession(user *User, token string) {
	s.mu.Lock()
	s.user = user
	s.accessToken = token
	fns := append([]func(string){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(token)
	}
}

func (s *Store) setToken(token string) {
	s.mu.Lock()
	s.accessToken = token
	fns := append([]func(string){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(token)
	}
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// clearSession wipes memory and durable state. It reports whether
// there was anything to clear so refresh failures tear down exactly
// once even when two refreshes race.
func (s *Store) clearSession() bool {
	s.mu.Lock()
	had := s.user != nil || s.accessToken != ""
	s.user = nil
	s.accessToken = ""
	fns := append([]func(string){}, s.listeners...)
	s.mu.Unlock()
	if err := s.userFile.Clear(); err != nil {
		s.log.Warnw("failed to clear stored user", "err", err)
	}
	if had {
		for _, fn := range fns {
			fn("")
		}
	}
	return had
}

// Login authenticates with an email or phone number plus password.
// The error is rethrown after notifying so the calling form can react.
func (s *Store) Login(ctx context.Context, creds Credentials) error {
	data, err := s.api.DoJSON(ctx, http.MethodPost, "/auth/login", creds, "")
	if err != nil {
		msg := loginErrorMessage(err)
		notify.Failure(s.notifier, msg)
		return errors.New(msg)
	}
	var sd sessionData
	if err := json.Unmarshal(data, &sd); err != nil {
		msg := "An error occurred during login"
		notify.Failure(s.notifier, msg)
		return fmt.Errorf("%s: %w", msg, err)
	}
	s.setSession(sd.User, sd.AccessToken)
	if err := s.userFile.Save(sd.User); err != nil {
		s.log.Warnw("failed to persist user record", "err", err)
	}
	notify.Success(s.notifier, "Login successful")
	s.navigator.Go(nav.ScreenDashboard, nil)
	return nil
}

func loginErrorMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.IsInvalidCredentials() {
		return invalidCredentialsMsg
	}
	return api.Message(err, "An error occurred during login")
}

// Logout is best-effort against the backend; locally it always
// succeeds.
func (s *Store) Logout(ctx context.Context) {
	token := s.AccessToken()
	if _, err := s.api.DoJSON(ctx, http.MethodDelete, "/auth/logout", nil, token); err != nil {
		s.log.Warnw("logout request failed", "err", err)
	}
	s.clearSession()
	notify.Success(s.notifier, "Logged out successfully")
	s.navigator.Go(nav.ScreenLogin, nil)
}

// RegisterCustomer starts the phone-number flow; on success the caller
// is redirected to OTP verification carrying the phone number.
func (s *Store) RegisterCustomer(ctx context.Context, data CustomerRegistration) error {
	if _, err := s.api.DoJSON(ctx, http.MethodPost, "/auth/customer_register", data, ""); err != nil {
		msg := api.Message(err, "An error occurred during registration")
		notify.Failure(s.notifier, msg)
		return errors.New(msg)
	}
	notify.Success(s.notifier, "OTP sent successfully")
	s.navigator.Go(nav.ScreenVerifyOTP, url.Values{"phone": {data.PhoneNumber}})
	return nil
}

// RegisterUser starts the email flow; on success the caller is
// redirected to login to await email verification.
func (s *Store) RegisterUser(ctx context.Context, data UserRegistration) error {
	if _, err := s.api.DoJSON(ctx, http.MethodPost, "/auth/register", data, ""); err != nil {
		notify.Failure(s.notifier, api.Message(err, "An error occurred during registration"))
		return err
	}
	notify.Success(s.notifier, "Registration successful. Please verify your email.")
	s.navigator.Go(nav.ScreenLogin, nil)
	return nil
}

// VerifyOTP exchanges a phone number and one-time code for a session.
// Post-conditions match Login.
func (s *Store) VerifyOTP(ctx context.Context, data OTPVerification) error {
	raw, err := s.api.DoJSON(ctx, http.MethodPost, "/auth/verify_otp", data, "")
	if err != nil {
		notify.Failure(s.notifier, api.Message(err, "OTP verification failed"))
		return err
	}
	var sd sessionData
	if err := json.Unmarshal(raw, &sd); err != nil {
		notify.Failure(s.notifier, "OTP verification failed")
		return err
	}
	s.setSession(sd.User, sd.AccessToken)
	if err := s.userFile.Save(sd.User); err != nil {
		s.log.Warnw("failed to persist user record", "err", err)
	}
	notify.Success(s.notifier, "OTP verified successfully")
	s.navigator.Go(nav.ScreenDashboard, nil)
	return nil
}

// VerifyEmail is a stateless one-shot; it does not create a session.
func (s *Store) VerifyEmail(ctx context.Context, data EmailVerification) error {
	if _, err := s.api.DoJSON(ctx, http.MethodPost, "/auth/verify_email", data, ""); err != nil {
		notify.Failure(s.notifier, api.Message(err, "Email verification failed"))
		return err
	}
	notify.Success(s.notifier, "Email verified successfully")
	s.navigator.Go(nav.ScreenLogin, nil)
	return nil
}

func (s *Store) ForgotPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	if _, err := s.api.DoJSON(ctx, http.MethodPost, "/auth/forgot_password", body, ""); err != nil {
		notify.Failure(s.notifier, api.Message(err, "Password reset request failed"))
		return err
	}
	notify.Success(s.notifier, "Password reset instructions sent")
	return nil
}

func (s *Store) ResetPassword(ctx context.Context, data PasswordReset) error {
	if _, err := s.api.DoJSON(ctx, http.MethodPost, "/auth/reset_password", data, ""); err != nil {
		notify.Failure(s.notifier, api.Message(err, "Password reset failed"))
		return err
	}
	notify.Success(s.notifier, "Password reset successfully")
	s.navigator.Go(nav.ScreenLogin, nil)
	return nil
}

// RefreshAuthToken exchanges the refresh cookie for a new access token
// and restores the durable user record into memory. Teardown on
// failure is the refresher's responsibility.
func (s *Store) RefreshAuthToken(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	raw, err := s.api.DoJSON(ctx, http.MethodPost, "/auth/refresh", nil, "")
	if err != nil {
		return err
	}
	var sd sessionData
	if err := json.Unmarshal(raw, &sd); err != nil {
		return fmt.Errorf("malformed refresh response: %w", err)
	}
	stored, err := s.userFile.Load()
	if err != nil {
		s.log.Warnw("failed to load stored user", "err", err)
	}
	s.mu.Lock()
	if stored != nil {
		s.user = stored
	}
	s.mu.Unlock()
	s.setToken(sd.AccessToken)
	return nil
}
