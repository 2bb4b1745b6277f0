package mockapi

import (
	"strings"
	"sync"

	"github.com/BITS-DEVSEC/im-client/internal/wizard"
)

// Account is a registered user with its credential material. Password
// is stored as a bcrypt hash.
type Account struct {
	ID           int
	Email        string
	PhoneNumber  string
	FIN          string
	PasswordHash string
	Roles        []string
	Verified     bool
}

// QuotationRecord is a stored quotation request with the parsed payload
// fields and the URLs of any uploaded photos, keyed by the multipart
// field name (front_view_photo etc).
type QuotationRecord struct {
	ID                int
	UserID            int
	Status            string
	InsuranceTypeID   int
	CoverageTypeID    int
	CoverageAmount    float64
	VehicleDetails    wizard.VehicleDetails
	ResidenceAddress  wizard.ResidenceAddress
	VehicleAttributes wizard.VehicleAttributes
	PhotoURLs         map[string]string
}

// MemStore holds everything in memory behind one mutex. Good enough
// for a development double; nothing survives a restart.
type MemStore struct {
	mu sync.Mutex

	nextUserID  int
	nextQuoteID int

	users   map[int]*Account
	byPhone map[string]int
	byEmail map[string]int

	otps        map[string]string // phone -> code
	emailTokens map[string]string // email -> verification token
	resetTokens map[string]string // email -> reset token
	sessions    map[string]int    // refresh token -> user id

	quotes  map[int]*QuotationRecord
	uploads map[string][]byte // upload key -> bytes
}

func NewMemStore() *MemStore {
	return &MemStore{
		nextUserID:  1,
		nextQuoteID: 1,
		users:       make(map[int]*Account),
		byPhone:     make(map[string]int),
		byEmail:     make(map[string]int),
		otps:        make(map[string]string),
		emailTokens: make(map[string]string),
		resetTokens: make(map[string]string),
		sessions:    make(map[string]int),
		quotes:      make(map[int]*QuotationRecord),
		uploads:     make(map[string][]byte),
	}
}

func (s *MemStore) CreateAccount(a *Account) *Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.nextUserID
	s.nextUserID++
	s.users[a.ID] = a
	if a.PhoneNumber != "" {
		s.byPhone[a.PhoneNumber] = a.ID
	}
	if a.Email != "" {
		s.byEmail[strings.ToLower(a.Email)] = a.ID
	}
	return a
}

func (s *MemStore) AccountByID(id int) (*Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.users[id]
	return a, ok
}

func (s *MemStore) AccountByPhone(phone string) (*Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPhone[phone]
	if !ok {
		return nil, false
	}
	return s.users[id], true
}

func (s *MemStore) AccountByEmail(email string) (*Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, false
	}
	return s.users[id], true
}

func (s *MemStore) SetOTP(phone, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps[phone] = code
}

// OTPFor returns the pending code for a phone number. Exposed so tests
// can complete the verification flow without intercepting logs.
func (s *MemStore) OTPFor(phone string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.otps[phone]
	return code, ok
}

func (s *MemStore) ConsumeOTP(phone, code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	want, ok := s.otps[phone]
	if !ok || want != code {
		return false
	}
	delete(s.otps, phone)
	return true
}

func (s *MemStore) SetEmailToken(email, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emailTokens[strings.ToLower(email)] = token
}

func (s *MemStore) EmailTokenFor(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.emailTokens[strings.ToLower(email)]
	return t, ok
}

func (s *MemStore) ConsumeEmailToken(email, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	want, ok := s.emailTokens[key]
	if !ok || want != token {
		return false
	}
	delete(s.emailTokens, key)
	return true
}

func (s *MemStore) SetResetToken(email, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetTokens[strings.ToLower(email)] = token
}

func (s *MemStore) ResetTokenFor(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.resetTokens[strings.ToLower(email)]
	return t, ok
}

func (s *MemStore) ConsumeResetToken(email, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	want, ok := s.resetTokens[key]
	if !ok || want != token {
		return false
	}
	delete(s.resetTokens, key)
	return true
}

func (s *MemStore) CreateSession(refreshToken string, userID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[refreshToken] = userID
}

func (s *MemStore) SessionUser(refreshToken string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sessions[refreshToken]
	return id, ok
}

func (s *MemStore) DeleteSession(refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, refreshToken)
}

func (s *MemStore) CreateQuote(q *QuotationRecord) *QuotationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = s.nextQuoteID
	s.nextQuoteID++
	if q.PhotoURLs == nil {
		q.PhotoURLs = make(map[string]string)
	}
	s.quotes[q.ID] = q
	return q
}

func (s *MemStore) Quote(id int) (*QuotationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	return q, ok
}

func (s *MemStore) QuotesByUser(userID int) []*QuotationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*QuotationRecord
	for i := 1; i < s.nextQuoteID; i++ {
		if q, ok := s.quotes[i]; ok && q.UserID == userID {
			out = append(out, q)
		}
	}
	return out
}

func (s *MemStore) SaveUpload(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[key] = data
}

func (s *MemStore) Upload(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.uploads[key]
	return b, ok
}
