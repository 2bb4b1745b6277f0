// Package nav carries navigation signals from the session and wizard
// layers to whatever front end is driving them.
package nav

import (
	"net/url"
	"sync"
)

type Screen string

const (
	ScreenLogin     Screen = "login"
	ScreenDashboard Screen = "dashboard"
	ScreenVerifyOTP Screen = "verify-otp"
	ScreenPolicies  Screen = "policies"
)

type Navigator interface {
	// Go switches to the target screen. Query parameters (for example
	// the phone number carried to the OTP screen) are URL-encoded by
	// the receiver.
	Go(screen Screen, query url.Values)
}

// Recorder captures navigations for tests.
type Recorder struct {
	mu    sync.Mutex
	Moves []Move
}

type Move struct {
	Screen Screen
	Query  url.Values
}

func (r *Recorder) Go(screen Screen, query url.Values) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Moves = append(r.Moves, Move{Screen: screen, Query: query})
}

func (r *Recorder) Last() (Move, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Moves) == 0 {
		return Move{}, false
	}
	return r.Moves[len(r.Moves)-1], true
}
