// Package notify is the client's transient-notification surface, the
// equivalent of the toast area in a graphical front end.
package notify

import (
	"fmt"
	"io"
	"sync"
)

type Color string

const (
	Green Color = "green"
	Red   Color = "red"
)

type Notification struct {
	Message string
	Color   Color
}

type Notifier interface {
	Show(n Notification)
}

func Success(n Notifier, msg string) {
	n.Show(Notification{Message: msg, Color: Green})
}

func Failure(n Notifier, msg string) {
	n.Show(Notification{Message: msg, Color: Red})
}

// Terminal writes notifications to a writer with ANSI color.
type Terminal struct {
	W io.Writer
}

func (t *Terminal) Show(n Notification) {
	code := "32"
	if n.Color == Red {
		code = "31"
	}
	fmt.Fprintf(t.W, "\x1b[%sm%s\x1b[0m\n", code, n.Message)
}

// Recorder captures notifications for tests.
type Recorder struct {
	mu   sync.Mutex
	Sent []Notification
}

func (r *Recorder) Show(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, n)
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.Sent))
	copy(out, r.Sent)
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = nil
}
