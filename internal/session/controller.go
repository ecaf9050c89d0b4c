// Package session drives a single decision through its four-stage
// workflow: compose a question, brainstorm pros and cons against a
// 60-second countdown, review, and commit the result to the store.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/minute/internal/storage"
)

// BrainstormSeconds is the length of the timed brainstorm window.
const BrainstormSeconds = 60

// Stage is the controller's position in the workflow.
type Stage int

const (
	StageComposing Stage = iota
	StageTiming
	StageReviewing
	StageCommitted
)

func (s Stage) String() string {
	switch s {
	case StageComposing:
		return "composing"
	case StageTiming:
		return "timing"
	case StageReviewing:
		return "reviewing"
	case StageCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// Input errors are local and non-fatal: the controller's state is
// unchanged when one is returned.
var (
	ErrEmptyQuestion    = errors.New("question must not be empty")
	ErrEmptyItem        = errors.New("item text must not be empty")
	ErrNoFinalDecision  = errors.New("a final decision is required")
	ErrBadFinalDecision = errors.New("final decision must be yes, no or undecided")
	ErrItemOutOfRange   = errors.New("item index out of range")
	ErrWrongStage       = errors.New("action not allowed in current stage")
)

// Payload is the finalized session content handed to the store's create
// operation.
type Payload struct {
	Question      string
	Pros          []storage.ListItem
	Cons          []storage.ListItem
	FinalDecision string
	Notes         string
	TimeSpent     int
	IsCompleted   bool
}

// Creator is the store's create contract, the controller's only external
// collaborator.
type Creator interface {
	CreateDecision(ctx context.Context, p Payload) (storage.Decision, error)
}

// State is a point-in-time snapshot of the session for display.
type State struct {
	Stage     Stage
	Question  string
	Pros      []storage.ListItem
	Cons      []storage.ListItem
	Remaining int
	TimeSpent int
	Running   bool
}

// Controller owns one session at a time. All methods are safe for use
// from the caller's goroutine alongside the internal countdown tick.
type Controller struct {
	creator  Creator
	interval time.Duration

	mu         sync.Mutex
	stage      Stage
	question   string
	pros       []storage.ListItem
	cons       []storage.ListItem
	remaining  int
	timeSpent  int
	running    bool
	cancelTick context.CancelFunc
}

// New creates a Controller committing through creator. tickInterval is
// the countdown resolution; <= 0 defaults to one second.
func New(creator Creator, tickInterval time.Duration) *Controller {
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	return &Controller{
		creator:   creator,
		interval:  tickInterval,
		stage:     StageComposing,
		remaining: BrainstormSeconds,
		timeSpent: BrainstormSeconds,
	}
}

// Start moves from Composing to Timing and begins the countdown. The
// question must be non-empty after trimming; otherwise the transition is
// refused with no state change.
func (c *Controller) Start(question string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stage != StageComposing {
		return ErrWrongStage
	}
	q := strings.TrimSpace(question)
	if q == "" {
		return ErrEmptyQuestion
	}

	c.question = q
	c.remaining = BrainstormSeconds
	c.timeSpent = BrainstormSeconds
	c.stage = StageTiming
	c.running = true

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelTick = cancel
	go c.runCountdown(ctx)
	return nil
}

func (c *Controller) runCountdown(ctx context.Context) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if c.tick() {
				return
			}
		}
	}
}

// tick consumes one second of the countdown. Reaching zero transitions to
// Reviewing exactly once; a stopped countdown never transitions again.
// Returns true when the countdown is finished.
func (c *Controller) tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return true
	}
	c.remaining--
	if c.remaining > 0 {
		return false
	}

	c.remaining = 0
	c.stopCountdownLocked()
	// Expiring means the full window was used; the stored value is the
	// canonical zero seconds remaining.
	c.timeSpent = 0
	c.stage = StageReviewing
	return true
}

// AddPro appends a pro during the timed window.
func (c *Controller) AddPro(text string) error {
	return c.addItem(&c.pros, text)
}

// AddCon appends a con during the timed window.
func (c *Controller) AddCon(text string) error {
	return c.addItem(&c.cons, text)
}

func (c *Controller) addItem(list *[]storage.ListItem, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stage != StageTiming {
		return ErrWrongStage
	}
	t := strings.TrimSpace(text)
	if t == "" {
		return ErrEmptyItem
	}
	*list = append(*list, storage.ListItem{Text: t, CreatedAt: time.Now().UTC()})
	return nil
}

// RemovePro removes the pro at index i.
func (c *Controller) RemovePro(i int) error {
	return c.removeItem(&c.pros, i)
}

// RemoveCon removes the con at index i.
func (c *Controller) RemoveCon(i int) error {
	return c.removeItem(&c.cons, i)
}

func (c *Controller) removeItem(list *[]storage.ListItem, i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stage != StageTiming {
		return ErrWrongStage
	}
	if i < 0 || i >= len(*list) {
		return ErrItemOutOfRange
	}
	*list = append((*list)[:i], (*list)[i+1:]...)
	return nil
}

// FinishEarly stops the countdown and moves to Reviewing before the
// window expires. The remaining counter is frozen at its last value for
// display; timeSpent keeps its default.
func (c *Controller) FinishEarly() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stage != StageTiming {
		return ErrWrongStage
	}
	c.stopCountdownLocked()
	c.stage = StageReviewing
	return nil
}

// Save commits the session: exactly one create call with the assembled
// payload. On success the controller resets to Composing and returns the
// persisted record. On failure it returns to Reviewing so the caller may
// retry.
func (c *Controller) Save(ctx context.Context, finalDecision, notes string) (storage.Decision, error) {
	c.mu.Lock()
	if c.stage != StageReviewing {
		c.mu.Unlock()
		return storage.Decision{}, ErrWrongStage
	}

	fd := strings.TrimSpace(finalDecision)
	switch fd {
	case "":
		c.mu.Unlock()
		return storage.Decision{}, ErrNoFinalDecision
	case storage.DecisionYes, storage.DecisionNo, storage.DecisionUndecided:
	default:
		c.mu.Unlock()
		return storage.Decision{}, ErrBadFinalDecision
	}

	p := Payload{
		Question:      c.question,
		Pros:          append([]storage.ListItem(nil), c.pros...),
		Cons:          append([]storage.ListItem(nil), c.cons...),
		FinalDecision: fd,
		Notes:         notes,
		TimeSpent:     c.timeSpent,
		IsCompleted:   true,
	}
	c.stage = StageCommitted
	c.mu.Unlock()

	d, err := c.creator.CreateDecision(ctx, p)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.stage = StageReviewing
		return storage.Decision{}, err
	}
	c.resetLocked()
	return d, nil
}

// Reset unconditionally returns to Composing, discarding all transient
// data without committing. Valid from any stage.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopCountdownLocked()
	c.resetLocked()
}

// State returns a snapshot with copies of the item lists.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Stage:     c.stage,
		Question:  c.question,
		Pros:      append([]storage.ListItem(nil), c.pros...),
		Cons:      append([]storage.ListItem(nil), c.cons...),
		Remaining: c.remaining,
		TimeSpent: c.timeSpent,
		Running:   c.running,
	}
}

// Stage returns the current workflow stage.
func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// stopCountdownLocked is the single stop path shared by zero-reached,
// finish-early, and reset. mu must be held.
func (c *Controller) stopCountdownLocked() {
	c.running = false
	if c.cancelTick != nil {
		c.cancelTick()
		c.cancelTick = nil
	}
}

// resetLocked clears all transient fields to initial values. mu must be
// held and the countdown already stopped.
func (c *Controller) resetLocked() {
	c.stage = StageComposing
	c.question = ""
	c.pros = nil
	c.cons = nil
	c.remaining = BrainstormSeconds
	c.timeSpent = BrainstormSeconds
	c.running = false
}
