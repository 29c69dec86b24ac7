package app

import (
	"context"
	"sync"
	"time"

	"velora-scenario-service/internal/domain"
	"velora-scenario-service/internal/logger"
)

// IdentityOracle resolves who is playing. An empty identity means anonymous.
type IdentityOracle interface {
	CurrentIdentity(ctx context.Context) (string, error)
}

// QuotaStore is the device-scoped counter of anonymous submissions. The
// read-modify-write is not required to be atomic across processes or tabs.
type QuotaStore interface {
	Count(ctx context.Context) (int, error)
	IncrementAndRead(ctx context.Context) (int, error)
}

// ProgressStore upserts one progress row per (user, question); later writes win.
type ProgressStore interface {
	Upsert(ctx context.Context, progress domain.Progress) error
}

// Phase is where the current question sits in its answer cycle.
type Phase string

const (
	PhaseUnanswered Phase = "unanswered"
	PhaseSelected   Phase = "selected"
	PhaseRevealed   Phase = "revealed"
	PhaseGated      Phase = "gated"
)

// Outcome reports what a Submit call did.
type Outcome string

const (
	OutcomeIgnored  Outcome = "ignored"
	OutcomeRevealed Outcome = "revealed"
	OutcomeGated    Outcome = "gated"
)

// ControllerDeps carries the controller's collaborators.
type ControllerDeps struct {
	Identity       IdentityOracle
	Quota          QuotaStore
	Progress       ProgressStore
	AnonymousLimit int
	Logger         *logger.Logger
	Now            func() time.Time
}

// State is the raw session state of a controller.
type State struct {
	Index            int
	SelectedAnswerID string
	Revealed         bool
	Gated            bool
	Identity         string
}

// Controller drives the select/submit/next cycle over one scenario's questions.
// Transitions that are not allowed in the current state are no-ops.
type Controller struct {
	questions []domain.Question
	identity  IdentityOracle
	quota     QuotaStore
	progress  ProgressStore
	limit     int
	log       *logger.Logger
	now       func() time.Time

	writesMu sync.Mutex
	writes   int
	drained  chan struct{} // closed when writes drops to zero

	mu       sync.Mutex
	index    int
	selected string
	revealed bool
	gated    bool
	userID   string
}

// NewController initializes a controller on the first question. questions must be
// non-empty and already normalized by the loading layer.
func NewController(questions []domain.Question, deps ControllerDeps) *Controller {
	c := &Controller{
		questions: questions,
		identity:  deps.Identity,
		quota:     deps.Quota,
		progress:  deps.Progress,
		limit:     deps.AnonymousLimit,
		log:       deps.Logger,
		now:       deps.Now,
	}
	if c.limit <= 0 {
		c.limit = 5
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.quota == nil {
		c.quota = &processQuota{}
	}
	return c
}

// ResolveIdentity asks the oracle for the current identity. Failures leave the
// controller anonymous.
func (c *Controller) ResolveIdentity(ctx context.Context) string {
	if c.identity == nil {
		return ""
	}
	id, err := c.identity.CurrentIdentity(ctx)
	if err != nil {
		c.log.Warn("identity resolution failed, continuing anonymously", "error", err)
		id = ""
	}
	c.SetIdentity(id)
	return id
}

// SetIdentity records a sign-in or sign-out that happened elsewhere.
func (c *Controller) SetIdentity(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
}

// Select tentatively chooses an option of the current question.
func (c *Controller) Select(answerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revealed {
		return nil
	}
	if _, ok := c.questions[c.index].Option(answerID); !ok {
		return domain.ErrOptionNotFound
	}
	c.selected = answerID
	return nil
}

// Submit locks in the selection. Anonymous players consume one unit of quota per
// submit and are gated once the post-increment count reaches the limit.
// Identified players get the reveal immediately; the progress write runs in the
// background and is best effort.
func (c *Controller) Submit(ctx context.Context) Outcome {
	c.mu.Lock()
	if c.selected == "" || c.revealed {
		c.mu.Unlock()
		return OutcomeIgnored
	}

	if c.userID == "" {
		n, err := c.quota.IncrementAndRead(ctx)
		if err != nil {
			// fail open
			c.log.Warn("anonymous quota increment failed", "error", err)
		} else if n >= c.limit {
			c.gated = true
			c.mu.Unlock()
			c.log.Info("anonymous quota exhausted", "count", n, "limit", c.limit)
			return OutcomeGated
		}
		c.revealed = true
		c.gated = false
		c.mu.Unlock()
		return OutcomeRevealed
	}

	// a signed-in retry after the gate reveals with the kept selection
	c.revealed = true
	c.gated = false
	question := c.questions[c.index]
	option, _ := question.Option(c.selected)
	record := domain.Progress{
		UserID:           c.userID,
		QuestionID:       question.ID,
		SelectedAnswerID: option.ID,
		CompositeScore:   option.Scores.Composite,
		AnsweredAt:       c.now().UTC(),
	}
	c.mu.Unlock()

	c.persist(ctx, record)
	return OutcomeRevealed
}

// persist outlives the caller's cancellation; a later Next never aborts it.
func (c *Controller) persist(ctx context.Context, record domain.Progress) {
	if c.progress == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	c.writesMu.Lock()
	if c.writes == 0 {
		c.drained = make(chan struct{})
	}
	c.writes++
	c.writesMu.Unlock()

	go func() {
		defer c.writeDone()
		if err := c.progress.Upsert(ctx, record); err != nil {
			c.log.Error("progress upsert failed",
				"user_id", record.UserID,
				"question_id", record.QuestionID,
				"error", err,
			)
		}
	}()
}

func (c *Controller) writeDone() {
	c.writesMu.Lock()
	defer c.writesMu.Unlock()
	c.writes--
	if c.writes == 0 {
		close(c.drained)
	}
}

// Flush waits for in-flight progress writes, or until ctx ends.
func (c *Controller) Flush(ctx context.Context) error {
	c.writesMu.Lock()
	if c.writes == 0 {
		c.writesMu.Unlock()
		return nil
	}
	drained := c.drained
	c.writesMu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next advances to the following question. Only reachable after a reveal and never
// past the last question.
func (c *Controller) Next() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.revealed || c.index >= len(c.questions)-1 {
		return false
	}
	c.index++
	c.selected = ""
	c.revealed = false
	c.gated = false
	return true
}

// Remaining reports how many anonymous submissions are left before the gate.
// ok is false for identified players or when the counter cannot be read.
func (c *Controller) Remaining(ctx context.Context) (remaining int, ok bool) {
	c.mu.Lock()
	anonymous := c.userID == ""
	c.mu.Unlock()
	if !anonymous {
		return 0, false
	}
	n, err := c.quota.Count(ctx)
	if err != nil {
		c.log.Warn("anonymous quota read failed", "error", err)
		return 0, false
	}
	// the submit that brings the count to the limit is the one that gets gated
	remaining = c.limit - 1 - n
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// State returns a copy of the raw session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Index:            c.index,
		SelectedAnswerID: c.selected,
		Revealed:         c.revealed,
		Gated:            c.gated,
		Identity:         c.userID,
	}
}

// Phase reports the answer-cycle phase of the current question.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phaseLocked()
}

func (c *Controller) phaseLocked() Phase {
	switch {
	case c.revealed:
		return PhaseRevealed
	case c.gated:
		return PhaseGated
	case c.selected != "":
		return PhaseSelected
	default:
		return PhaseUnanswered
	}
}

// processQuota counts for the lifetime of one controller only.
type processQuota struct {
	mu sync.Mutex
	n  int
}

func (q *processQuota) Count(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n, nil
}

func (q *processQuota) IncrementAndRead(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.n++
	return q.n, nil
}
