package naming

import (
	"strings"

	"go.uber.org/zap"

	"github.com/lixenwraith/wayfinder/waypoint"
)

// State is the capture lifecycle state
type State uint8

const (
	StateIdle State = iota
	StateCapturing
)

func (s State) String() string {
	if s == StateCapturing {
		return "capturing"
	}
	return "idle"
}

// Result is what a text prompt yields when it closes
type Result struct {
	Text     string
	Canceled bool
}

// Prompt is the on-screen text capture capability
// Open must not block; onResult is invoked exactly once, from the owner's update loop
type Prompt interface {
	Open(title, initial string, onResult func(Result))
}

// Committer applies a submitted name
// Implemented by the session: store add, local selection, propagation and schedule reset
type Committer interface {
	CommitWaypoint(name string, pos waypoint.Point) int
	// RestoreGuidance recomputes the schedule from the current selection after a cancel
	RestoreGuidance()
}

// Session is the single in-flight naming request of a local process
type Session struct {
	Anchor      waypoint.Point
	DefaultName string
	Owner       string
}

// Capture is the naming state machine: Idle -> Capturing -> Idle
type Capture struct {
	prompt    Prompt
	committer Committer
	logger    *zap.Logger

	state   State
	session Session
	// Bumped on every Begin so a late result from an earlier prompt is ignored
	generation uint64
}

// NewCapture creates an idle capture
func NewCapture(prompt Prompt, committer Committer, logger *zap.Logger) *Capture {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capture{
		prompt:    prompt,
		committer: committer,
		logger:    logger,
	}
}

// State returns the current lifecycle state
func (c *Capture) State() State { return c.state }

// Active reports whether a naming session is open
func (c *Capture) Active() bool { return c.state == StateCapturing }

// Session returns the open session
func (c *Capture) Session() (Session, bool) {
	return c.session, c.state == StateCapturing
}

// Blocks reports whether selection-changing input from owner is suppressed
func (c *Capture) Blocks(owner string) bool {
	return c.state == StateCapturing && c.session.Owner == owner
}

// Begin opens a naming session anchored at pos for owner
// A second Begin while capturing is a no-op and returns false
func (c *Capture) Begin(owner string, pos waypoint.Point, count int) bool {
	if c.state == StateCapturing {
		return false
	}

	c.state = StateCapturing
	c.session = Session{
		Anchor:      pos,
		DefaultName: waypoint.DefaultName(count),
		Owner:       owner,
	}
	c.generation++
	gen := c.generation

	c.logger.Debug("naming started",
		zap.String("owner", owner),
		zap.String("default", c.session.DefaultName))

	if c.prompt != nil {
		c.prompt.Open("Name waypoint", c.session.DefaultName, func(r Result) {
			if gen != c.generation {
				return
			}
			if r.Canceled {
				c.Cancel(r.Text)
			} else {
				c.Submit(r.Text)
			}
		})
	}
	return true
}

// Submit closes the session and creates the waypoint
// Returns the new index, or -1 when no session was open or the store rejected it
func (c *Capture) Submit(text string) int {
	if c.state != StateCapturing {
		return -1
	}
	sess := c.session
	c.close()

	name := strings.TrimSpace(text)
	if name == "" {
		name = sess.DefaultName
	}

	idx := -1
	if c.committer != nil {
		idx = c.committer.CommitWaypoint(name, sess.Anchor)
	}
	c.logger.Debug("naming submitted", zap.String("name", name), zap.Int("index", idx))
	return idx
}

// Cancel closes the session without mutation; partial text is discarded
func (c *Capture) Cancel(partial string) {
	if c.state != StateCapturing {
		return
	}
	owner := c.session.Owner
	c.close()

	c.logger.Debug("naming canceled",
		zap.String("owner", owner),
		zap.Int("discarded_len", len(partial)))

	if c.committer != nil {
		c.committer.RestoreGuidance()
	}
}

func (c *Capture) close() {
	c.state = StateIdle
	c.session = Session{}
}
