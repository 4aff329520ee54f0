package callback

import (
	"go.uber.org/zap"

	"github.com/born-ml/bornfit/internal/params"
)

// Checkpoint saves the trainer whenever the Monitor flag of the last
// epoch is set, and records the "event_cp" flag.
//
// An empty Monitor saves after every epoch.
type Checkpoint struct {
	Monitor string
	Dir     string

	saved int
}

// NewCheckpoint creates a Checkpoint on valid_loss_best writing to dir.
func NewCheckpoint(dir string) *Checkpoint {
	return &Checkpoint{Monitor: "valid_loss_best", Dir: dir}
}

// Kind implements Callback.
func (c *Checkpoint) Kind() string { return "checkpoint" }

// Fields implements params.Node.
func (c *Checkpoint) Fields() []params.Field {
	return []params.Field{
		params.Bind("monitor", &c.Monitor),
		params.Bind("dirname", &c.Dir),
	}
}

// Initialize implements Callback.
func (c *Checkpoint) Initialize() error {
	c.saved = 0
	return nil
}

// Saved returns the number of checkpoints written since Initialize.
func (c *Checkpoint) Saved() int {
	return c.saved
}

// OnEpochEnd implements EpochEnder.
func (c *Checkpoint) OnEpochEnd(net Net, _ *State) error {
	h := net.History()
	save := true
	if c.Monitor != "" {
		var err error
		if save, err = h.Bool(-1, c.Monitor); err != nil {
			return err
		}
	}
	if save {
		// The flag is set before saving so the written history contains it.
		if err := h.Flag("event_cp", true); err != nil {
			return err
		}
		if err := net.SaveParams(c.Dir); err != nil {
			return err
		}
		c.saved++
		net.Logger().Debug("checkpoint saved", zap.String("dir", c.Dir), zap.Int("epoch", h.Len()))
		return nil
	}
	return h.Flag("event_cp", false)
}
