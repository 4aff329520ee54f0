package callback

import (
	"fmt"
	"io"
	"strings"

	"github.com/born-ml/bornfit/internal/history"
	"github.com/born-ml/bornfit/internal/params"
)

const milestoneRule = 60

// Milestone reports the first epoch at which a metric reached a threshold.
//
// The epoch is latched on the first epoch whose Monitor value reaches
// Threshold and never changes afterwards. Setting threshold, monitor or
// lower_is_better through params re-arms the latch: the next epoch end
// searches the whole history for the first epoch meeting the new condition.
// At the end of training a message framed by separator lines reports the
// latched epoch, or that the threshold was never reached.
type Milestone struct {
	Monitor       string
	Threshold     float64
	Label         string
	LowerIsBetter bool
	// Sink overrides the trainer's output when set.
	Sink io.Writer

	epoch int
	rearm bool
}

// NewMilestone creates a Milestone on valid_acc.
func NewMilestone(threshold float64) *Milestone {
	return &Milestone{
		Monitor:   "valid_acc",
		Threshold: threshold,
		Label:     "Accuracy",
	}
}

// Kind implements Callback.
func (m *Milestone) Kind() string { return "milestone" }

// Fields implements params.Node.
func (m *Milestone) Fields() []params.Field {
	return []params.Field{
		params.Func("monitor", func() string { return m.Monitor }, func(v string) {
			m.Monitor = v
			m.rearm = true
		}),
		params.Func("threshold", func() float64 { return m.Threshold }, func(v float64) {
			m.Threshold = v
			m.rearm = true
		}),
		params.Bind("label", &m.Label),
		params.Func("lower_is_better", func() bool { return m.LowerIsBetter }, func(v bool) {
			m.LowerIsBetter = v
			m.rearm = true
		}),
	}
}

// Initialize implements Callback.
func (m *Milestone) Initialize() error {
	if m.Monitor == "" {
		return fmt.Errorf("milestone: empty monitor")
	}
	m.epoch = 0
	m.rearm = false
	return nil
}

// Epoch returns the latched 1-based epoch, or 0 if the threshold was not
// reached.
func (m *Milestone) Epoch() int {
	return m.epoch
}

// Reached reports whether the threshold was reached.
func (m *Milestone) Reached() bool {
	return m.epoch > 0
}

// OnEpochEnd implements EpochEnder.
func (m *Milestone) OnEpochEnd(net Net, _ *State) error {
	h := net.History()
	if m.rearm {
		m.epoch, m.rearm = 0, false
		for i := 0; i < h.Len() && !m.Reached(); i++ {
			if err := m.check(h, i); err != nil {
				return err
			}
		}
		return nil
	}
	if m.Reached() || h.Len() == 0 {
		return nil
	}
	return m.check(h, h.Len()-1)
}

// check latches epoch i (0-based) when its monitored value meets the
// threshold.
func (m *Milestone) check(h *history.History, i int) error {
	if !h.Has(i, m.Monitor) {
		return nil
	}
	v, err := h.Float(i, m.Monitor)
	if err != nil {
		return err
	}
	if (m.LowerIsBetter && v <= m.Threshold) || (!m.LowerIsBetter && v >= m.Threshold) {
		m.epoch = i + 1
	}
	return nil
}

// OnTrainEnd implements TrainEnder.
func (m *Milestone) OnTrainEnd(net Net, _ *State) error {
	out := m.Sink
	if out == nil {
		out = net.Output()
	}
	_, err := io.WriteString(out, m.Message())
	return err
}

// Message returns the report printed at the end of training.
func (m *Milestone) Message() string {
	rule := strings.Repeat("~", milestoneRule)
	var body string
	if m.Reached() {
		body = fmt.Sprintf("%s reached %g at epoch %d!!!", m.Label, m.Threshold, m.epoch)
	} else {
		body = fmt.Sprintf("%s never reached %g :(", m.Label, m.Threshold)
	}
	return rule + "\n" + body + "\n" + rule + "\n"
}
