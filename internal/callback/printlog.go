package callback

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/born-ml/bornfit/internal/history"
	"github.com/born-ml/bornfit/internal/params"
)

const (
	colorBest  = "\033[36m"
	colorReset = "\033[0m"
)

// PrintLog renders one table row per epoch.
//
// Columns are "epoch" first, "dur" last and every other metric in between
// in sorted order. Batch sizes, "*_best" flags and "event_*" keys are not
// shown. The header is printed with the first row; later rows keep the same
// column widths.
type PrintLog struct {
	// Color highlights values whose "<key>_best" flag is set.
	Color bool
	// Sink overrides the trainer's output when set.
	Sink io.Writer
	// Skip lists additional keys to hide.
	Skip []string

	columns []string
	widths  []int
}

// NewPrintLog creates a PrintLog.
func NewPrintLog() *PrintLog {
	return &PrintLog{}
}

// Kind implements Callback.
func (p *PrintLog) Kind() string { return "print_log" }

// Fields implements params.Node.
func (p *PrintLog) Fields() []params.Field {
	return []params.Field{
		params.Bind("color", &p.Color),
	}
}

// Initialize implements Callback.
func (p *PrintLog) Initialize() error {
	p.columns = nil
	p.widths = nil
	return nil
}

// OnEpochEnd implements EpochEnder.
func (p *PrintLog) OnEpochEnd(net Net, _ *State) error {
	out := p.Sink
	if out == nil {
		out = net.Output()
	}
	return p.render(out, net.History())
}

func (p *PrintLog) render(out io.Writer, h *history.History) error {
	values, err := h.Values(-1)
	if err != nil {
		return err
	}

	header := p.columns == nil
	if header {
		p.columns = p.selectColumns(values)
		p.widths = make([]int, len(p.columns))
		for i, c := range p.columns {
			p.widths[i] = len(c)
		}
	}

	row := make([]string, len(p.columns))
	for i, c := range p.columns {
		v, ok := values[c]
		if !ok {
			row[i] = ""
			continue
		}
		cell := formatCell(c, v)
		if len(cell) > p.widths[i] && header {
			p.widths[i] = len(cell)
		}
		if p.Color {
			if best, _ := h.Bool(-1, c+"_best"); best {
				cell = colorBest + cell + colorReset
			}
		}
		row[i] = cell
	}

	table := tablewriter.NewWriter(out)
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetHeaderAlignment(tablewriter.ALIGN_RIGHT)
	table.SetColumnSeparator(" ")
	table.SetCenterSeparator(" ")
	table.SetRowSeparator("-")
	for i, w := range p.widths {
		table.SetColMinWidth(i, w)
	}
	if header {
		table.SetHeader(p.columns)
		table.SetHeaderLine(true)
	} else {
		table.SetHeaderLine(false)
	}
	table.Append(row)
	table.Render()
	return nil
}

func (p *PrintLog) selectColumns(values map[string]float64) []string {
	skip := make(map[string]bool, len(p.Skip))
	for _, k := range p.Skip {
		skip[k] = true
	}

	var middle []string
	for k := range values {
		switch {
		case k == history.EpochKey, k == "dur", skip[k]:
		case strings.HasSuffix(k, "_best"), strings.HasSuffix(k, "_batch_size"), strings.HasPrefix(k, "event_"):
		default:
			middle = append(middle, k)
		}
	}
	sort.Strings(middle)

	cols := make([]string, 0, len(middle)+2)
	cols = append(cols, history.EpochKey)
	cols = append(cols, middle...)
	if _, ok := values["dur"]; ok && !skip["dur"] {
		cols = append(cols, "dur")
	}
	return cols
}

func formatCell(key string, v float64) string {
	if key == history.EpochKey {
		return strconv.Itoa(int(v))
	}
	return fmt.Sprintf("%.4f", v)
}
