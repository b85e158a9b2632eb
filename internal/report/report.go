package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/popsim/internal/analysis"
	"github.com/san-kum/popsim/internal/dynamo"
	"github.com/san-kum/popsim/internal/physics"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

// Round3 rounds to three decimals, the precision of the iteration table.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func format(v float64) string {
	return strconv.FormatFloat(Round3(v), 'f', -1, 64)
}

// Title renders a styled heading.
func Title(s string) string {
	return titleStyle.Render(s)
}

// Table writes one row per Euler iteration: the state before the step, its
// derivative, and the state after.
func Table(w io.Writer, labels []string, tr *dynamo.Trajectory) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := []string{"ITER", "T"}
	header = append(header, labels...)
	for _, l := range labels {
		header = append(header, "d"+l+"/dt")
	}
	header = append(header, "NEW T")
	for _, l := range labels {
		header = append(header, "NEW "+l)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, row := range tr.Rows() {
		cells := []string{strconv.Itoa(row.Iteration), format(row.T)}
		for _, v := range row.State {
			cells = append(cells, format(v))
		}
		for _, v := range row.Derivative {
			cells = append(cells, format(v))
		}
		cells = append(cells, format(row.NewT))
		for _, v := range row.NewState {
			cells = append(cells, format(v))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// Summary writes the final state, metrics and warnings of a trajectory.
func Summary(w io.Writer, labels []string, tr *dynamo.Trajectory) {
	final := tr.Final()
	fmt.Fprintf(w, "%s %d\n", labelStyle.Render("samples:"), tr.Len())
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("final t:"), format(final.T))
	for i, v := range final.State {
		name := "x" + strconv.Itoa(i)
		if i < len(labels) {
			name = labels[i]
		}
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(name+":"), format(v))
	}
	if tr.Halted {
		fmt.Fprintln(w, labelStyle.Render("halted by stop condition"))
	}

	names := make([]string, 0, len(tr.Metrics))
	for name := range tr.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s %.4f\n", labelStyle.Render(name+":"), tr.Metrics[name])
	}

	for _, warn := range tr.Warnings {
		fmt.Fprintln(w, warnStyle.Render("warning: "+warn.String()))
	}
}

// ModelSummary writes quantities specific to the built-in models: the
// fixed points of logistic growth, or R0 and the population drift of an
// epidemic run. Other models write nothing.
func ModelSummary(w io.Writer, dyn dynamo.System, p dynamo.Params, tr *dynamo.Trajectory) {
	if tr.Len() == 0 {
		return
	}
	switch m := dyn.(type) {
	case *physics.Logistic:
		unstable, stable := m.Equilibria(p)
		fmt.Fprintf(w, "%s %s (unstable), %s (stable)\n", labelStyle.Render("equilibria:"), format(unstable), format(stable))
	case *physics.SIR:
		n0, n1 := m.Total(tr.Samples[0].State), m.Total(tr.Final().State)
		fmt.Fprintf(w, "%s %.4f\n", labelStyle.Render("R0:"), m.ReproductionNumber(p, n0))
		fmt.Fprintf(w, "%s %s -> %s\n", labelStyle.Render("population:"), format(n0), format(n1))
	}
}

// Plot renders each state component against time. Components beyond
// maxPlots are skipped.
func Plot(labels []string, states [][]float64, maxPlots int) string {
	if len(states) == 0 {
		return ""
	}
	numVars := len(states[0])
	if maxPlots > 0 && numVars > maxPlots {
		numVars = maxPlots
	}

	var sb strings.Builder
	for k := 0; k < numVars; k++ {
		data := make([]float64, len(states))
		for i := range states {
			if k < len(states[i]) {
				data[i] = states[i][k]
			}
		}

		caption := fmt.Sprintf("x%d vs time", k)
		if k < len(labels) {
			caption = labels[k] + " vs time"
		}

		sb.WriteString(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(caption),
		))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// PlotMany overlays several series of one component, e.g. an ensemble.
func PlotMany(caption string, series [][]float64) string {
	if len(series) == 0 {
		return ""
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	)
}

// GridCSV writes a sampled field, one row per point: position components
// then derivative components.
func GridCSV(w io.Writer, labels []string, g *analysis.Grid) error {
	cw := csv.NewWriter(w)
	if g.Len() > 0 {
		dim := len(g.Points[0].Position)
		header := make([]string, 0, 2*dim)
		for i := 0; i < dim; i++ {
			header = append(header, columnName(labels, g.Components, i))
		}
		for i := 0; i < dim; i++ {
			header = append(header, "d"+columnName(labels, g.Components, i))
		}
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	for _, pt := range g.Points {
		row := make([]string, 0, len(pt.Position)+len(pt.Derivative))
		for _, v := range pt.Position {
			row = append(row, strconv.FormatFloat(v, 'g', 6, 64))
		}
		for _, v := range pt.Derivative {
			row = append(row, strconv.FormatFloat(v, 'g', 6, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// columnName labels column i of a grid. Slope fields carry time as
// component -1 in position 0.
func columnName(labels []string, components []int, i int) string {
	if len(components) > 0 && components[0] == -1 {
		if i == 0 {
			return "t"
		}
		if i < len(components) {
			i = components[i]
		}
	}
	if i < len(labels) {
		return labels[i]
	}
	return "x" + strconv.Itoa(i)
}

// Curve writes nullcline points on their domain axes.
func Curve(w io.Writer, labels []string, c *analysis.Curve) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := make([]string, len(c.Axes))
	for i, a := range c.Axes {
		header[i] = strings.ToUpper(columnName(labels, nil, a))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, pt := range c.Points {
		cells := make([]string, len(c.Axes))
		for i, a := range c.Axes {
			cells[i] = format(pt[a])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
