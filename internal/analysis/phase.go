package analysis

import (
	"math"
	"strings"

	"github.com/san-kum/popsim/internal/dynamo"
)

type Point struct{ X, Y float64 }

// PhasePortrait2D is a trajectory projected onto two components.
type PhasePortrait2D struct {
	XIndex, YIndex int
	Points         []Point
}

// NewPhasePortrait projects a trajectory onto components xIdx and yIdx.
func NewPhasePortrait(tr *dynamo.Trajectory, xIdx, yIdx int) *PhasePortrait2D {
	if tr == nil || tr.Len() == 0 {
		return nil
	}
	dim := len(tr.Samples[0].State)
	if xIdx >= dim || yIdx >= dim || xIdx < 0 || yIdx < 0 {
		return nil
	}

	portrait := &PhasePortrait2D{
		XIndex: xIdx,
		YIndex: yIdx,
		Points: make([]Point, 0, tr.Len()),
	}
	for _, s := range tr.Samples {
		portrait.Points = append(portrait.Points, Point{X: s.State[xIdx], Y: s.State[yIdx]})
	}
	return portrait
}

// PhasePortraitToASCII sketches the portrait in a width x height grid. The
// view always contains the origin. When total > 0 the line x + y = total
// is drawn as well, the boundary of a closed population. The initial state
// is marked 'o'.
func PhasePortraitToASCII(portrait *PhasePortrait2D, width, height int, total float64) string {
	if portrait == nil || len(portrait.Points) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	lo, hi := Point{}, Point{}
	for _, p := range portrait.Points {
		lo = Point{X: min(lo.X, p.X), Y: min(lo.Y, p.Y)}
		hi = Point{X: max(hi.X, p.X), Y: max(hi.Y, p.Y)}
	}
	if total > 0 {
		hi = Point{X: max(hi.X, total), Y: max(hi.Y, total)}
	}

	plane := newASCIIPlane(width, height, lo, hi)
	plane.axes()
	if total > 0 {
		for i := 0; i <= 2*width; i++ {
			x := total * float64(i) / float64(2*width)
			plane.mark(Point{X: x, Y: total - x}, '\\')
		}
	}
	for _, p := range portrait.Points[1:] {
		plane.mark(p, '•')
	}
	plane.mark(portrait.Points[0], 'o')
	return plane.String()
}

// asciiPlane maps phase-plane coordinates onto a rune grid with a 5%
// margin on every side.
type asciiPlane struct {
	cells  [][]rune
	lo, hi Point
}

func newASCIIPlane(width, height int, lo, hi Point) *asciiPlane {
	dx, dy := hi.X-lo.X, hi.Y-lo.Y
	if dx == 0 {
		dx = 1
	}
	if dy == 0 {
		dy = 1
	}
	a := &asciiPlane{
		cells: make([][]rune, height),
		lo:    Point{X: lo.X - 0.05*dx, Y: lo.Y - 0.05*dy},
		hi:    Point{X: hi.X + 0.05*dx, Y: hi.Y + 0.05*dy},
	}
	for i := range a.cells {
		a.cells[i] = []rune(strings.Repeat(" ", width))
	}
	return a
}

func (a *asciiPlane) cell(p Point) (row, col int, ok bool) {
	height, width := len(a.cells), len(a.cells[0])
	col = int(math.Round((p.X - a.lo.X) / (a.hi.X - a.lo.X) * float64(width-1)))
	row = height - 1 - int(math.Round((p.Y-a.lo.Y)/(a.hi.Y-a.lo.Y)*float64(height-1)))
	return row, col, row >= 0 && row < height && col >= 0 && col < width
}

func (a *asciiPlane) mark(p Point, r rune) {
	if row, col, ok := a.cell(p); ok {
		a.cells[row][col] = r
	}
}

// axes draws x = 0 and y = 0, which are always in view.
func (a *asciiPlane) axes() {
	row, col, _ := a.cell(Point{})
	for c := range a.cells[row] {
		a.cells[row][c] = '─'
	}
	for r := range a.cells {
		a.cells[r][col] = '│'
	}
	a.cells[row][col] = '┼'
}

func (a *asciiPlane) String() string {
	var sb strings.Builder
	for _, row := range a.cells {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
