package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/popsim/internal/analysis"
	"github.com/san-kum/popsim/internal/dynamo"
)

var trajectoryColors = []string{"#4fc3f7", "#81c784", "#ffb74d", "#ba68c8", "#e57373", "#fff176"}

const (
	arrowColor     = "#5c6bc0"
	nullclineColor = "#ff5252"
	overlayColor   = "#bdbdbd"
)

type series struct {
	name   string
	color  string
	points []analysis.Point
}

type arrow struct {
	x, y, u, v float64
}

// PhasePlane collects the layers of a phase-plane figure: a quiver field,
// nullclines, trajectories and reference lines.
type PhasePlane struct {
	Width, Height  int
	XLabel, YLabel string

	arrows       []arrow
	nullclines   []series
	trajectories []series
	overlays     []series
}

func NewPhasePlane(width, height int, xLabel, yLabel string) *PhasePlane {
	return &PhasePlane{Width: width, Height: height, XLabel: xLabel, YLabel: yLabel}
}

// AddField adds one arrow per grid point, plotting position components i
// and j.
func (pp *PhasePlane) AddField(g *analysis.Grid, i, j int) {
	if g == nil {
		return
	}
	x, y, u, v := g.Quiver(i, j)
	for k := range x {
		pp.arrows = append(pp.arrows, arrow{x[k], y[k], u[k], v[k]})
	}
}

func (pp *PhasePlane) AddNullcline(name string, c *analysis.Curve) {
	if c == nil || c.Empty() {
		return
	}
	x, y := c.XY()
	pp.nullclines = append(pp.nullclines, series{name: name, points: zip(x, y)})
}

func (pp *PhasePlane) AddTrajectory(name string, tr *dynamo.Trajectory, i, j int) {
	if tr == nil || tr.Len() == 0 {
		return
	}
	pp.trajectories = append(pp.trajectories, series{name: name, points: zip(tr.Series(i), tr.Series(j))})
}

// AddTimeSeries plots component k of tr against time.
func (pp *PhasePlane) AddTimeSeries(name string, tr *dynamo.Trajectory, k int) {
	if tr == nil || tr.Len() == 0 {
		return
	}
	pp.trajectories = append(pp.trajectories, series{name: name, points: zip(tr.Times(), tr.Series(k))})
}

// AddLine adds a dashed reference line such as N = S + I.
func (pp *PhasePlane) AddLine(name string, points []analysis.Point) {
	if len(points) < 2 {
		return
	}
	pp.overlays = append(pp.overlays, series{name: name, points: points})
}

// AddLevels draws the points of a one-dimensional nullcline as horizontal
// lines across [tMin, tMax] of a (t, x) slope plot.
func (pp *PhasePlane) AddLevels(name string, c *analysis.Curve, tMin, tMax float64) {
	if c == nil || c.Empty() {
		return
	}
	x, _ := c.XY()
	for _, v := range x {
		pp.overlays = append(pp.overlays, series{
			name:   fmt.Sprintf("%s = %g", name, v),
			color:  nullclineColor,
			points: []analysis.Point{{X: tMin, Y: v}, {X: tMax, Y: v}},
		})
	}
}

func zip(x, y []float64) []analysis.Point {
	n := min(len(x), len(y))
	pts := make([]analysis.Point, n)
	for i := 0; i < n; i++ {
		pts[i] = analysis.Point{X: x[i], Y: y[i]}
	}
	return pts
}

type bounds struct {
	minX, maxX, minY, maxY float64
}

func (b *bounds) include(x, y float64) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return
	}
	b.minX, b.maxX = math.Min(b.minX, x), math.Max(b.maxX, x)
	b.minY, b.maxY = math.Min(b.minY, y), math.Max(b.maxY, y)
}

func (pp *PhasePlane) bounds() bounds {
	b := bounds{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	for _, a := range pp.arrows {
		b.include(a.x, a.y)
	}
	for _, group := range [][]series{pp.nullclines, pp.trajectories, pp.overlays} {
		for _, s := range group {
			for _, p := range s.points {
				b.include(p.X, p.Y)
			}
		}
	}
	if math.IsInf(b.minX, 1) {
		return bounds{0, 1, 0, 1}
	}

	rangeX, rangeY := b.maxX-b.minX, b.maxY-b.minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	b.minX -= rangeX * 0.05
	b.maxX += rangeX * 0.05
	b.minY -= rangeY * 0.05
	b.maxY += rangeY * 0.05
	return b
}

// SVG renders the figure. Arrows are normalised to a common length so the
// field shows direction only.
func (pp *PhasePlane) SVG() string {
	b := pp.bounds()
	w, h := float64(pp.Width), float64(pp.Height)
	sx := func(x float64) float64 { return (x - b.minX) / (b.maxX - b.minX) * w }
	sy := func(y float64) float64 { return h - (y-b.minY)/(b.maxY-b.minY)*h }

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, pp.Width, pp.Height, pp.Width, pp.Height))

	if len(pp.arrows) > 0 {
		cell := math.Min(w, h) / math.Sqrt(float64(len(pp.arrows))) * 0.4
		sb.WriteString(fmt.Sprintf(`<g class="field" stroke="%s" stroke-width="1" fill="none">
`, arrowColor))
		for _, a := range pp.arrows {
			writeArrow(&sb, sx(a.x), sy(a.y), a.u*w/(b.maxX-b.minX), -a.v*h/(b.maxY-b.minY), cell)
		}
		sb.WriteString("</g>\n")
	}

	for _, s := range pp.overlays {
		color := s.color
		if color == "" {
			color = overlayColor
		}
		writePath(&sb, "overlay", s, color, `stroke-dasharray="6 4"`, sx, sy)
	}
	for _, s := range pp.nullclines {
		writePoints(&sb, "nullcline", s, nullclineColor, sx, sy)
	}
	for i, s := range pp.trajectories {
		color := s.color
		if color == "" {
			color = trajectoryColors[i%len(trajectoryColors)]
		}
		writePath(&sb, "trajectory", s, color, `stroke-width="1.5"`, sx, sy)
	}

	sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" fill="#e0e0e0" font-size="14" text-anchor="middle">%s</text>
`, w/2, h-6, escape(pp.XLabel)))
	sb.WriteString(fmt.Sprintf(`<text x="14" y="%.1f" fill="#e0e0e0" font-size="14" transform="rotate(-90 14 %.1f)" text-anchor="middle">%s</text>
`, h/2, h/2, escape(pp.YLabel)))

	sb.WriteString("</svg>")
	return sb.String()
}

// writeArrow draws a fixed-length arrow at (x, y) in the direction (u, v),
// both in screen space. A zero vector is drawn as a dot.
func writeArrow(sb *strings.Builder, x, y, u, v, length float64) {
	norm := math.Hypot(u, v)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="1"/>
`, x, y))
		return
	}
	dx, dy := u/norm*length, v/norm*length
	tx, ty := x+dx, y+dy

	head := length * 0.35
	angle := math.Atan2(dy, dx)
	lx := tx - head*math.Cos(angle-math.Pi/6)
	ly := ty - head*math.Sin(angle-math.Pi/6)
	rx := tx - head*math.Cos(angle+math.Pi/6)
	ry := ty - head*math.Sin(angle+math.Pi/6)

	sb.WriteString(fmt.Sprintf(`<path d="M%.1f,%.1f L%.1f,%.1f M%.1f,%.1f L%.1f,%.1f L%.1f,%.1f"/>
`, x, y, tx, ty, lx, ly, tx, ty, rx, ry))
}

func writePath(sb *strings.Builder, class string, s series, color, attrs string, sx, sy func(float64) float64) {
	if len(s.points) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf(`<path class="%s" fill="none" stroke="%s" %s d="M`, class, color, attrs))
	for i, p := range s.points {
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", sx(p.X), sy(p.Y)))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", sx(p.X), sy(p.Y)))
		}
	}
	sb.WriteString(`"><title>`)
	sb.WriteString(escape(s.name))
	sb.WriteString("</title></path>\n")
}

// writePoints draws a point set. Nullclines may consist of several
// disjoint lines, so their samples are not joined.
func writePoints(sb *strings.Builder, class string, s series, color string, sx, sy func(float64) float64) {
	sb.WriteString(fmt.Sprintf(`<g class="%s" fill="%s"><title>%s</title>
`, class, color, escape(s.name)))
	for _, p := range s.points {
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="2"/>
`, sx(p.X), sy(p.Y)))
	}
	sb.WriteString("</g>\n")
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
