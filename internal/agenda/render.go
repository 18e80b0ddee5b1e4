package agenda

import (
	"fmt"
	"image"
	"image/draw"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"epdpage/internal/paged"
)

const (
	headerHeight = 18
	lineHeight   = 14
	margin       = 4
	indent       = 8
)

var face = basicfont.Face7x13

type rowKind int

const (
	rowDay rowKind = iota
	rowEvent
	rowMore
	rowEmpty
)

type row struct {
	kind rowKind
	text string
	col  paged.Color
}

// ViewOptions controls the agenda layout.
type ViewOptions struct {
	// Days is the number of days listed, starting with the day of now.
	Days int
	// Highlight lists case-insensitive keywords; matching summaries are
	// drawn in the accent color.
	Highlight []string
	// Status is printed right-aligned in the header, e.g. "87%".
	Status string
}

// View is a laid-out agenda. Draw may be called any number of times, once
// per page, and always paints the same picture.
type View struct {
	size   image.Point
	title  string
	status string
	rows   []row
}

// NewView lays out occs for a surface of the given logical size. Rows that
// do not fit are summarized by a trailing "+N more" row.
func NewView(size image.Point, now time.Time, occs []Occurrence, opts ViewOptions) *View {
	if opts.Days <= 0 {
		opts.Days = 1
	}
	v := &View{
		size:   size,
		title:  now.Format("Mon 2 Jan 2006"),
		status: opts.Status,
	}

	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	var rows []row
	for d := 0; d < opts.Days; d++ {
		day := today.AddDate(0, 0, d)
		next := day.AddDate(0, 0, 1)

		var events []row
		for _, o := range occs {
			if !overlaps(o.Start, o.End, day, next) {
				continue
			}
			col := paged.Black
			if highlighted(o.Summary, opts.Highlight) {
				col = paged.Accent
			}
			events = append(events, row{kind: rowEvent, text: timeLabel(o, day, next) + " " + o.Summary, col: col})
		}
		if len(events) == 0 {
			continue
		}
		rows = append(rows, row{kind: rowDay, text: dayLabel(day, today), col: paged.Black})
		rows = append(rows, events...)
	}
	if len(rows) == 0 {
		rows = []row{{kind: rowEmpty, text: "No events", col: paged.Black}}
	}

	fit := max((size.Y-headerHeight-2)/lineHeight, 1)
	if len(rows) > fit {
		hidden := 0
		for _, r := range rows[fit-1:] {
			if r.kind == rowEvent {
				hidden++
			}
		}
		rows = append(rows[:fit-1:fit-1], row{kind: rowMore, text: fmt.Sprintf("+%d more", hidden), col: paged.Black})
	}
	v.rows = rows
	return v
}

// Lines returns the text of every row, day headings unindented.
func (v *View) Lines() []string {
	out := make([]string, len(v.rows))
	for i, r := range v.rows {
		if r.kind == rowEvent {
			out[i] = "  " + r.text
			continue
		}
		out[i] = r.text
	}
	return out
}

// Draw paints the agenda into dst. Only rows crossing dst.Bounds() are
// drawn, which keeps a paged canvas cheap to repaint.
func (v *View) Draw(dst draw.Image) {
	b := dst.Bounds()
	width := v.size.X

	header := image.Rect(0, 0, width, headerHeight)
	if header.Overlaps(b) {
		draw.Draw(dst, header, image.NewUniform(paged.Black), image.Point{}, draw.Src)
		drawText(dst, margin, 13, truncate(v.title, width-2*margin), paged.White)
		if v.status != "" {
			w := font.MeasureString(face, v.status).Ceil()
			drawText(dst, width-margin-w, 13, v.status, paged.White)
		}
	}

	y := headerHeight + 2
	for _, r := range v.rows {
		band := image.Rect(0, y, width, y+lineHeight)
		if band.Overlaps(b) {
			x := margin
			if r.kind == rowEvent || r.kind == rowMore {
				x += indent
			}
			drawText(dst, x, y+11, truncate(r.text, width-x-margin), r.col)
			if r.kind == rowDay {
				rule := image.Rect(margin, y+lineHeight-1, width-margin, y+lineHeight)
				draw.Draw(dst, rule, image.NewUniform(paged.Black), image.Point{}, draw.Src)
			}
		}
		y += lineHeight
	}
}

func drawText(dst draw.Image, x, baseline int, s string, c paged.Color) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}

// truncate shortens s with a trailing "..." until it fits maxWidth pixels.
func truncate(s string, maxWidth int) string {
	if font.MeasureString(face, s).Ceil() <= maxWidth {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		t := strings.TrimRight(string(runes), " ") + "..."
		if font.MeasureString(face, t).Ceil() <= maxWidth {
			return t
		}
	}
	return ""
}

func timeLabel(o Occurrence, day, next time.Time) string {
	switch {
	case o.AllDay, !o.Start.After(day) && !o.End.Before(next):
		return "all day"
	case o.Start.Before(day):
		return " ... "
	default:
		return o.Start.Format("15:04")
	}
}

func dayLabel(day, today time.Time) string {
	switch day.Sub(today).Round(24*time.Hour) / (24 * time.Hour) {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	default:
		return day.Format("Mon 2 Jan")
	}
}

func highlighted(summary string, keywords []string) bool {
	s := strings.ToLower(summary)
	for _, k := range keywords {
		if k != "" && strings.Contains(s, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
