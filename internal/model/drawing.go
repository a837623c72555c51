package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

var ErrInvalidDrawing = errors.New("invalid drawing data")

type Kind string

const (
	KindPen       Kind = "pen"
	KindLine      Kind = "line"
	KindRectangle Kind = "rectangle"
	KindCircle    Kind = "circle"
	KindText      Kind = "text"
	KindEraser    Kind = "eraser"
)

const (
	DefaultColor = "#000000"
	DefaultWidth = 2
)

func (k Kind) Valid() bool {
	switch k {
	case KindPen, KindLine, KindRectangle, KindCircle, KindText, KindEraser:
		return true
	}
	return false
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Anchor is a position whose coordinates are each optional; a missing one
// stays null on the wire.
type Anchor struct {
	X *float64
	Y *float64
}

func (a Anchor) Point() (Point, bool) {
	if a.X == nil || a.Y == nil {
		return Point{}, false
	}
	return Point{X: *a.X, Y: *a.Y}, true
}

type Style struct {
	Color string
	Width float64
}

// Geometry is the kind-specific part of a DrawingEvent. Exactly one of
// Path, Circle, Shape or Text.
type Geometry interface {
	geometry()
}

// Path covers free-hand strokes, lines and eraser paths. Start and End are
// only set for lines whose client reported endpoints.
type Path struct {
	Points []Point
	Start  Anchor
	End    *Point
}

type Circle struct {
	Center Anchor
	Radius *float64
}

// Shape is an origin/end box; End is nil until the client reports it.
type Shape struct {
	Origin Anchor
	End    *Point
}

type Text struct {
	Origin   Anchor
	Text     string
	FontSize *float64
}

func (Path) geometry()   {}
func (Circle) geometry() {}
func (Shape) geometry()  {}
func (Text) geometry()   {}

// DrawingEvent is one immutable drawing operation in a room history.
type DrawingEvent struct {
	ID        string
	Kind      Kind
	Style     Style
	Geometry  Geometry
	Timestamp time.Time
}

// DrawingPayload is the flat shape clients send under drawingData.
type DrawingPayload struct {
	Type     string   `json:"type"`
	Color    string   `json:"color,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Points   []Point  `json:"points,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Radius   *float64 `json:"radius,omitempty"`
	EndX     *float64 `json:"endX,omitempty"`
	EndY     *float64 `json:"endY,omitempty"`
	Text     *string  `json:"text,omitempty"`
	FontSize *float64 `json:"fontSize,omitempty"`
}

func NewEventID() string {
	return ulid.Make().String()
}

// NewDrawingEvent validates the payload kind and builds the matching geometry.
func NewDrawingEvent(p DrawingPayload, id string, at time.Time) (DrawingEvent, error) {
	kind := Kind(strings.TrimSpace(p.Type))
	if !kind.Valid() {
		return DrawingEvent{}, fmt.Errorf("%w: unknown type %q", ErrInvalidDrawing, p.Type)
	}

	style := Style{Color: p.Color, Width: DefaultWidth}
	if style.Color == "" {
		style.Color = DefaultColor
	}
	if p.Width != nil && *p.Width != 0 {
		style.Width = *p.Width
	}

	return DrawingEvent{
		ID:        id,
		Kind:      kind,
		Style:     style,
		Geometry:  geometryFor(kind, p),
		Timestamp: at,
	}, nil
}

func geometryFor(kind Kind, p DrawingPayload) Geometry {
	origin := Anchor{X: copyFloat(p.X), Y: copyFloat(p.Y)}

	switch kind {
	case KindCircle:
		return Circle{Center: origin, Radius: copyFloat(p.Radius)}
	case KindRectangle:
		return Shape{Origin: origin, End: endPoint(p)}
	case KindText:
		text := ""
		if p.Text != nil {
			text = *p.Text
		}
		return Text{Origin: origin, Text: text, FontSize: copyFloat(p.FontSize)}
	}

	path := Path{Points: append([]Point{}, p.Points...)}
	if kind != KindLine {
		return path
	}
	path.Start, path.End = origin, endPoint(p)
	// straight lines are sometimes sent as two endpoints instead of a path
	if start, ok := origin.Point(); ok && path.End != nil && len(path.Points) == 0 {
		path.Points = []Point{start, *path.End}
	}
	return path
}

func endPoint(p DrawingPayload) *Point {
	if p.EndX == nil || p.EndY == nil {
		return nil
	}
	return &Point{X: *p.EndX, Y: *p.EndY}
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// drawingWire keeps every field present so clients can rely on a fixed shape.
type drawingWire struct {
	ID        string   `json:"id"`
	Type      Kind     `json:"type"`
	Color     string   `json:"color"`
	Width     float64  `json:"width"`
	Timestamp int64    `json:"timestamp"`
	Points    []Point  `json:"points"`
	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
	Radius    *float64 `json:"radius"`
	EndX      *float64 `json:"endX"`
	EndY      *float64 `json:"endY"`
	Text      *string  `json:"text"`
	FontSize  *float64 `json:"fontSize"`
}

func (e DrawingEvent) MarshalJSON() ([]byte, error) {
	wire := drawingWire{
		ID:        e.ID,
		Type:      e.Kind,
		Color:     e.Style.Color,
		Width:     e.Style.Width,
		Timestamp: e.Timestamp.UnixMilli(),
		Points:    []Point{},
	}

	switch g := e.Geometry.(type) {
	case Path:
		if g.Points != nil {
			wire.Points = g.Points
		}
		wire.X, wire.Y = g.Start.X, g.Start.Y
		wire.EndX, wire.EndY = endFields(g.End)
	case Circle:
		wire.X, wire.Y = g.Center.X, g.Center.Y
		wire.Radius = g.Radius
	case Shape:
		wire.X, wire.Y = g.Origin.X, g.Origin.Y
		wire.EndX, wire.EndY = endFields(g.End)
	case Text:
		wire.X, wire.Y = g.Origin.X, g.Origin.Y
		wire.Text = &g.Text
		wire.FontSize = g.FontSize
	}

	return json.Marshal(wire)
}

func (e *DrawingEvent) UnmarshalJSON(data []byte) error {
	var wire drawingWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	width := wire.Width
	ev, err := NewDrawingEvent(DrawingPayload{
		Type:     string(wire.Type),
		Color:    wire.Color,
		Width:    &width,
		Points:   wire.Points,
		X:        wire.X,
		Y:        wire.Y,
		Radius:   wire.Radius,
		EndX:     wire.EndX,
		EndY:     wire.EndY,
		Text:     wire.Text,
		FontSize: wire.FontSize,
	}, wire.ID, time.UnixMilli(wire.Timestamp))
	if err != nil {
		return err
	}

	*e = ev
	return nil
}

func endFields(end *Point) (*float64, *float64) {
	if end == nil {
		return nil, nil
	}
	x, y := end.X, end.Y
	return &x, &y
}
