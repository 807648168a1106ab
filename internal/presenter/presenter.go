// Package presenter renders classification outcomes into the result region.
package presenter

import (
	"fmt"
	"regexp"

	"github.com/example/sortify/internal/classify"
)

// Style is the visual severity cue of a rendering.
type Style string

const (
	StylePositive Style = "positive"
	StyleNegative Style = "negative"
)

// Rendering is the full content of the result region.
type Rendering struct {
	Message string `json:"message"`
	Style   Style  `json:"style"`
}

// Display is the result region. Each Render replaces whatever was shown before.
type Display interface {
	Render(Rendering)
}

// Notifier receives alert level notices, such as a denied camera.
type Notifier interface {
	Notify(message string)
}

// Presenter is the only writer of the result region.
type Presenter struct {
	display  Display
	notifier Notifier
}

// New returns a Presenter writing to display and sending alerts to notifier.
func New(display Display, notifier Notifier) *Presenter {
	return &Presenter{display: display, notifier: notifier}
}

// Present renders result into the display.
func (p *Presenter) Present(result classify.Result) {
	p.display.Render(Render(result))
}

// Alert raises an alert level notice. It does not touch the result region.
func (p *Presenter) Alert(message string) {
	if p.notifier != nil {
		p.notifier.Notify(message)
	}
}

// Render formats a result without displaying it.
func Render(result classify.Result) Rendering {
	switch r := result.(type) {
	case classify.Success:
		style := StyleNegative
		if IsRecyclable(r.Label) {
			style = StylePositive
		}
		return Rendering{Message: FormatSuccess(r.Label, r.Confidence), Style: style}
	case classify.Failure:
		return Rendering{Message: r.Message, Style: StyleNegative}
	default:
		return Rendering{Message: fmt.Sprintf("unsupported result %T", result), Style: StyleNegative}
	}
}

// FormatSuccess renders "<label> (confidence: XX.X%)".
func FormatSuccess(label string, confidence float64) string {
	return fmt.Sprintf("%s (confidence: %.1f%%)", label, confidence*100)
}

var (
	recyclablePattern = regexp.MustCompile(`(?i)recyclable`)
	// "Non-Recyclable", "Non Recyclable", "NonRecyclable", "not_recyclable", "Unrecyclable"...
	negatedPattern = regexp.MustCompile(`(?i)(\b(non|not)[\s_-]*|\bun-?)recyclable`)
)

// IsRecyclable reports whether label names the recyclable category. The backend emits
// "♻️ Recyclable" and "🚯 Non-Recyclable"; any negated spelling counts as not recyclable.
func IsRecyclable(label string) bool {
	return recyclablePattern.MatchString(label) && !negatedPattern.MatchString(label)
}
