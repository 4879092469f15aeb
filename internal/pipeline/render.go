package pipeline

import (
	"fmt"
	"strings"
)

// Render produces the canonical one-line form of a traversal, used by
// explain output and tests. Steps appear in pipeline order joined by
// arrows, each with its labels when present:
//
//	[scan(person) -> out(knows)@[friend] -> count()]
//
// Rendering is deterministic: labels are stored sorted and slot order is
// pipeline order.
func Render(t *Traversal) string {
	var b strings.Builder
	b.WriteByte('[')
	first := true
	for i := t.Head(); i != NoStep; i = t.Next(i) {
		if !first {
			b.WriteString(" -> ")
		}
		first = false
		b.WriteString(RenderStep(t.StepAt(i)))
	}
	b.WriteByte(']')
	return b.String()
}

// RenderStep produces the canonical form of a single step with its labels.
func RenderStep(s Step) string {
	var text string
	if str, ok := s.(fmt.Stringer); ok {
		text = str.String()
	} else {
		text = s.Name() + "()"
	}
	if labels := s.Labels(); len(labels) > 0 {
		text += "@[" + strings.Join(labels, ",") + "]"
	}
	return text
}
