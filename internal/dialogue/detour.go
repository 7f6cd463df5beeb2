package dialogue

import (
	"fmt"

	"formula-agent/internal/domain"
)

// Phase is the position of a turn inside the tool-call detour protocol.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseToolRequested
	PhaseResultInjected
	PhaseResolved
)

// String returns a human-readable phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseToolRequested:
		return "tool_requested"
	case PhaseResultInjected:
		return "result_injected"
	case PhaseResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Detour tracks one tool-request / tool-result round trip and the slot the
// dialogue must come back to afterwards. The zero value is idle.
type Detour struct {
	phase  Phase
	resume Directive
	call   domain.ToolCall
	result string
}

// Phase returns the current phase.
func (d *Detour) Phase() Phase { return d.phase }

// Active reports whether a tool was requested during this turn.
func (d *Detour) Active() bool { return d.phase != PhaseIdle }

// Target returns the pending resume directive.
func (d *Detour) Target() Directive { return d.resume }

// Call returns the tool call that started the detour.
func (d *Detour) Call() domain.ToolCall { return d.call }

// Result returns the injected tool output.
func (d *Detour) Result() string { return d.result }

// Request records a tool call and pins the resume target.
func (d *Detour) Request(call domain.ToolCall, resume Directive) error {
	if d.phase != PhaseIdle {
		return fmt.Errorf("dialogue: tool request in phase %s", d.phase)
	}
	if call.Function.Name == "" {
		return fmt.Errorf("dialogue: tool call without a function name")
	}
	d.call = call
	d.resume = resume
	d.phase = PhaseToolRequested
	return nil
}

// Inject records the tool output that will be replayed to the generator.
func (d *Detour) Inject(result string) error {
	if d.phase != PhaseToolRequested {
		return fmt.Errorf("dialogue: tool result in phase %s", d.phase)
	}
	d.result = result
	d.phase = PhaseResultInjected
	return nil
}

// Resolve closes the detour. A reply that does not target the pending slot
// is replaced with that slot's default question, prefixed by the tool output;
// the second return value reports whether the reply was kept.
func (d *Detour) Resolve(reply domain.Reply) (domain.Reply, bool, error) {
	if d.phase != PhaseResultInjected {
		return domain.Reply{}, false, fmt.Errorf("dialogue: resolve in phase %s", d.phase)
	}
	d.phase = PhaseResolved
	if d.resume.Done || reply.Component == d.resume.Slot.Key {
		return reply, true, nil
	}
	q := Question(d.resume.Slot)
	if d.result != "" {
		q.Text = d.result + "\n\n" + q.Text
	}
	return q, false, nil
}
