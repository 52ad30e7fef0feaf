package console

import (
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

// Notifier prints one colored line per message. Nothing blocks or waits
// for acknowledgement.
type Notifier struct {
	mu     sync.Mutex
	out    io.Writer
	styles map[types.Severity]*color.Color
	logger zerolog.Logger
}

var _ types.Notifier = (*Notifier)(nil)

func NewNotifier(out io.Writer, logger zerolog.Logger) *Notifier {
	return &Notifier{
		out: out,
		styles: map[types.Severity]*color.Color{
			types.SeverityInfo:    color.New(color.FgCyan),
			types.SeveritySuccess: color.New(color.FgGreen),
			types.SeverityError:   color.New(color.FgRed, color.Bold),
		},
		logger: logger,
	}
}

func (n *Notifier) Notify(message string, severity types.Severity) {
	style, ok := n.styles[severity]
	if !ok {
		style = n.styles[types.SeverityInfo]
	}

	n.mu.Lock()
	style.Fprintln(n.out, prefix(severity)+message)
	n.mu.Unlock()

	n.logger.Debug().Str("severity", string(severity)).Msg(message)
}

func prefix(severity types.Severity) string {
	switch severity {
	case types.SeveritySuccess:
		return "✓ "
	case types.SeverityError:
		return "✗ "
	default:
		return "• "
	}
}
