package application

import (
	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/events"
	"github.com/bnema/odfops/internal/ops"
)

var _ ops.Emitter = (*Notifier)(nil)

// Notifier delivers document events to session subscribers. Hand it to the
// document as its emitter.
type Notifier struct {
	bus events.Bus[domain.Event]
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Emit(event domain.Event) {
	n.bus.Publish(event)
}

func (n *Notifier) Subscribe(fn func(domain.Event)) (unsubscribe func()) {
	return n.bus.Subscribe(fn)
}
