package notify

import (
	"time"

	"github.com/matheus3301/wgram/internal/bus"
	"go.uber.org/zap"
)

// BusPresenter logs rendered notifications and publishes them as
// "notify.rendered" bus events.
type BusPresenter struct {
	bus    *bus.Bus
	logger *zap.Logger
}

func NewBusPresenter(b *bus.Bus, logger *zap.Logger) *BusPresenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BusPresenter{bus: b, logger: logger}
}

func (p *BusPresenter) Present(rendered []Rendered) {
	for _, r := range rendered {
		var last string
		if n := len(r.Lines); n > 0 {
			last = r.Lines[n-1].Text
		}
		p.logger.Info("notification",
			zap.Int32("group_id", int32(r.GroupID)),
			zap.Int64("chat_id", int64(r.ChatID)),
			zap.String("title", r.Title),
			zap.Int32("total", r.TotalCount),
			zap.String("last", last),
		)
	}
	if p.bus != nil {
		p.bus.Publish(bus.Event{
			Kind:      bus.KindNotifyRendered,
			Timestamp: time.Now(),
			Payload:   rendered,
		})
	}
}
