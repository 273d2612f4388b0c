package wa

import (
	"context"
	"fmt"
	"time"

	"go.mau.fi/whatsmeow"

	"github.com/matheus3301/wgram/internal/bus"
)

// StartPairing begins the QR pairing flow in the background. Each code is
// published as "wa.qr_code"; the outcome as "wa.paired" or "wa.pair_failed".
func (a *Adapter) StartPairing(ctx context.Context) error {
	if a.IsLoggedIn() {
		return ErrAlreadyLoggedIn
	}
	qrChan, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("get QR channel: %w", err)
	}
	// Connect must be called after GetQRChannel.
	if err := a.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	go func() {
		for item := range qrChan {
			if done := a.pairingStep(item); done {
				return
			}
		}
	}()
	return nil
}

func (a *Adapter) pairingStep(item whatsmeow.QRChannelItem) (done bool) {
	switch {
	case IsQREvent(item):
		a.bus.Publish(busEvent(bus.KindWAQRCode, item.Code))
		return false
	case item.Event == "success":
		a.bus.Publish(busEvent(bus.KindWAPaired, a.PhoneNumber()))
		return true
	case item.Event == "timeout":
		a.bus.Publish(busEvent(bus.KindWAPairFailed, "timeout"))
		return true
	case item.Error != nil:
		a.bus.Publish(busEvent(bus.KindWAPairFailed, item.Error.Error()))
		return true
	}
	return false
}

// IsQREvent checks whether a QR channel item is a QR code event.
func IsQREvent(item whatsmeow.QRChannelItem) bool {
	return item.Event == "code"
}

func busEvent(kind string, payload any) bus.Event {
	return bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
