package extension

import (
	"context"
	"fmt"
)

// RegistrationKey is the Event.Data key carrying []EventRegistration
const RegistrationKey = "events"

// AnnounceRegistration emits an EventRegister notification for the named events
func AnnounceRegistration(ctx context.Context, emitter Emitter, names ...string) {
	regs := make([]EventRegistration, len(names))
	for i, name := range names {
		regs[i] = EventRegistration{Name: name}
	}
	emitter.Emit(ctx, EventRegister, map[string]interface{}{RegistrationKey: regs})
}

// ForwardRegistrations relays registrations announced on emitter to the host
// through conn, so the host starts delivering those events.
func ForwardRegistrations(emitter Emitter, conn Connection) {
	emitter.On(EventRegister, func(ctx context.Context, event Event) error {
		regs, ok := event.Data[RegistrationKey].([]EventRegistration)
		if !ok || len(regs) == 0 {
			return nil
		}
		if _, err := conn.SendRequest(ctx, EventRegister, regs); err != nil {
			return fmt.Errorf("forwarding event registration: %w", err)
		}
		return nil
	})
}
