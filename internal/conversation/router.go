package conversation

import (
	"context"

	"github.com/salonware/booking-assistant/internal/booking"
)

// Router sends each classified turn to exactly one handler. Booking
// intents drive the FSM; everything else is conversational.
type Router struct {
	booking    *BookingHandler
	nonBooking *NonBookingHandler
}

func NewRouter(booking *BookingHandler, nonBooking *NonBookingHandler) *Router {
	if booking == nil {
		panic("conversation: booking handler is required")
	}
	if nonBooking == nil {
		panic("conversation: non-booking handler is required")
	}
	return &Router{booking: booking, nonBooking: nonBooking}
}

func (r *Router) Dispatch(ctx context.Context, turn *Turn) (Reply, error) {
	if booking.IsBookingIntent(turn.Intent.Type) {
		return r.booking.Handle(ctx, turn)
	}
	return r.nonBooking.Handle(ctx, turn)
}
