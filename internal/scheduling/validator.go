// Package scheduling validates chosen appointment slots and computes
// availability from business hours and stylist calendars.
package scheduling

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/salonware/booking-assistant/internal/booking"
	"github.com/salonware/booking-assistant/internal/salon"
	"github.com/salonware/booking-assistant/pkg/logging"
)

// minAdvanceDays is the customer-facing lead time for new bookings.
const minAdvanceDays = 3

// SlotError is a validation failure whose message is safe to show the
// customer.
type SlotError struct {
	Reason string
}

func (e *SlotError) Error() string { return e.Reason }

func slotErrorf(format string, args ...any) *SlotError {
	return &SlotError{Reason: fmt.Sprintf(format, args...)}
}

// Validator applies the structural and policy checks on a slot the
// customer picked.
type Validator struct {
	salon  salon.Repository
	loc    *time.Location
	logger *logging.Logger
	now    func() time.Time
}

var _ booking.SlotChecker = (*Validator)(nil)

// NewValidator builds a validator bound to the salon's schedule data
// and local timezone.
func NewValidator(repo salon.Repository, loc *time.Location, logger *logging.Logger) *Validator {
	if repo == nil {
		panic("scheduling: salon repository is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Validator{
		salon:  repo,
		loc:    loc,
		logger: logger.WithComponent("scheduling.validator"),
		now:    time.Now,
	}
}

// ValidateSlot runs both layers: structure first, then salon policy.
func (v *Validator) ValidateSlot(ctx context.Context, slot booking.Slot) error {
	start, err := v.checkStructure(slot)
	if err != nil {
		return err
	}

	if err := v.checkAdvance(start); err != nil {
		return err
	}

	local := start.In(v.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, v.loc)

	holiday, err := v.salon.IsHoliday(ctx, day)
	if err != nil {
		return fmt.Errorf("scheduling: holiday lookup: %w", err)
	}
	if holiday {
		return slotErrorf("el %s es festivo y el salón permanece cerrado", local.Format("02/01"))
	}

	hours, err := v.salon.HoursFor(ctx, local.Weekday())
	if err != nil {
		return fmt.Errorf("scheduling: business hours lookup: %w", err)
	}
	if _, _, open := hours.Window(); !open {
		return slotErrorf("ese día el salón está cerrado")
	}
	return nil
}

// CheckFreshness re-validates a slot loaded from a checkpoint. Only the
// parse and lead-time rules apply; a slot that was once policy-valid
// stays policy-valid.
func (v *Validator) CheckFreshness(slot booking.Slot) error {
	start, err := v.checkStructure(slot)
	if err != nil {
		return err
	}
	return v.checkAdvance(start)
}

func (v *Validator) checkStructure(slot booking.Slot) (time.Time, error) {
	if slot.StartTime == "" {
		return time.Time{}, slotErrorf("no he podido entender la fecha y la hora")
	}
	start, err := slot.Start()
	if err != nil {
		return time.Time{}, slotErrorf("no he podido entender la fecha y la hora")
	}
	local := start.In(v.loc)
	if local.Hour() == 0 && local.Minute() == 0 {
		// Date-only extractions land on midnight; a real pick never does.
		return time.Time{}, slotErrorf("necesito también la hora, no solo el día")
	}
	if slot.DurationMinutes < 0 {
		return time.Time{}, slotErrorf("la duración indicada no es válida")
	}
	return start, nil
}

// checkAdvance enforces the lead-time rule. The day count is the floor
// of the absolute difference in 24-hour chunks, so around DST changes
// a wall-clock "3 days ahead" can still be one short.
func (v *Validator) checkAdvance(start time.Time) error {
	if AdvanceDays(start, v.now()) < minAdvanceDays {
		return slotErrorf("las citas se reservan con al menos %d días de antelación", minAdvanceDays)
	}
	return nil
}

// AdvanceDays counts whole 24-hour periods between now and start,
// rounding toward minus infinity. Past starts give negative counts.
func AdvanceDays(start, now time.Time) int {
	return int(math.Floor(start.Sub(now).Hours() / 24))
}
