package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/salonware/booking-assistant/internal/booking"
	"github.com/salonware/booking-assistant/internal/calendar"
	"github.com/salonware/booking-assistant/internal/catalog"
	"github.com/salonware/booking-assistant/internal/salon"
	"github.com/salonware/booking-assistant/pkg/logging"
)

const (
	defaultGranularity = 30 * time.Minute
	sameDayLeadTime    = time.Hour
	defaultSearchDays  = 14

	// maxSlotsPerAnswer bounds how many options one reply offers.
	maxSlotsPerAnswer = 4
)

// BusyLister yields the occupied intervals of one stylist calendar.
// The calendar client implements it.
type BusyLister interface {
	ListBusy(ctx context.Context, calendarID string, from, to time.Time) ([]calendar.BusyInterval, error)
}

// StylistSource yields the active stylists for a category. The catalog
// stylist cache implements it.
type StylistSource interface {
	Get(ctx context.Context, category string) ([]catalog.Stylist, error)
}

// TimeRange restricts candidates to a window of local clock times,
// both bounds "HH:MM" and inclusive. Zero values leave a side open.
type TimeRange struct {
	After  string
	Before string
}

// DayAvailability answers a single-day availability question.
type DayAvailability struct {
	Slots           []booking.Slot
	IsSameDay       bool
	HolidayDetected bool
}

// NextRequest parametrizes a multi-day slot search.
type NextRequest struct {
	Category        string
	StylistID       string
	DurationMinutes int
	MaxDays         int
	StartDate       string // local "2006-01-02", defaults to today
}

// NextResult is the outcome of a multi-day search. SoonestAny is only
// set when another stylist can take the customer strictly earlier than
// the requested one.
type NextResult struct {
	SoonestAny   *booking.Slot
	StylistSlots []booking.Slot
}

// Availability generates bookable slots from business hours minus
// calendar busy intervals.
type Availability struct {
	salon       salon.Repository
	stylists    StylistSource
	busy        BusyLister
	loc         *time.Location
	logger      *logging.Logger
	now         func() time.Time
	granularity time.Duration
}

// NewAvailability wires the slot generator. All dependencies are
// required.
func NewAvailability(salonRepo salon.Repository, stylists StylistSource, busy BusyLister, loc *time.Location, logger *logging.Logger) *Availability {
	if salonRepo == nil || stylists == nil || busy == nil {
		panic("scheduling: salon repository, stylist source and busy lister are required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Availability{
		salon:       salonRepo,
		stylists:    stylists,
		busy:        busy,
		loc:         loc,
		logger:      logger.WithComponent("scheduling.availability"),
		now:         time.Now,
		granularity: defaultGranularity,
	}
}

type candidate struct {
	start time.Time
	slot  booking.Slot
}

// CheckDay lists the open slots of one local day. The lead-time rule
// does not apply here; IsSameDay tells the caller the answer concerns
// today and only informational use is possible.
func (a *Availability) CheckDay(ctx context.Context, category string, day time.Time, durationMin int, tr *TimeRange, stylistID string) (DayAvailability, error) {
	day = a.localMidnight(day)
	out := DayAvailability{IsSameDay: a.sameLocalDay(day, a.now())}

	holiday, err := a.salon.IsHoliday(ctx, day)
	if err != nil {
		return out, fmt.Errorf("scheduling: holiday lookup: %w", err)
	}
	if holiday {
		out.HolidayDetected = true
		return out, nil
	}

	stylists, err := a.stylistsFor(ctx, category, stylistID)
	if err != nil {
		return out, err
	}

	var all []candidate
	for _, st := range stylists {
		cands, err := a.stylistDaySlots(ctx, st, day, durationMin, tr)
		if err != nil {
			return out, err
		}
		all = append(all, cands...)
	}
	sortCandidates(all)
	for _, c := range all {
		out.Slots = append(out.Slots, c.slot)
	}
	return out, nil
}

// FindNext scans forward day by day for bookable slots. Offered slots
// always satisfy the lead-time rule so a later pick cannot bounce.
func (a *Availability) FindNext(ctx context.Context, req NextRequest) (NextResult, error) {
	var res NextResult

	maxDays := req.MaxDays
	if maxDays <= 0 {
		maxDays = defaultSearchDays
	}
	// No slot before local today+3 can pass the lead-time rule, so the
	// scan skips straight past those days.
	startDay := a.localMidnight(a.now()).AddDate(0, 0, minAdvanceDays)
	if req.StartDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.StartDate, a.loc)
		if err != nil {
			return res, slotErrorf("no he podido entender la fecha %q", req.StartDate)
		}
		if parsed.After(startDay) {
			startDay = parsed
		}
	}

	stylists, err := a.stylists.Get(ctx, req.Category)
	if err != nil {
		return res, fmt.Errorf("scheduling: list stylists: %w", err)
	}
	if req.StylistID != "" && !containsStylist(stylists, req.StylistID) {
		return res, fmt.Errorf("scheduling: stylist %s in category %s: %w", req.StylistID, req.Category, catalog.ErrStylistNotFound)
	}

	var earliestOther *candidate
	now := a.now()

	for i := 0; i < maxDays; i++ {
		day := startDay.AddDate(0, 0, i)

		holiday, err := a.salon.IsHoliday(ctx, day)
		if err != nil {
			return res, fmt.Errorf("scheduling: holiday lookup: %w", err)
		}
		if holiday {
			continue
		}

		var dayAll []candidate
		for _, st := range stylists {
			isSelected := req.StylistID == "" || st.ID == req.StylistID
			if !isSelected && earliestOther != nil {
				// The soonest alternative is already known; scanning more
				// of this stylist's days cannot improve it.
				continue
			}
			cands, err := a.stylistDaySlots(ctx, st, day, req.DurationMinutes, nil)
			if err != nil {
				return res, err
			}
			for _, c := range cands {
				if AdvanceDays(c.start, now) < minAdvanceDays {
					continue
				}
				dayAll = append(dayAll, c)
			}
		}
		sortCandidates(dayAll)

		for _, c := range dayAll {
			selected := req.StylistID == "" || c.slot.StylistID == req.StylistID
			if selected {
				if len(res.StylistSlots) < maxSlotsPerAnswer {
					res.StylistSlots = append(res.StylistSlots, c.slot)
				}
			} else if earliestOther == nil {
				cc := c
				earliestOther = &cc
			}
		}

		if len(res.StylistSlots) >= maxSlotsPerAnswer && (req.StylistID == "" || earliestOther != nil) {
			break
		}
	}

	if req.StylistID != "" && earliestOther != nil {
		offerOther := len(res.StylistSlots) == 0
		if !offerOther {
			first, err := res.StylistSlots[0].Start()
			offerOther = err == nil && earliestOther.start.Before(first)
		}
		if offerOther {
			alt := earliestOther.slot
			alt.IsSoonestAny = true
			res.SoonestAny = &alt
		}
	}
	return res, nil
}

// stylistDaySlots generates this stylist's free starts for one local
// day at the configured granularity.
func (a *Availability) stylistDaySlots(ctx context.Context, st catalog.Stylist, day time.Time, durationMin int, tr *TimeRange) ([]candidate, error) {
	hours, err := a.salon.HoursFor(ctx, day.Weekday())
	if err != nil {
		return nil, fmt.Errorf("scheduling: business hours lookup: %w", err)
	}
	startMin, endMin, open := hours.Window()
	if !open {
		return nil, nil
	}

	if durationMin <= 0 {
		durationMin = int(a.granularity.Minutes())
	}
	afterMin, beforeMin := 0, 24*60
	if tr != nil {
		if tr.After != "" {
			if m, err := salon.ParseClock(tr.After); err == nil {
				afterMin = m
			}
		}
		if tr.Before != "" {
			if m, err := salon.ParseClock(tr.Before); err == nil {
				beforeMin = m
			}
		}
	}

	dayEnd := day.AddDate(0, 0, 1)
	busy, err := a.busy.ListBusy(ctx, st.CalendarID, day, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("scheduling: busy lookup for %s: %w", st.ID, err)
	}

	now := a.now()
	sameDay := a.sameLocalDay(day, now)
	granMin := int(a.granularity.Minutes())

	var out []candidate
	for m := startMin; m+durationMin <= endMin; m += granMin {
		if m < afterMin || m > beforeMin {
			continue
		}
		start := time.Date(day.Year(), day.Month(), day.Day(), m/60, m%60, 0, 0, a.loc)
		end := start.Add(time.Duration(durationMin) * time.Minute)

		if sameDay && start.Before(now.Add(sameDayLeadTime)) {
			continue
		}
		if overlapsAny(start, end, busy) {
			continue
		}
		out = append(out, candidate{
			start: start,
			slot: booking.Slot{
				StartTime:       start.Format(time.RFC3339),
				DurationMinutes: durationMin,
				StylistID:       st.ID,
				StylistName:     st.Name,
			},
		})
	}
	return out, nil
}

func (a *Availability) stylistsFor(ctx context.Context, category, stylistID string) ([]catalog.Stylist, error) {
	stylists, err := a.stylists.Get(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list stylists: %w", err)
	}
	if stylistID == "" {
		return stylists, nil
	}
	for _, st := range stylists {
		if st.ID == stylistID {
			return []catalog.Stylist{st}, nil
		}
	}
	return nil, fmt.Errorf("scheduling: stylist %s in category %s: %w", stylistID, category, catalog.ErrStylistNotFound)
}

func (a *Availability) localMidnight(t time.Time) time.Time {
	local := t.In(a.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.loc)
}

func (a *Availability) sameLocalDay(t, u time.Time) bool {
	lt, lu := t.In(a.loc), u.In(a.loc)
	return lt.Year() == lu.Year() && lt.YearDay() == lu.YearDay()
}

func overlapsAny(start, end time.Time, busy []calendar.BusyInterval) bool {
	for _, b := range busy {
		if start.Before(b.End) && end.After(b.Start) {
			return true
		}
	}
	return false
}

func containsStylist(stylists []catalog.Stylist, id string) bool {
	for _, st := range stylists {
		if st.ID == id {
			return true
		}
	}
	return false
}

func sortCandidates(cands []candidate) {
	sort.Slice(cands, func(i, j int) bool { return cands[i].start.Before(cands[j].start) })
}
