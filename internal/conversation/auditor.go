package conversation

import "regexp"

// bookingClaimRe matches Spanish phrasings that assert an appointment
// was just created ("ya he reservado tu cita", "hemos confirmado la
// cita"). Future-tense and already-booked phrasings stay out.
var bookingClaimRe = regexp.MustCompile(`(?i)(ya he|he|hemos)\s+(reservado|agendado|creado|confirmado)\s+(tu|su|la)\s+cita`)

// AuditResult is the coherence verdict on one outgoing reply.
type AuditResult struct {
	Coherent bool
	Reason   string
}

// auditReply cross-checks the outgoing text against what actually
// happened this turn. A reply claiming a booked appointment without a
// book call behind it, on a conversation that never booked, is the one
// lie the assistant must never tell; the caller replaces the reply and
// escalates.
func auditReply(text string, toolsCalled []string, appointmentCreated bool) AuditResult {
	if !bookingClaimRe.MatchString(text) {
		return AuditResult{Coherent: true}
	}
	for _, name := range toolsCalled {
		if name == "book" {
			return AuditResult{Coherent: true}
		}
	}
	if appointmentCreated {
		return AuditResult{Coherent: true}
	}
	return AuditResult{
		Coherent: false,
		Reason:   "reply claims a created appointment but no booking happened",
	}
}
