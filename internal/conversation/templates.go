package conversation

import (
	"strings"
	"text/template"

	"github.com/salonware/booking-assistant/internal/booking"
)

// Every customer-facing reply starts from one of these templates. The
// formatter renders them verbatim and only then, when the action allows
// it, hands the text to the LLM for a tone pass. Copy lives here, in one
// place, so the salon can review what the assistant is allowed to say.
const replyTemplates = `
{{define "greeting"}}¡Hola! Soy el asistente de {{.site_name}} 💇 Puedo reservarte una cita, darte precios y horarios. ¿Qué te gustaría hacer?{{end}}

{{define "ask_services"}}¡Genial! ¿Qué servicio te gustaría reservar?{{end}}

{{define "service_options"}}{{if .options}}Esto es lo que he encontrado:
{{range $i, $o := .options}}{{inc $i}}. {{$o.name}} ({{$o.duration_minutes}} min)
{{end}}¿Cuál de ellos quieres?{{else}}No he encontrado ningún servicio que encaje con lo que me pides. ¿Puedes decírmelo de otra forma?{{end}}{{end}}

{{define "confirm_services"}}Tengo apuntado: {{join .services ", "}}. ¿Añadimos algún otro servicio o pasamos a elegir profesional?{{end}}

{{define "category_choice"}}Me pides servicios de peluquería y de estética a la vez ({{join .services ", "}}). Los lleva personal distinto, así que se reservan por separado. ¿Con cuál empezamos?{{end}}

{{define "stylist_options"}}{{if .stylists}}Puedes elegir profesional:
{{range $i, $s := .stylists}}{{inc $i}}. {{$s.name}}
{{end}}¿Con quién prefieres? Si te da igual, dímelo y te busco el primer hueco.{{else}}Ahora mismo no tengo profesionales dados de alta para ese servicio. ¿Quieres que te pase con el equipo?{{end}}{{end}}

{{define "slot_options"}}{{if .slot_labels}}Estas son las próximas horas disponibles:
{{range $i, $l := .slot_labels}}{{inc $i}}. {{$l}}
{{end}}¿Cuál te viene bien?{{else}}No he encontrado huecos próximos. ¿Quieres que mire más adelante o en otra fecha?{{end}}{{end}}

{{define "confirm_stylist_change"}}Puedo darte {{.slot_label}}, pero sería con {{.stylist_name}} en lugar de la persona que elegiste. ¿Te va bien el cambio?{{end}}

{{define "ask_name"}}¡Perfecto! ¿A nombre de quién pongo la cita?{{end}}

{{define "confirm_known_name"}}¿La cita es para ti, {{.first_name}}?{{end}}

{{define "ask_notes"}}Gracias, {{.first_name}}. ¿Quieres añadir alguna nota para el salón (alergias, preferencias...)? Si no, dime "ninguna".{{end}}

{{define "booking_summary"}}Te resumo la cita:
• Servicios: {{join .services ", "}}
• Profesional: {{.stylist_name}}
• Fecha: {{.slot_label}}
• Nombre: {{.first_name}}{{if .notes}}
• Notas: {{.notes}}{{end}}
¿Confirmo la reserva?{{end}}

{{define "booking_done"}}✅ ¡Cita reservada{{if .book.first_name}}, {{.book.first_name}}{{end}}!
{{join .book.service_names ", "}} con {{.book.stylist_name}} el {{.book.friendly_date}}.
Te mandaremos una confirmación unos días antes. ¡Hasta pronto! 💇{{end}}

{{define "booking_cancelled"}}Sin problema, he cancelado el proceso de reserva. Si más adelante quieres una cita, aquí estoy. 😊{{end}}
`

var templateFuncs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}

func mustParseTemplates() *template.Template {
	return template.Must(template.New("replies").
		Funcs(templateFuncs).
		Option("missingkey=error").
		Parse(replyTemplates))
}

// Canned replies for paths where no template applies: degradation,
// escalation and the short lifecycle answers. Kept next to the templates
// so all outgoing copy is reviewable in one file.
const (
	replyDegraded = "Ahora mismo tengo problemas técnicos para atenderte. Dame unos minutos e inténtalo de nuevo, por favor. 🙏"

	replyEscalated = "Siento los problemas. Te paso con una persona del equipo, que te atenderá en cuanto pueda. 🙏"

	replyAuditOverride = "Ha habido un error técnico con tu reserva y no puedo confirmarla desde aquí. Te paso con el equipo para que la gestionen a mano. Disculpa las molestias. 🙏"

	replySlotTaken = "Vaya, ese hueco lo acaban de reservar. 😅 ¿Te busco otra hora?"

	replyHolidayClosed = "Ese día el salón está cerrado. 😊 ¿Miramos otra fecha?"

	replyAppointmentConfirmed = "¡Genial! Tu cita queda confirmada. ✅ ¡Te esperamos!"

	replyAppointmentDeclined = "Entendido, he anulado tu cita. Si quieres otra hora, dímelo y te busco hueco. 😊"

	replyNoPendingAppointment = "No encuentro ninguna cita tuya pendiente de confirmar. Si necesitas algo más, dime. 😊"

	replyChatFallback = "No consigo responderte bien ahora mismo. 😅 ¿Quieres que te pase con el equipo del salón?"
)

// redirectFor is the reply when a message carries a booking intent that
// is not valid in the current state. Each state tells the customer what
// the flow needs next instead of echoing the validation error.
func redirectFor(state booking.State) string {
	switch state {
	case booking.StateIdle:
		return "Si quieres pedir cita, dime qué servicio te interesa y nos ponemos con ello. 😊"
	case booking.StateServiceSelection:
		return "Vamos por partes: primero dime qué servicio quieres y después vemos el resto."
	case booking.StateStylistSelection:
		return "Antes de la fecha necesito saber con quién quieres la cita. ¿Alguna preferencia de profesional, o te da igual?"
	case booking.StateSlotSelection:
		return "Elige una de las horas que te he enseñado (vale con el número), o dime otra fecha y busco más."
	case booking.StateCustomerData:
		return "Solo me falta el nombre para la cita. ¿Me lo dices?"
	case booking.StateConfirmation:
		return "¿Te confirmo la cita tal y como te la he resumido? Dime \"sí\", o pide cambiar lo que quieras."
	case booking.StateBooked:
		return "Tu cita ya está reservada. ✅ Si quieres pedir otra distinta, dímelo y empezamos."
	default:
		return "Creo que nos hemos liado. 😅 ¿Me dices otra vez qué necesitas?"
	}
}
