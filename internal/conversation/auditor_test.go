package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuditReply(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		tools       []string
		apptCreated bool
		coherent    bool
	}{
		{
			name:     "claim without booking",
			text:     "¡Perfecto! Ya he reservado tu cita para el viernes.",
			coherent: false,
		},
		{
			name:     "hemos variant without booking",
			text:     "Hemos creado la cita a tu nombre.",
			coherent: false,
		},
		{
			name:     "case insensitive",
			text:     "HE CONFIRMADO SU CITA para mañana",
			coherent: false,
		},
		{
			name:     "claim backed by book tool",
			text:     "Ya he reservado tu cita. ✅",
			tools:    []string{"book"},
			coherent: true,
		},
		{
			name:        "claim on an already booked conversation",
			text:        "He confirmado tu cita, nos vemos el viernes.",
			apptCreated: true,
			coherent:    true,
		},
		{
			name:     "future tense is not a claim",
			text:     "En cuanto me digas la hora te reservo la cita.",
			coherent: true,
		},
		{
			name:     "already-booked phrasing is not a claim",
			text:     "Tu cita ya está reservada. ✅",
			coherent: true,
		},
		{
			name:     "ordinary reply",
			text:     "¿Qué servicio te gustaría reservar?",
			coherent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := auditReply(tt.text, tt.tools, tt.apptCreated)
			assert.Equal(t, tt.coherent, res.Coherent)
			if !tt.coherent {
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}
