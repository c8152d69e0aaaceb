package conversation

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/salonware/booking-assistant/internal/booking"
	"github.com/salonware/booking-assistant/internal/scheduling"
	"github.com/salonware/booking-assistant/pkg/logging"
)

const rewriteSystemPrompt = `You rewrite messages for a hair salon's WhatsApp assistant. Rewrite the message you receive so it sounds warm and natural in Spanish, keeping it short. Preserve every number, price, list item, option order, name, date and time exactly as given. Never invent information that is not in the message. Use at most one or two emojis. Reply with the rewritten message only.`

// Formatter turns FSM actions into customer-facing Spanish text. Every
// reply is first rendered from a fixed template; when the action allows
// creativity and an LLM is wired, the rendered text gets a tone pass
// that must keep the facts intact. A nil LLM disables the tone pass.
type Formatter struct {
	templates *template.Template
	llm       LLMClient
	siteName  string
	loc       *time.Location
	logger    *logging.Logger
}

func NewFormatter(llm LLMClient, siteName string, loc *time.Location, logger *logging.Logger) *Formatter {
	if siteName == "" {
		siteName = "nuestro salón"
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Formatter{
		templates: mustParseTemplates(),
		llm:       llm,
		siteName:  siteName,
		loc:       loc,
		logger:    logger.WithComponent("conversation.formatter"),
	}
}

// Format renders the action's template with its vars plus any extra
// vars supplied by the handler (tool results, precomputed labels).
// Rendering never fails outward: a broken template falls back to a
// plain summary of what the flow has collected so far.
func (f *Formatter) Format(ctx context.Context, action booking.Action, extra map[string]any, data booking.CollectedData) string {
	vars := map[string]any{"site_name": f.siteName}
	for k, v := range action.TemplateVars {
		vars[k] = v
	}
	for k, v := range extra {
		vars[k] = v
	}
	f.enrich(action.ResponseTemplate, vars)

	var buf bytes.Buffer
	if err := f.templates.ExecuteTemplate(&buf, action.ResponseTemplate, vars); err != nil {
		f.logger.Error("template render failed", "template", action.ResponseTemplate, "error", err)
		return f.fallbackSummary(data)
	}
	text := strings.TrimSpace(buf.String())

	if !action.AllowLLMCreativity || f.llm == nil {
		return text
	}
	rewritten, err := f.rewrite(ctx, text)
	if err != nil {
		f.logger.Warn("tone pass failed, sending template verbatim", "template", action.ResponseTemplate, "error", err)
		return text
	}
	return rewritten
}

// Render is Format for a bare template name, used outside the action
// flow (lifecycle replies, scheduler previews).
func (f *Formatter) Render(name string, vars map[string]any) (string, error) {
	merged := map[string]any{"site_name": f.siteName}
	for k, v := range vars {
		merged[k] = v
	}
	f.enrich(name, merged)
	var buf bytes.Buffer
	if err := f.templates.ExecuteTemplate(&buf, name, merged); err != nil {
		return "", fmt.Errorf("conversation: render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// SlotLabel renders a slot the way replies spell it, in the salon's
// timezone, with the stylist appended when the slot carries one.
func (f *Formatter) SlotLabel(s booking.Slot) string {
	start, err := s.Start()
	if err != nil {
		return s.StartTime
	}
	label := scheduling.FriendlyTime(start, f.loc)
	if s.StylistName != "" {
		label += " con " + s.StylistName
	}
	return label
}

// enrich derives presentation vars the templates need but the FSM does
// not carry, and defaults the optional ones so missingkey=error stays
// an authoring check rather than a runtime hazard.
func (f *Formatter) enrich(name string, vars map[string]any) {
	switch name {
	case booking.TemplateBookingSummary, booking.TemplateConfirmStylistSwap:
		if _, ok := vars["slot_label"]; !ok {
			switch s := vars["slot"].(type) {
			case booking.Slot:
				vars["slot_label"] = f.SlotLabel(s)
			case *booking.Slot:
				if s != nil {
					vars["slot_label"] = f.SlotLabel(*s)
				}
			}
		}
		if _, ok := vars["slot_label"]; !ok {
			vars["slot_label"] = "la hora elegida"
		}
		if _, ok := vars["notes"]; !ok {
			vars["notes"] = ""
		}
	}
}

func (f *Formatter) rewrite(ctx context.Context, text string) (string, error) {
	resp, err := f.llm.Complete(ctx, LLMRequest{
		System:      []string{rewriteSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: text}},
		MaxTokens:   400,
		Temperature: 0.8,
	})
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(resp.Text)
	if out == "" {
		return "", fmt.Errorf("conversation: tone pass returned empty text")
	}
	return out, nil
}

func (f *Formatter) fallbackSummary(data booking.CollectedData) string {
	var parts []string
	if len(data.Services) > 0 {
		parts = append(parts, "servicios: "+strings.Join(data.Services, ", "))
	}
	if data.StylistName != "" {
		parts = append(parts, "profesional: "+data.StylistName)
	}
	if data.Slot != nil {
		parts = append(parts, "fecha: "+f.SlotLabel(*data.Slot))
	}
	if data.FirstName != "" {
		parts = append(parts, "nombre: "+data.FirstName)
	}
	if len(parts) == 0 {
		return "Sigo aquí para ayudarte con tu cita. ¿Qué necesitas?"
	}
	return "Seguimos con tu reserva. Llevo apuntado " + strings.Join(parts, "; ") + ". ¿Continuamos?"
}
