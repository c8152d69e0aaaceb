package booking

// ActionType tells the handler what kind of work the current state
// prescribes.
type ActionType string

const (
	ActionCallTools        ActionType = "CALL_TOOLS_SEQUENCE"
	ActionGenerateResponse ActionType = "GENERATE_RESPONSE"
	ActionNoAction         ActionType = "NO_ACTION"
)

// Template names the FSM prescribes. The response formatter owns the
// actual Spanish copy behind each name.
const (
	TemplateGreeting           = "greeting"
	TemplateAskServices        = "ask_services"
	TemplateConfirmServices    = "confirm_services"
	TemplateCategoryChoice     = "category_choice"
	TemplateAskName            = "ask_name"
	TemplateConfirmKnownName   = "confirm_known_name"
	TemplateAskNotes           = "ask_notes"
	TemplateBookingSummary     = "booking_summary"
	TemplateConfirmStylistSwap = "confirm_stylist_change"
	TemplateBookingCancelled   = "booking_cancelled"
	TemplateBookingDone        = "booking_done"
)

// ToolCall is one tool invocation the handler must perform. Required
// failures abort the turn; optional failures degrade it.
type ToolCall struct {
	Name     string         `json:"name"`
	Args     map[string]any `json:"args"`
	Required bool           `json:"required"`
}

// Action is the FSM's prescription for the current turn.
type Action struct {
	Type               ActionType     `json:"type"`
	ToolCalls          []ToolCall     `json:"tool_calls,omitempty"`
	ResponseTemplate   string         `json:"response_template,omitempty"`
	TemplateVars       map[string]any `json:"template_vars,omitempty"`
	AllowLLMCreativity bool           `json:"allow_llm_creativity,omitempty"`
}

// RequiredAction derives the prescribed action for the FSM's current
// state. The intent supplies per-turn inputs such as the raw service
// query; everything else comes from collected data.
func (f *FSM) RequiredAction(intent Intent) Action {
	d := &f.data
	switch f.state {
	case StateIdle:
		return Action{
			Type:               ActionGenerateResponse,
			ResponseTemplate:   TemplateGreeting,
			AllowLLMCreativity: true,
		}

	case StateServiceSelection:
		if d.AwaitingCategoryChoice {
			return Action{
				Type:             ActionGenerateResponse,
				ResponseTemplate: TemplateCategoryChoice,
				TemplateVars:     map[string]any{"services": d.Services},
			}
		}
		if len(d.Services) == 0 {
			query := intent.ServiceQuery
			if query == "" {
				query = intent.RawMessage
			}
			if query == "" {
				return Action{
					Type:               ActionGenerateResponse,
					ResponseTemplate:   TemplateAskServices,
					AllowLLMCreativity: true,
				}
			}
			return Action{
				Type: ActionCallTools,
				ToolCalls: []ToolCall{{
					Name:     "search_services",
					Args:     map[string]any{"query": query, "max_results": 5},
					Required: true,
				}},
				ResponseTemplate: TemplateConfirmServices,
			}
		}
		return Action{
			Type:             ActionGenerateResponse,
			ResponseTemplate: TemplateConfirmServices,
			TemplateVars:     map[string]any{"services": d.Services},
		}

	case StateStylistSelection:
		category := d.PrimaryCategory()
		return Action{
			Type: ActionCallTools,
			ToolCalls: []ToolCall{{
				Name:     "list_stylists",
				Args:     map[string]any{"category": category},
				Required: true,
			}},
		}

	case StateSlotSelection:
		if d.PendingStylistChange {
			return Action{
				Type:             ActionGenerateResponse,
				ResponseTemplate: TemplateConfirmStylistSwap,
				TemplateVars: map[string]any{
					"stylist_name": d.PendingStylistName,
					"slot":         d.PendingSlot,
				},
			}
		}
		args := map[string]any{
			"service_category":         d.PrimaryCategory(),
			"service_duration_minutes": d.TotalDurationMinutes,
		}
		if d.StylistID != "" && d.StylistID != StylistAny {
			args["stylist_id"] = d.StylistID
		}
		// A concrete date asks one day's agenda; otherwise search forward.
		if intent.Type == IntentCheckAvailability && intent.Entities.Date != "" {
			args["date"] = intent.Entities.Date
			return Action{
				Type: ActionCallTools,
				ToolCalls: []ToolCall{{
					Name:     "check_availability",
					Args:     args,
					Required: true,
				}},
			}
		}
		if intent.Entities.Date != "" {
			args["start_date"] = intent.Entities.Date
		}
		return Action{
			Type: ActionCallTools,
			ToolCalls: []ToolCall{{
				Name:     "find_next_available",
				Args:     args,
				Required: true,
			}},
		}

	case StateCustomerData:
		if d.FirstName == "" || d.NameConfirmationPending {
			if d.NameConfirmationPending {
				return Action{
					Type:             ActionGenerateResponse,
					ResponseTemplate: TemplateConfirmKnownName,
					TemplateVars:     map[string]any{"first_name": d.FirstName},
				}
			}
			return Action{
				Type:             ActionGenerateResponse,
				ResponseTemplate: TemplateAskName,
			}
		}
		return Action{
			Type:             ActionGenerateResponse,
			ResponseTemplate: TemplateAskNotes,
			TemplateVars:     map[string]any{"first_name": d.FirstName},
		}

	case StateConfirmation:
		return Action{
			Type:             ActionGenerateResponse,
			ResponseTemplate: TemplateBookingSummary,
			TemplateVars:     f.summaryVars(),
		}

	case StateBooked:
		args := map[string]any{
			"customer_id": d.CustomerID,
			"first_name":  d.FirstName,
			"last_name":   d.LastName,
			"notes":       d.Notes,
			"services":    d.Services,
			"stylist_id":  d.StylistID,
		}
		if d.Slot != nil {
			args["start_time"] = d.Slot.StartTime
		}
		return Action{
			Type: ActionCallTools,
			ToolCalls: []ToolCall{{
				Name:     "book",
				Args:     args,
				Required: true,
			}},
			ResponseTemplate: TemplateBookingDone,
		}
	}
	return Action{Type: ActionNoAction}
}

func (f *FSM) summaryVars() map[string]any {
	d := &f.data
	vars := map[string]any{
		"services":     d.Services,
		"stylist_name": d.StylistName,
		"first_name":   d.FirstName,
		"notes":        d.Notes,
		"duration":     d.TotalDurationMinutes,
	}
	if d.Slot != nil {
		vars["slot"] = *d.Slot
	}
	return vars
}
