package booking

import (
	"encoding/json"
	"time"
)

// Snapshot is the JSON checkpoint form of an FSM.
type Snapshot struct {
	State         State         `json:"state"`
	CollectedData CollectedData `json:"collected_data"`
	LastUpdated   string        `json:"last_updated,omitempty"`
}

// Snapshot captures the FSM for persistence.
func (f *FSM) Snapshot() Snapshot {
	snap := Snapshot{
		State:         f.state,
		CollectedData: f.data,
	}
	if !f.lastUpdated.IsZero() {
		snap.LastUpdated = f.lastUpdated.UTC().Format(time.RFC3339)
	}
	return snap
}

// Restore loads a checkpoint into the FSM. Anything malformed, an
// unknown state included, resets to IDLE with empty data rather than
// poisoning the conversation.
func (f *FSM) Restore(snap Snapshot) {
	if !snap.State.Valid() {
		f.logger.Warn("checkpoint rejected, resetting to idle", "state", snap.State)
		f.state = StateIdle
		f.data = CollectedData{}
		f.lastUpdated = f.now()
		return
	}
	f.state = snap.State
	f.data = snap.CollectedData
	f.lastUpdated = f.now()
	if snap.LastUpdated != "" {
		if t, err := time.Parse(time.RFC3339, snap.LastUpdated); err == nil {
			f.lastUpdated = t
		}
	}
}

// RestoreJSON decodes raw checkpoint bytes and restores from them. A
// decode failure follows the same reset-to-IDLE rule.
func (f *FSM) RestoreJSON(raw []byte) {
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		f.logger.Warn("checkpoint rejected, resetting to idle", "error", err)
		f.state = StateIdle
		f.data = CollectedData{}
		f.lastUpdated = f.now()
		return
	}
	f.Restore(snap)
}
