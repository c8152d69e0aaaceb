package conversation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateAppendTrimsWindow(t *testing.T) {
	state := NewState("wa-1", "+34600111222")

	for i := 0; i < 15; i++ {
		state.Append("user", fmt.Sprintf("mensaje %d", i), 10)
	}

	assert.Len(t, state.Messages, 10)
	assert.Equal(t, 15, state.TotalMessageCount)
	assert.Equal(t, "mensaje 5", state.Messages[0].Content)
	assert.Equal(t, "mensaje 14", state.Messages[9].Content)
}

func TestStateLastMessages(t *testing.T) {
	state := NewState("wa-1", "+34600111222")
	state.Append("user", "uno", 10)
	state.Append("assistant", "dos", 10)
	state.Append("user", "tres", 10)

	last := state.LastMessages(2)
	assert.Len(t, last, 2)
	assert.Equal(t, "dos", last[0].Content)
	assert.Equal(t, "tres", last[1].Content)

	assert.Len(t, state.LastMessages(10), 3)
	assert.Nil(t, state.LastMessages(0))
}
