package events

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_EmitTyped(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var received []*Event
	bus.Subscribe(JobProgress, func(event *Event) {
		received = append(received, event)
	})

	bus.EmitTyped("screening", &JobProgressData{
		JobID:       "job-1",
		JobType:     "SCREENING",
		Status:      "RUNNING",
		StepCurrent: 2,
		StepTotal:   4,
		StepName:    "vcp",
	})

	require.Len(t, received, 1)
	assert.Equal(t, JobProgress, received[0].Type)
	assert.Equal(t, "screening", received[0].Module)

	data, ok := received[0].GetTypedData().(*JobProgressData)
	require.True(t, ok)
	assert.Equal(t, "job-1", data.JobID)
	assert.Equal(t, 2, data.StepCurrent)
	assert.Equal(t, "vcp", data.StepName)
}

func TestBus_SubscribersAreTypeScoped(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	progress := 0
	completed := 0
	bus.Subscribe(JobProgress, func(*Event) { progress++ })
	bus.Subscribe(JobCompleted, func(*Event) { completed++ })

	bus.EmitTyped("screening", &JobProgressData{JobID: "job-1"})
	bus.EmitTyped("screening", &JobCompletedData{})

	assert.Equal(t, 1, progress)
	assert.Equal(t, 1, completed)
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	a, b := 0, 0
	bus.Subscribe(JobFailed, func(*Event) { a++ })
	bus.Subscribe(JobFailed, func(*Event) { b++ })

	bus.EmitTyped("screening", &JobFailedData{ErrorStep: "trend"})

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}
