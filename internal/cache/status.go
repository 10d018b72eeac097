package cache

import (
	"context"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/roach88/healthlog/internal/store"
)

// Operation states of a collection.
const (
	StateIdle    = "idle"
	StateLoading = "loading"
	StateError   = "error"
)

const (
	eventBegin   = "begin"
	eventSucceed = "succeed"
	eventFail    = "fail"
	eventReset   = "reset"
)

// Status is the operation status of a collection.
type Status struct {
	// State is one of StateIdle, StateLoading or StateError.
	State string

	// Loading is true while the most recent operation is in flight.
	Loading bool

	// Err is the error of the most recent operation, if it failed.
	Err *store.Error
}

func newStatusFSM(l *zap.Logger) *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventBegin, Src: []string{StateIdle, StateError}, Dst: StateLoading},
			{Name: eventSucceed, Src: []string{StateLoading}, Dst: StateIdle},
			{Name: eventFail, Src: []string{StateLoading}, Dst: StateError},
			{Name: eventReset, Src: []string{StateError}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				l.Debug("Status changed", zap.String("from", e.Src), zap.String("to", e.Dst), zap.String("event", e.Event))
			},
		},
	)
}

// fire sends event if the current state allows it.
// Events that don't apply (such as begin while already loading) are no-ops.
func fire(f *fsm.FSM, event string) {
	if !f.Can(event) {
		return
	}
	_ = f.Event(context.Background(), event)
}
