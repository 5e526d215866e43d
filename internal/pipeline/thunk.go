package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/bassista/go_happyhour/internal/apperr"
	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/bassista/go_happyhour/internal/state"
	"github.com/google/uuid"
)

// sharedCallTimeout bounds a coalesced call, which outlives the cancellation
// of the caller that started it.
const sharedCallTimeout = 30 * time.Second

// Thunk is the body of an async operation. It gets the state as it was right
// after the pending action.
type Thunk func(ctx context.Context, st state.RootState) (any, error)

// Op describes one async operation run.
type Op struct {
	// Type is the operation prefix, e.g. state.OpSearchVenues.
	Type string
	Arg  any
	// Key, when set, coalesces concurrent runs with the same key and marks
	// superseded completions stale.
	Key string
	// Fallback is stored when the error carries no user-facing message.
	Fallback string
	// Refresh starts a new call even if one is in flight for Key.
	Refresh bool
}

// Run dispatches op's pending action, runs fn and then dispatches exactly one
// of fulfilled or rejected. Rejections keep only the error message in state;
// the error itself is returned to the caller.
func (s *Store) Run(ctx context.Context, op Op, fn Thunk) (any, error) {
	meta := state.Meta{RequestID: uuid.NewString(), Arg: op.Arg}

	var ticket Ticket
	if op.Key != "" {
		ticket = s.inflight.Begin(op.Key)
		if op.Refresh {
			s.inflight.Forget(op.Key)
		}
	}

	snapshot := s.Dispatch(state.Action{Type: state.Pending(op.Type), Meta: meta})

	call := func() (any, error) { return safeCall(ctx, snapshot, fn) }
	var (
		result any
		err    error
	)
	if op.Key != "" {
		// Other callers may join this call, so it must not stop when ctx does.
		call = func() (any, error) {
			callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
			defer cancel()
			return safeCall(callCtx, snapshot, fn)
		}
		var shared bool
		result, err, shared = s.inflight.Do(ctx, op.Key, call)
		if shared {
			logger.WithAction("inflight", op.Type).Debugf("coalesced request for %s", op.Key)
		}
	} else {
		result, err = call()
	}

	if err != nil {
		s.Dispatch(state.Action{
			Type:  state.Rejected(op.Type),
			Error: apperr.Message(err, op.Fallback),
			Meta:  meta,
		})
		return nil, err
	}

	done := meta
	if op.Key != "" {
		done.Stale = s.inflight.Stale(ticket)
	}
	s.Dispatch(state.Action{Type: state.Fulfilled(op.Type), Payload: result, Meta: done})
	return result, nil
}

func safeCall(ctx context.Context, st state.RootState, fn Thunk) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("operation panicked: %v", rec)
		}
	}()
	return fn(ctx, st)
}
