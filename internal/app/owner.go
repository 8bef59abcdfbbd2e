package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dictate/dictated/internal/fsm"
	"github.com/dictate/dictated/internal/ipc"
	"github.com/dictate/dictated/internal/recorder"
)

// owner implements ipc.Handler over a live recorder.Machine, serving
// toggle/stop/status to whichever process currently holds the runtime
// socket. Unlike the teacher's one-shot session.Controller, the machine
// underneath survives across many recording sessions for the life of the
// owning process: there is no terminal state to hand a single Result back
// from.
type owner struct {
	machine *recorder.Machine
	logger  *slog.Logger
}

func (o *owner) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		snap := o.machine.Snapshot()
		return ipc.Response{OK: true, State: string(snap.State)}
	case ipc.CommandToggle:
		return o.toggle(ctx)
	case ipc.CommandStop:
		snap := o.machine.Snapshot()
		if snap.State != fsm.StateRecording {
			return ipc.Response{OK: false, State: string(snap.State), Error: fmt.Sprintf("cannot stop from state %s", snap.State)}
		}
		return o.toggle(ctx)
	default:
		return ipc.Response{OK: false, Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (o *owner) toggle(ctx context.Context) ipc.Response {
	outcome, err := o.machine.Toggle(ctx)
	if err != nil {
		if o.logger != nil {
			o.logger.Error("toggle failed", "error", err.Error())
		}
		return ipc.Response{OK: false, Error: err.Error()}
	}
	snap := o.machine.Snapshot()
	return ipc.Response{OK: true, State: string(snap.State), Message: string(outcome)}
}
