package loader

import (
	"time"

	"github.com/google/uuid"
)

// CallSession identifies one GetType/GetFunction call to a SessionObserver
// such as the diagnostics audit log. internal/loaderrpc stamps a separate
// CallSession of its own into each RPC response, so the id a response
// echoes is not the id the loader reported. It carries no loader state of its
// own — Kind is "type" or "function" and Args is always the LoadingArguments
// form (FunctionLoadingArguments converts losslessly, see its key method).
type CallSession struct {
	ID      uuid.UUID
	Kind    string
	Started time.Time
	Args    LoadingArguments
}

// NewCallSession stamps a fresh session for a GetType/GetFunction call.
func NewCallSession(kind string, args LoadingArguments) CallSession {
	return CallSession{ID: uuid.New(), Kind: kind, Started: time.Now(), Args: args}
}

// SessionObserver is implemented by an Observer that also wants to witness
// call sessions. Unlike OnTypeLoaded/OnFunctionLoaded, a SessionObserver
// error never aborts the call — a session record is a correlation aid for
// diagnostics and RPC, not a commit precondition.
type SessionObserver interface {
	OnCallSession(CallSession) error
}

func (l *Loader) notifySession(s CallSession) {
	if so, ok := l.obs.(SessionObserver); ok {
		_ = so.OnCallSession(s)
	}
}
