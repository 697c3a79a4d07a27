package room

import (
	"context"

	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/session"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
)

// message is the closed set of inbox messages
type message interface{ isRoomMessage() }

type join struct {
	input JoinInput
	reply chan joinResult
}

type joinResult struct {
	out *JoinOutput
	err error
}

type leave struct {
	clientID string
}

type submit struct {
	// ctx carries the caller's trace, not its deadline
	ctx      context.Context
	clientID string
	cmd      replication.Command
}

type snapshot struct {
	reply chan *View
}

// persistResult reports a finished persistence job back to the actor
type persistResult struct {
	job session.Job
	err error
}

type disconnectExpired struct {
	playerID string
	gen      int
}

type shutdown struct {
	reason string
}

func (join) isRoomMessage()              {}
func (leave) isRoomMessage()             {}
func (submit) isRoomMessage()            {}
func (snapshot) isRoomMessage()          {}
func (persistResult) isRoomMessage()     {}
func (disconnectExpired) isRoomMessage() {}
func (shutdown) isRoomMessage()          {}
