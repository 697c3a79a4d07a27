package session

import (
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
)

// JobKind names a persistence side effect
type JobKind string

// Job kinds
const (
	// JobRewards applies scenario rewards to player progress
	JobRewards JobKind = "rewards"
	// JobSnapshot saves the room state at a round boundary
	JobSnapshot JobKind = "snapshot"
)

// Job is persistence work the room runs after broadcasting the events of
// the command that queued it. A failed job never changes the session.
type Job struct {
	Kind     JobKind
	RoomID   string
	Round    int
	Outcome  replication.Outcome
	Rewards  []replication.Reward
	Snapshot *replication.Snapshot
}

func (s *Session) queueSnapshot() {
	s.jobs = append(s.jobs, Job{
		Kind:     JobSnapshot,
		RoomID:   s.id,
		Round:    s.round,
		Snapshot: s.Snapshot(),
	})
}

func (s *Session) queueRewards(rewards []replication.Reward) {
	s.jobs = append(s.jobs, Job{
		Kind:    JobRewards,
		RoomID:  s.id,
		Round:   s.round,
		Outcome: s.outcome,
		Rewards: append([]replication.Reward(nil), rewards...),
	})
}
