package room

import (
	"context"
	"log/slog"

	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/session"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/progress"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/snapshots"
)

// runJobs starts the session's queued persistence work. It runs after the
// events that queued it were broadcast; results come back on the inbox.
func (r *Room) runJobs(ctx context.Context) {
	for _, job := range r.sess.DrainJobs() {
		r.inflight++
		// jobs outlive the command and the room itself
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.persistTimeout)
		go func(job session.Job) {
			defer cancel()
			err := r.persist(jobCtx, job)
			_ = r.send(context.Background(), persistResult{job: job, err: err})
		}(job)
	}
}

func (r *Room) persist(ctx context.Context, job session.Job) error {
	switch job.Kind {
	case session.JobRewards:
		rewards := make([]progress.Reward, 0, len(job.Rewards))
		for _, rw := range job.Rewards {
			rewards = append(rewards, progress.Reward{
				PlayerID:    rw.PlayerID,
				CharacterID: rw.CharacterID,
				Gold:        rw.Gold,
				XP:          rw.XP,
			})
		}
		out, err := r.progress.ApplyRewards(ctx, progress.ApplyRewardsInput{
			RoomID:  job.RoomID,
			Victory: job.Outcome == replication.OutcomeVictory,
			Rewards: rewards,
		})
		if err != nil {
			return errors.PersistenceFailure(err, "failed to apply scenario rewards")
		}
		if !out.Applied {
			slog.Info("Rewards already applied", "room_id", job.RoomID)
		}
		return nil

	case session.JobSnapshot:
		_, err := r.snapshots.Save(ctx, snapshots.SaveInput{
			RoomID:   job.RoomID,
			Round:    job.Round,
			Snapshot: job.Snapshot,
			TTL:      r.snapshotTTL,
		})
		if err != nil {
			return errors.PersistenceFailure(err, "failed to save room snapshot")
		}
		return nil

	default:
		return errors.PersistenceFailure(errors.Internalf("unknown job kind %q", job.Kind), "failed to persist")
	}
}

// handlePersistResult reports a finished job and reports whether it was
// the last thing an ended room was waiting for
func (r *Room) handlePersistResult(msg persistResult) bool {
	r.inflight--
	if msg.err == nil {
		slog.Debug("Persisted",
			"room_id", r.id,
			"job", msg.job.Kind,
			"round", msg.job.Round,
		)
		return r.finishIfEnded()
	}

	slog.Error("Persistence failed",
		"room_id", r.id,
		"job", msg.job.Kind,
		"round", msg.job.Round,
		"error", msg.err,
	)
	r.broadcast(r.sess.Record(&replication.PersistenceFailed{
		Job:     string(msg.job.Kind),
		Message: errors.GetMessage(msg.err),
	}))
	return r.finishIfEnded()
}
