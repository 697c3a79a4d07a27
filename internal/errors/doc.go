// Package errors provides the structured error type used across hexhaven-api.
//
// Every error carries a Code (mapped onto gRPC and HTTP status codes), a
// user-facing Message, an optional Cause and free-form Meta. Game engine
// errors additionally carry a Kind that decides how the room treats them:
//
//   - KindIllegalAction: not the entity's turn, action unavailable, target
//     outside the resolved set. Reported to the originating client only;
//     state is unchanged.
//   - KindStateReference: the request names an entity that is gone (for
//     example a monster that already died). Logged and ignored.
//   - KindProtocolViolation: malformed payload. Answered with a generic
//     error event; state is unchanged.
//   - KindPersistenceFailure: an asynchronous save failed after the
//     in-memory mutation committed. Logged and surfaced as a notification;
//     never rolled back.
//   - KindInvariantViolation: the room's own state is corrupt. The owning
//     room is terminated; other rooms keep running.
//
// # Basic Usage
//
//	err := errors.IllegalActionf("card %s is not available", cardID).
//	    WithMeta("character_id", characterID)
//
//	if errors.IsIllegalAction(err) {
//	    // reply to the caller only
//	}
//
// Wrapping preserves code, kind and meta:
//
//	if err := repo.Save(ctx, input); err != nil {
//	    return errors.Wrap(err, "failed to save snapshot")
//	}
//
// # Validation
//
//	vb := errors.NewValidationBuilder()
//	if cfg.Store == nil {
//	    vb.RequiredField("Store")
//	}
//	return vb.Build()
//
// # gRPC
//
// Handlers convert with errors.ToGRPCError; clients convert back with
// errors.FromGRPCError.
package errors
