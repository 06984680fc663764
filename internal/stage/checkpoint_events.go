package stage

import "context"

// CheckpointFunc receives named checkpoint events such as "motion_correct".
type CheckpointFunc func(name string)

type emitterKey struct{}

// WithCheckpointEmitter attaches fn to ctx so stage logic can announce
// progress milestones without knowing who is listening.
func WithCheckpointEmitter(ctx context.Context, fn CheckpointFunc) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, emitterKey{}, fn)
}

// EmitCheckpoint announces that the named milestone has been reached. It is a
// no-op when ctx carries no emitter.
func EmitCheckpoint(ctx context.Context, name string) {
	if fn, ok := ctx.Value(emitterKey{}).(CheckpointFunc); ok {
		fn(name)
	}
}
