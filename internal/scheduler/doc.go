// Package scheduler runs a FIFO queue of stage operations against one shared
// target, strictly one at a time.
//
// Tasks are dispatched onto an injected worker pool, but the controller
// goroutine waits for each task's completion before dispatching the next, so
// stages that read files written by the previous stage never race. Listeners
// receive TaskCompleted after every task, CheckpointReached whenever stage
// logic announces a named milestone, and a terminal QueueCompleted when the
// queue drains, is cancelled, or halts. All events are delivered on the
// controller goroutine.
//
// Operations are typed functions bound at enqueue time; a Registry maps the
// closed set of operation names a pipeline exposes to those functions so a
// bad name is rejected before anything runs. A task whose operation is
// missing at dispatch halts the queue with services.ErrOperationNotFound.
// Every other stage failure is recorded in the status table and the queue
// moves on.
//
// Cancellation is cooperative: CancelAll drops pending tasks without touching
// the one in flight; Stop additionally cancels the in-flight task's context.
package scheduler
