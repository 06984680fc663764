// Package notifications delivers pipeline milestones to ntfy.
//
// NtfySink implements events.Sink. It posts a message when a run finishes and
// when a stage finishes with failed days; checkpoint and successful task
// events are ignored so long runs do not flood the topic. An empty topic
// disables the sink.
package notifications
