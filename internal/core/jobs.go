// Package core defines the domain types and contracts shared across the
// application: pull request events, review results, and the job system that
// processes them.
package core

import "context"

// JobDispatcher accepts events and queues them for asynchronous processing.
// It decouples the event source (webhook handler, CLI) from job execution.
type JobDispatcher interface {
	// Dispatch queues an event. It returns an error when the queue is full,
	// giving callers a backpressure signal instead of blocking.
	Dispatch(ctx context.Context, event *GitHubEvent) error

	// Stop drains the queue and waits for in-flight jobs to finish.
	Stop()
}

// Job is a single executable unit of work triggered by a GitHubEvent.
type Job interface {
	Run(ctx context.Context, event *GitHubEvent) error
}
