/*
Package jobs implements a FIFO job queue that runs at most a fixed number of
jobs at the same time.

Each [Job] carries a unique ID, a run function, and an optional cancel hook.
[Queue.Enqueue] returns a [Ticket] that settles when the job completes, fails,
or gets cancelled. Jobs are admitted strictly in the order they were enqueued
whenever an active slot becomes free.

Cancelling a queued job removes it from the queue without ever running it.
Cancelling an active job calls its cancel hook, settles its ticket with
[ErrCancelled] and immediately frees its slot for the next waiting job, even
if the job's run function ignores the cancellation and keeps running for a
while.

Queue lifecycle notifications (queued, started, completed, failed, cancelled)
can be observed using [WithNotifier].
*/
package jobs
