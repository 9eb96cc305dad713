// Package fetch orchestrates document fetch tasks.
//
// A task is created synchronously and then driven by background jobs on the
// task runner. The start job talks to the resource client until it either
// holds the document or is asked for a challenge answer; the task then waits
// in needs_challenge with its session parked in the challenge registry. An
// answer claims the task with a compare-and-set on the task store, takes the
// session and hands both to a resume job. Whatever happens inside a job ends
// in a status write: job errors, panics, timeouts and shutdown drops are all
// turned into failed tasks by HandleJobError.
package fetch
