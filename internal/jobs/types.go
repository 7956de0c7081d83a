// Package jobs defines the asynq task types shared by the API and the worker.
package jobs

const (
	// TaskRefreshRoster refetches the astronaut roster mirror.
	TaskRefreshRoster = "snapshot:refresh_roster"

	// TaskRefreshWeather refetches the InSight weather snapshot.
	TaskRefreshWeather = "snapshot:refresh_weather"

	// QueueSnapshots is the queue snapshot-refresh tasks are enqueued on.
	QueueSnapshots = "snapshots"
)

// RefreshPayload carries the id used to correlate a refresh request with the
// worker's log lines.
type RefreshPayload struct {
	JobID string `json:"job_id"`
}
