package dto

// EnqueueJobResponse is returned once the broker accepted a job.
type EnqueueJobResponse struct {
	RequestID string `json:"request_id"`
	Queue     string `json:"queue"`
	Job       string `json:"job"`
	Status    string `json:"status"`
}

type QueueDTO struct {
	Name string   `json:"name"`
	Jobs []string `json:"jobs"`
}

type ListQueuesResponse struct {
	Queues []QueueDTO `json:"queues"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status      string            `json:"status"`
	Service     string            `json:"service"`
	Checks      map[string]string `json:"checks"`
	Connections int               `json:"connections"`
}
