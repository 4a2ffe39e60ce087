package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMintProcess is the task type for credit-paid mint requests.
	TaskMintProcess = "mint:process"
)

// MintProcessPayload describes a credit-paid mint waiting for processing.
// The worker debits the requester's credits and mints with its own signer
// key, so the request needs no wallet signature.
type MintProcessPayload struct {
	Requester   string `json:"requester"`
	To          string `json:"to"`
	TokenID     uint64 `json:"token_id"`
	Amount      uint64 `json:"amount"`
	MetadataURI string `json:"metadata_uri"`
}

// NewMintProcessTask constructs an Asynq task.
func NewMintProcessTask(payload MintProcessPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMintProcess, data), nil
}
