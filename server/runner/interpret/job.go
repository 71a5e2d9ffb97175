package interpret

import (
	"encoding/json"
	"strings"

	"github.com/hrygo/snapnote/internal/errors"
)

const (
	// EnvJobPayload carries a JSON job: {"noteId": "...", "imageUrl": "..."}.
	EnvJobPayload = "JOB_PAYLOAD"
	// EnvNoteID and EnvImageURL are read when no payload is given.
	EnvNoteID   = "NOTE_ID"
	EnvImageURL = "IMAGE_URL"
)

// Job asks the pipeline to interpret one note's image.
type Job struct {
	// NoteID is the note UID the result is committed against.
	NoteID   string `json:"noteId"`
	ImageURL string `json:"imageUrl"`
}

// Validate reports a missing note identifier or image location.
func (j Job) Validate() error {
	if strings.TrimSpace(j.NoteID) == "" {
		return errors.InvalidInput("job is missing noteId")
	}
	if strings.TrimSpace(j.ImageURL) == "" {
		return errors.InvalidInput("job is missing imageUrl")
	}
	return nil
}

// ParseJobPayload decodes a JSON job payload.
func ParseJobPayload(payload string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return Job{}, errors.Wrap(err, errors.ErrCodeInvalidInput, "job payload is not valid JSON")
	}
	return job, job.Validate()
}

// JobFromEnv reads a job from JOB_PAYLOAD, falling back to NOTE_ID and IMAGE_URL.
func JobFromEnv(getenv func(string) string) (Job, error) {
	if payload := strings.TrimSpace(getenv(EnvJobPayload)); payload != "" {
		return ParseJobPayload(payload)
	}
	job := Job{
		NoteID:   strings.TrimSpace(getenv(EnvNoteID)),
		ImageURL: strings.TrimSpace(getenv(EnvImageURL)),
	}
	return job, job.Validate()
}
