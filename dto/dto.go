package dto

import "encoding/json"

// WebhookBody is the envelope the meeting platform posts to the webhook.
type WebhookBody struct {
	DownloadToken string          `json:"download_token"`
	Payload       json.RawMessage `json:"payload"`
}

// JobRecord is the unit of work published onto the queue after validation.
// Timestamps stay strings so a record survives the queue round trip unchanged.
type JobRecord struct {
	UUID           string      `json:"uuid"`
	ZoomSeriesID   int64       `json:"zoom_series_id"`
	Topic          string      `json:"topic"`
	StartTime      string      `json:"start_time"`
	Duration       int         `json:"duration"`
	HostID         string      `json:"host_id"`
	RecordingFiles []MediaFile `json:"recording_files"`
	Token          string      `json:"token"`
	ReceivedTime   string      `json:"received_time"`
	Creator        string      `json:"creator"`
}

// MediaFile is one downloadable recording file, reduced to the canonical
// fields. Only accepted-type, completed files make it into a JobRecord.
type MediaFile struct {
	RecordingID    string `json:"recording_id"`
	RecordingStart string `json:"recording_start"`
	RecordingEnd   string `json:"recording_end"`
	DownloadURL    string `json:"download_url"`
	FileType       string `json:"file_type"`
	FileSize       int64  `json:"file_size"`
	RecordingType  string `json:"recording_type"`
}

// RawPayload mirrors the provider's recording.completed event. Pointer fields
// distinguish a missing key from a zero value during validation.
type RawPayload struct {
	Object *RawObject `json:"object"`
}

type RawObject struct {
	ID             *int64     `json:"id"`
	UUID           *string    `json:"uuid"`
	HostID         *string    `json:"host_id"`
	Topic          *string    `json:"topic"`
	StartTime      *string    `json:"start_time"`
	Duration       *int       `json:"duration"`
	RecordingFiles *[]RawFile `json:"recording_files"`
}

type RawFile struct {
	ID             *string `json:"id"`
	RecordingStart *string `json:"recording_start"`
	RecordingEnd   *string `json:"recording_end"`
	DownloadURL    *string `json:"download_url"`
	FileType       *string `json:"file_type"`
	FileSize       *int64  `json:"file_size"`
	RecordingType  *string `json:"recording_type"`
	Status         *string `json:"status"`
}
