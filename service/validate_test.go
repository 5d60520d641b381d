package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent() map[string]interface{} {
	return map[string]interface{}{
		"object": map[string]interface{}{
			"id":         int64(987654321),
			"uuid":       "4444UUUUIIIIDDDD====",
			"host_id":    "host42",
			"topic":      "Weekly seminar",
			"start_time": "2024-03-01T10:00:00Z",
			"duration":   42,
			"recording_files": []interface{}{
				map[string]interface{}{
					"id":              "file-1",
					"recording_start": "2024-03-01T10:00:00Z",
					"recording_end":   "2024-03-01T10:42:00Z",
					"download_url":    "https://zoom.example.com/rec/file-1",
					"file_type":       "MP4",
					"file_size":       int64(104857600),
					"recording_type":  "shared_screen_with_speaker_view",
					"status":          "completed",
					"play_url":        "https://zoom.example.com/play/file-1",
				},
				map[string]interface{}{
					"id":              "file-2",
					"recording_start": "2024-03-01T10:00:00Z",
					"recording_end":   "2024-03-01T10:42:00Z",
					"download_url":    "https://zoom.example.com/rec/file-2",
					"file_type":       "M4A",
					"file_size":       int64(8388608),
					"recording_type":  "audio_only",
					"status":          "completed",
				},
			},
		},
	}
}

func marshalEvent(t *testing.T, event map[string]interface{}) []byte {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

func TestValidateAndNormalizeSuccess(t *testing.T) {
	record, err := ValidateAndNormalize(marshalEvent(t, validEvent()))
	require.NoError(t, err)

	assert.Equal(t, "4444UUUUIIIIDDDD====", record.UUID)
	assert.Equal(t, int64(987654321), record.ZoomSeriesID)
	assert.Equal(t, "Weekly seminar", record.Topic)
	assert.Equal(t, "2024-03-01T10:00:00Z", record.StartTime)
	assert.Equal(t, 42, record.Duration)
	assert.Equal(t, "host42", record.HostID)

	// The m4a file is dropped, only the accepted type survives.
	require.Len(t, record.RecordingFiles, 1)
	file := record.RecordingFiles[0]
	assert.Equal(t, "file-1", file.RecordingID)
	assert.Equal(t, "https://zoom.example.com/rec/file-1", file.DownloadURL)
	assert.Equal(t, "MP4", file.FileType)
	assert.Equal(t, int64(104857600), file.FileSize)
	assert.Equal(t, "shared_screen_with_speaker_view", file.RecordingType)

	// Provenance fields are the caller's to fill in.
	assert.Empty(t, record.Token)
	assert.Empty(t, record.Creator)
	assert.Empty(t, record.ReceivedTime)
}

func TestValidateAndNormalizeLowercaseType(t *testing.T) {
	event := validEvent()
	files := event["object"].(map[string]interface{})["recording_files"].([]interface{})
	files[0].(map[string]interface{})["file_type"] = "mp4"

	record, err := ValidateAndNormalize(marshalEvent(t, event))
	require.NoError(t, err)
	require.Len(t, record.RecordingFiles, 1)
}

func TestValidateAndNormalizeMissingObjectFields(t *testing.T) {
	fields := []string{"id", "uuid", "host_id", "topic", "start_time", "duration", "recording_files"}
	for _, field := range fields {
		t.Run(field, func(t *testing.T) {
			event := validEvent()
			delete(event["object"].(map[string]interface{}), field)

			record, err := ValidateAndNormalize(marshalEvent(t, event))
			assert.Nil(t, record)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestValidateAndNormalizeMissingObject(t *testing.T) {
	record, err := ValidateAndNormalize([]byte(`{"account_id":"abc"}`))
	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestValidateAndNormalizeInvalidJSON(t *testing.T) {
	record, err := ValidateAndNormalize([]byte(`{"object":`))
	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestValidateAndNormalizeFileWithoutType(t *testing.T) {
	event := validEvent()
	files := event["object"].(map[string]interface{})["recording_files"].([]interface{})
	delete(files[1].(map[string]interface{}), "file_type")

	record, err := ValidateAndNormalize(marshalEvent(t, event))
	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestValidateAndNormalizeNoAcceptedFiles(t *testing.T) {
	event := validEvent()
	obj := event["object"].(map[string]interface{})
	files := obj["recording_files"].([]interface{})
	obj["recording_files"] = files[1:2] // audio only

	record, err := ValidateAndNormalize(marshalEvent(t, event))
	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrNoAcceptedFiles)
}

func TestValidateAndNormalizeEmptyFileList(t *testing.T) {
	event := validEvent()
	event["object"].(map[string]interface{})["recording_files"] = []interface{}{}

	record, err := ValidateAndNormalize(marshalEvent(t, event))
	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrNoAcceptedFiles)
}

func TestValidateAndNormalizeIncompleteAcceptedFile(t *testing.T) {
	fields := []string{"id", "recording_start", "recording_end", "download_url", "file_size", "recording_type", "status"}
	for _, field := range fields {
		t.Run(field, func(t *testing.T) {
			event := validEvent()
			files := event["object"].(map[string]interface{})["recording_files"].([]interface{})
			delete(files[0].(map[string]interface{}), field)

			record, err := ValidateAndNormalize(marshalEvent(t, event))
			assert.Nil(t, record)
			assert.ErrorIs(t, err, ErrIncompleteFile)
		})
	}
}

func TestValidateAndNormalizeIncompleteNonAcceptedFileIgnored(t *testing.T) {
	event := validEvent()
	files := event["object"].(map[string]interface{})["recording_files"].([]interface{})
	delete(files[1].(map[string]interface{}), "download_url")

	record, err := ValidateAndNormalize(marshalEvent(t, event))
	require.NoError(t, err)
	require.Len(t, record.RecordingFiles, 1)
}

func TestValidateAndNormalizeMediaNotReady(t *testing.T) {
	event := validEvent()
	files := event["object"].(map[string]interface{})["recording_files"].([]interface{})
	files[0].(map[string]interface{})["status"] = "processing"

	record, err := ValidateAndNormalize(marshalEvent(t, event))
	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrMediaNotReady)
}
