package service

import (
	"encoding/json"
	"errors"
	"strings"

	"zoom-ingest/constant"
	"zoom-ingest/dto"
)

// ErrNonRetryable marks an error that redelivery can never fix; the consumer
// drops or dead-letters the job instead of requeueing it.
var ErrNonRetryable = errors.New("non-retryable error")

// Validation rejections, mutually exclusive and checked in this order.
var (
	ErrMalformedPayload = errors.New("payload failed validation")
	ErrNoAcceptedFiles  = errors.New("no mp4 files in recording data")
	ErrIncompleteFile   = errors.New("mp4 file is missing required fields")
	ErrMediaNotReady    = errors.New("mp4 file is not yet completed")
)

func isAcceptedType(fileType string) bool {
	return strings.EqualFold(fileType, constant.AcceptedFileType)
}

// ValidateAndNormalize classifies a raw recording.completed payload and, when
// it passes, reduces it to a job record carrying only accepted-type completed
// files. Pure: provenance fields (token, creator, received time) are the
// caller's to fill in. Business gates like minimum duration also belong to
// the caller, they depend on deployment config rather than payload shape.
func ValidateAndNormalize(payload []byte) (*dto.JobRecord, error) {
	var raw dto.RawPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}
	if raw.Object == nil {
		return nil, ErrMalformedPayload
	}

	obj := raw.Object
	if obj.ID == nil || obj.UUID == nil || obj.HostID == nil || obj.Topic == nil ||
		obj.StartTime == nil || obj.Duration == nil || obj.RecordingFiles == nil {
		return nil, ErrMalformedPayload
	}
	files := *obj.RecordingFiles
	for _, f := range files {
		if f.FileType == nil {
			return nil, ErrMalformedPayload
		}
	}

	accepted := make([]dto.RawFile, 0, len(files))
	for _, f := range files {
		if isAcceptedType(*f.FileType) {
			accepted = append(accepted, f)
		}
	}
	if len(accepted) == 0 {
		return nil, ErrNoAcceptedFiles
	}

	for _, f := range accepted {
		if f.ID == nil || f.RecordingStart == nil || f.RecordingEnd == nil ||
			f.DownloadURL == nil || f.FileSize == nil || f.RecordingType == nil || f.Status == nil {
			return nil, ErrIncompleteFile
		}
	}

	for _, f := range accepted {
		if !strings.EqualFold(*f.Status, constant.CompletedFileStatus) {
			return nil, ErrMediaNotReady
		}
	}

	mediaFiles := make([]dto.MediaFile, 0, len(accepted))
	for _, f := range accepted {
		mediaFiles = append(mediaFiles, dto.MediaFile{
			RecordingID:    *f.ID,
			RecordingStart: *f.RecordingStart,
			RecordingEnd:   *f.RecordingEnd,
			DownloadURL:    *f.DownloadURL,
			FileType:       *f.FileType,
			FileSize:       *f.FileSize,
			RecordingType:  *f.RecordingType,
		})
	}

	return &dto.JobRecord{
		UUID:           *obj.UUID,
		ZoomSeriesID:   *obj.ID,
		Topic:          *obj.Topic,
		StartTime:      *obj.StartTime,
		Duration:       *obj.Duration,
		HostID:         *obj.HostID,
		RecordingFiles: mediaFiles,
	}, nil
}
