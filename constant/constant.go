package constant

type RecordingState string

const (
	RecordingStateNew        RecordingState = "NEW"
	RecordingStateInProgress RecordingState = "IN_PROGRESS"
	RecordingStateFinished   RecordingState = "FINISHED"
)

func (s RecordingState) String() string {
	return string(s)
}

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

// Queue topology shared by the webhook publisher and the worker consumer.
const (
	ExchangeName  = "zoom_ingest_exchange"
	QueueName     = "zoom_recordings_queue"
	RoutingKey    = "recording.completed"
	DLXName       = "zoom_ingest_exchange_dlx"
	DLQName       = "zoom_recordings_queue_dlq"
	DLQRoutingKey = "dlq.recording.completed"
)

// AcceptedFileType is the only recording file format the pipeline transfers.
const AcceptedFileType = "MP4"

// CompletedFileStatus is the provider-side status a file must carry before it
// is downloadable.
const CompletedFileStatus = "completed"
