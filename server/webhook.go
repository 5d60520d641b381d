package server

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"zoom-ingest/config"
	"zoom-ingest/dto"
	"zoom-ingest/pkg/rabbitmq"
	"zoom-ingest/repository"
	"zoom-ingest/service"
)

type WebhookHandler struct {
	publisher   rabbitmq.Publisher
	resolver    service.CreatorResolver
	repo        repository.RecordingRepository
	minDuration int
	topicFilter *regexp.Regexp
}

func NewWebhookHandler(
	publisher rabbitmq.Publisher,
	resolver service.CreatorResolver,
	repo repository.RecordingRepository,
	cfg *config.Webhook,
) (*WebhookHandler, error) {
	var topicFilter *regexp.Regexp
	if cfg.TopicFilter != "" {
		var err error
		topicFilter, err = regexp.Compile(cfg.TopicFilter)
		if err != nil {
			return nil, err
		}
	}
	return &WebhookHandler{
		publisher:   publisher,
		resolver:    resolver,
		repo:        repo,
		minDuration: cfg.MinDuration,
		topicFilter: topicFilter,
	}, nil
}

// HandleEvent receives the platform's recording.completed notification,
// validates it and queues a job record. Rejections are 400 with a short text
// reason and nothing is ever queued for them.
func (h *WebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	var body dto.WebhookBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.String(http.StatusBadRequest, "invalid webhook body")
		return
	}
	if len(body.Payload) == 0 {
		c.String(http.StatusBadRequest, "missing payload field in webhook body")
		return
	}

	record, err := service.ValidateAndNormalize(body.Payload)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("event rejected")
		c.String(http.StatusBadRequest, rejectionReason(err))
		return
	}

	if record.Duration < h.minDuration {
		zerolog.Ctx(ctx).Info().Str("uuid", record.UUID).Int("duration", record.Duration).Msg("recording is too short")
		c.String(http.StatusBadRequest, "recording is too short")
		return
	}
	if h.topicFilter != nil && !h.topicFilter.MatchString(record.Topic) {
		zerolog.Ctx(ctx).Info().Str("uuid", record.UUID).Str("topic", record.Topic).Msg("topic does not match filter")
		c.String(http.StatusBadRequest, "topic does not match filter")
		return
	}

	creator, err := h.resolver.ResolveCreator(ctx, record.HostID)
	if err != nil {
		// The platform redelivers on non-2xx, so a directory hiccup is not fatal.
		zerolog.Ctx(ctx).Error().Err(err).Str("host_id", record.HostID).Msg("failed to resolve creator")
		c.String(http.StatusBadGateway, "unable to resolve recording creator")
		return
	}

	record.Token = body.DownloadToken
	record.Creator = creator
	record.ReceivedTime = time.Now().UTC().Format(time.RFC3339)

	if err := h.publisher.Publish(ctx, record); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("uuid", record.UUID).Msg("failed to publish job record")
		c.String(http.StatusInternalServerError, "failed to queue recording")
		return
	}

	c.String(http.StatusOK, "Success")
}

// GetStatus is the read-only state lookup for the browse UI.
func (h *WebhookHandler) GetStatus(c *gin.Context) {
	uid := c.Param("uuid")

	recording, err := h.repo.Get(c.Request.Context(), uid)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown recording"})
		return
	}
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("uuid", uid).Msg("failed to read recording state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status store unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uuid":  recording.UID,
		"state": recording.State,
	})
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, service.ErrNoAcceptedFiles):
		return "no mp4 files found"
	case errors.Is(err, service.ErrIncompleteFile):
		return "mp4 file is missing required fields"
	case errors.Is(err, service.ErrMediaNotReady):
		return "mp4 file is not yet completed"
	default:
		return "payload failed validation"
	}
}
