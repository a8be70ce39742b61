package worker

import (
	"context"

	"classifier_server/adapter/out/messaging"
	"classifier_server/pkg/logger"

	"github.com/goccy/go-json"
)

// Handler routes messages to the processor owning each job type.
type Handler struct {
	classifyProcessor   *ClassifyProcessor
	reclassifyProcessor *ReclassifyProcessor
	mineProcessor       *MineProcessor
}

func NewHandler(
	classifyProcessor *ClassifyProcessor,
	reclassifyProcessor *ReclassifyProcessor,
	mineProcessor *MineProcessor,
) *Handler {
	return &Handler{
		classifyProcessor:   classifyProcessor,
		reclassifyProcessor: reclassifyProcessor,
		mineProcessor:       mineProcessor,
	}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	logger.Debug("Processing message: %s", msg.Type)

	switch msg.Type {
	case JobClassify:
		return h.classifyProcessor.ProcessClassify(ctx, msg)
	case JobReclassify:
		return h.reclassifyProcessor.ProcessReclassify(ctx, msg)
	case JobApplyRule:
		return h.reclassifyProcessor.ProcessApplyRule(ctx, msg)
	case JobMine:
		return h.mineProcessor.ProcessMine(ctx, msg)
	default:
		logger.Warn("Unknown job type: %s", msg.Type)
		return nil
	}
}

// ParsePayload decodes the raw stream body into a typed job struct.
func ParsePayload[T any](msg *Message) (*T, error) {
	var payload T
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// streamJobTypes maps consumer streams to pool job types.
var streamJobTypes = map[string]JobType{
	messaging.StreamClassify:   JobClassify,
	messaging.StreamReclassify: JobReclassify,
	messaging.StreamApplyRule:  JobApplyRule,
	messaging.StreamMine:       JobMine,
}

// StreamHandler bridges the stream consumer to the worker pool; it satisfies
// messaging.JobHandler.
type StreamHandler struct {
	pool *Pool
}

func NewStreamHandler(pool *Pool) *StreamHandler {
	return &StreamHandler{pool: pool}
}

// Handle converts a stream message into a pool job. Single-email classify
// jobs are user-facing, so they ride the priority queue.
func (h *StreamHandler) Handle(ctx context.Context, stream string, data []byte) error {
	jobType, ok := streamJobTypes[stream]
	if !ok {
		logger.Warn("Unknown stream: %s", stream)
		return nil
	}

	var msg *Message
	if jobType == JobClassify {
		msg = NewPriorityMessage(jobType, data, PriorityHigh)
		h.pool.SubmitPriority(msg)
		return nil
	}

	msg = NewMessage(jobType, data)
	if !h.pool.Submit(msg) {
		logger.Warn("Pool rejected job: %s", jobType)
	}
	return nil
}
