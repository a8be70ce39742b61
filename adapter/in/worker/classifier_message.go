package worker

import (
	"time"

	"github.com/google/uuid"
)

// Priority levels for job scheduling.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3
)

// JobType represents the type of a job.
type JobType = string

// Job types carried on the classification streams.
const (
	JobClassify   JobType = "classify.email"
	JobReclassify         = "classify.reclassify"
	JobApplyRule          = "classify.apply_rule"
	JobMine               = "classify.mine"
)

// Message is the unit of work submitted to the pool. Payload holds the raw
// stream message body; processors decode it into their typed job structs.
type Message struct {
	ID        string    `json:"id"`
	Type      JobType   `json:"type"`
	Payload   []byte    `json:"payload"`
	Priority  Priority  `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	Retries   int       `json:"retries"`
}

func NewMessage(jobType JobType, payload []byte) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		Priority:  PriorityNormal,
		CreatedAt: time.Now(),
		Retries:   0,
	}
}

// NewPriorityMessage creates a message with specific priority.
func NewPriorityMessage(jobType JobType, payload []byte, priority Priority) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		Priority:  priority,
		CreatedAt: time.Now(),
		Retries:   0,
	}
}

// IsPriority checks if message should go to priority queue.
func (m *Message) IsPriority() bool {
	return m.Priority >= PriorityHigh
}
