package worker

import (
	"testing"

	"classifier_server/adapter/out/messaging"
	"classifier_server/core/port/out"
)

func TestParsePayload(t *testing.T) {
	msg := NewMessage(JobClassify, []byte(`{"job_id":"j1","owner_id":"u1","email_id":42}`))

	payload, err := ParsePayload[out.ClassifyJob](msg)
	if err != nil {
		t.Fatal(err)
	}
	if payload.JobID != "j1" || payload.OwnerID != "u1" || payload.EmailID != 42 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestParsePayloadRejectsGarbage(t *testing.T) {
	msg := NewMessage(JobClassify, []byte(`not json`))
	if _, err := ParsePayload[out.ClassifyJob](msg); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestStreamJobTypeMapping(t *testing.T) {
	tests := []struct {
		stream string
		want   JobType
	}{
		{messaging.StreamClassify, JobClassify},
		{messaging.StreamReclassify, JobReclassify},
		{messaging.StreamApplyRule, JobApplyRule},
		{messaging.StreamMine, JobMine},
	}
	for _, tt := range tests {
		if got := streamJobTypes[tt.stream]; got != tt.want {
			t.Errorf("streamJobTypes[%s] = %s, want %s", tt.stream, got, tt.want)
		}
	}
	// Every consumed stream must route somewhere
	for _, stream := range messaging.AllStreams {
		if _, ok := streamJobTypes[stream]; !ok {
			t.Errorf("stream %s has no job type", stream)
		}
	}
}

func TestMessagePriority(t *testing.T) {
	normal := NewMessage(JobReclassify, nil)
	if normal.IsPriority() {
		t.Error("plain message must not be priority")
	}
	high := NewPriorityMessage(JobClassify, nil, PriorityHigh)
	if !high.IsPriority() {
		t.Error("high priority message not flagged")
	}
	if normal.ID == "" || high.ID == "" {
		t.Error("messages must get IDs")
	}
}
