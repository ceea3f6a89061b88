package amqp

import (
	"encoding/json"
	"time"
)

// VisitEventMessage notifies the worker that a visit changed. It carries only
// the event kind and the visit id; consumers fetch whatever else they need.
type VisitEventMessage struct {
	Kind      string    `json:"kind"`
	VisitID   string    `json:"visit_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewVisitEventMessage(kind, visitID string) *VisitEventMessage {
	return &VisitEventMessage{
		Kind:      kind,
		VisitID:   visitID,
		Timestamp: time.Now(),
	}
}

func (m *VisitEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func VisitEventMessageFromJSON(data []byte) (*VisitEventMessage, error) {
	var msg VisitEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SummaryRequestMessage asks the worker to build and send the monthly report
// for the given month.
type SummaryRequestMessage struct {
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSummaryRequestMessage(year, month int) *SummaryRequestMessage {
	return &SummaryRequestMessage{
		Year:      year,
		Month:     month,
		Timestamp: time.Now(),
	}
}

func (m *SummaryRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SummaryRequestMessageFromJSON(data []byte) (*SummaryRequestMessage, error) {
	var msg SummaryRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
