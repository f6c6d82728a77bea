package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReportRefreshMessage asks the worker to regenerate one owner's report for a
// period. It carries keys only; the worker reads the ledger itself.
type ReportRefreshMessage struct {
	OwnerID   int64     `json:"owner_id"`
	Period    string    `json:"period"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReportRefreshMessage(ownerID int64, period, reason string) *ReportRefreshMessage {
	return &ReportRefreshMessage{
		OwnerID:   ownerID,
		Period:    period,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *ReportRefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportRefreshMessageFromJSON decodes a message and rejects ones without a
// period or owner.
func ReportRefreshMessageFromJSON(data []byte) (*ReportRefreshMessage, error) {
	var msg ReportRefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID <= 0 || msg.Period == "" {
		return nil, fmt.Errorf("incomplete refresh message: owner=%d period=%q", msg.OwnerID, msg.Period)
	}
	return &msg, nil
}
