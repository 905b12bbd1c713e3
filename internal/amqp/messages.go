package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"contabilidad/internal/core"
)

// DayChangedMessage tells consumers that one user's day was written. It
// carries no amounts; the consumer reads the current state from the database.
type DayChangedMessage struct {
	UserID    int64          `json:"user_id"`
	Date      string         `json:"date"`
	Action    core.DayAction `json:"action"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewDayChangedMessage(ev core.DayChanged) *DayChangedMessage {
	return &DayChangedMessage{
		UserID:    ev.UserID,
		Date:      ev.Date.String(),
		Action:    ev.Action,
		Timestamp: time.Now().UTC(),
	}
}

func (m *DayChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DayChangedMessageFromJSON(data []byte) (*DayChangedMessage, error) {
	var msg DayChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID <= 0 {
		return nil, fmt.Errorf("message without user_id")
	}
	if _, err := core.ParseDate(msg.Date); err != nil {
		return nil, fmt.Errorf("message date %q: %w", msg.Date, err)
	}
	return &msg, nil
}

// Event converts the message back into a domain event.
func (m *DayChangedMessage) Event() core.DayChanged {
	d, _ := core.ParseDate(m.Date)
	return core.DayChanged{UserID: m.UserID, Date: d, Action: m.Action}
}
