package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"whaling/internal/core"
)

var ErrInvalidMessage = errors.New("invalid year selection message")

// YearSelectedMessage asks every listening view to move to Year. Origin names
// the remote controller that sent it and is only used for logging.
type YearSelectedMessage struct {
	Year      int       `json:"year"`
	Origin    string    `json:"origin,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewYearSelectedMessage creates a message stamped with the current time
func NewYearSelectedMessage(year int, origin string) *YearSelectedMessage {
	return &YearSelectedMessage{
		Year:      year,
		Origin:    origin,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *YearSelectedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// YearSelectedMessageFromJSON decodes and validates a message
func YearSelectedMessageFromJSON(data []byte) (*YearSelectedMessage, error) {
	var msg YearSelectedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.Year <= 0 {
		return nil, fmt.Errorf("%w: year %d", ErrInvalidMessage, msg.Year)
	}
	return &msg, nil
}

// Selection converts the message into the view's inbound selection.
func (m *YearSelectedMessage) Selection() core.YearSelected {
	return core.YearSelected{Year: m.Year, Source: core.SourceRemote}
}
