package domain

import "time"

// HelpRequest is raised by a driver from the kiosk.
type HelpRequest struct {
	ID        string          `json:"id" bson:"_id"`
	BookingID string          `json:"booking_id" bson:"booking_id"`
	Code      string          `json:"confirmation_code" bson:"confirmation_code"`
	Message   string          `json:"message" bson:"message"`
	Status    BookingStatus   `json:"status" bson:"status"`
	Position  *PositionSample `json:"position,omitempty" bson:"position,omitempty"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
}
