package model

type RSVP struct {
	ID      int64 `json:"id"`
	GuestID int64 `json:"guestId"`
	EventID int64 `json:"eventId"`
}
