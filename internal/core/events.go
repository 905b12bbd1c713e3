package core

// DayAction says what happened to a day.
type DayAction string

const (
	DayUpserted DayAction = "upserted"
	DayDeleted  DayAction = "deleted"
)

// DayChanged is emitted after a committed write touching one user's day.
type DayChanged struct {
	UserID int64     `json:"user_id"`
	Date   Date      `json:"date"`
	Action DayAction `json:"action"`
}
