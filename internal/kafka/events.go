package kafka

import "time"

const (
	EventListProcessed = "list_processed"
	EventRowResolved   = "row_resolved"
)

// ListSubmitted asks a worker to process a raw JCSY list.
type ListSubmitted struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type ListEvent struct {
	Type        string    `json:"type"`
	ListID      int64     `json:"list_id"`
	Code        string    `json:"code"`
	Date        string    `json:"date"`
	Direction   string    `json:"direction"`
	Rows        int       `json:"rows"`
	Updated     int       `json:"updated"`
	Text        string    `json:"text"`
	ProcessedAt time.Time `json:"processed_at"`
}

type RowEvent struct {
	Type      string     `json:"type"`
	ListID    int64      `json:"list_id"`
	RowID     int64      `json:"row_id"`
	Code      string     `json:"code"`
	Airport   string     `json:"airport"`
	Status    string     `json:"status"`
	Source    string     `json:"source,omitempty"`
	DayOffset int        `json:"day_offset"`
	Time      *time.Time `json:"time,omitempty"`
	Delayed   bool       `json:"delayed"`
}
