package models

// HttpRequest is an immutable frozen request payload captured either at
// definition time (one-off/cron) or at dispatch time (the actual sent
// request, recorded by the execution recorder). Headers are stored
// "k: v" per line, case-preserving, so they can be split/joined without
// losing information.
type HttpRequest struct {
	ID      string `json:"id" gorm:"type:varchar(40);primaryKey"`
	Method  string `json:"method" gorm:"type:varchar(10);not null"`
	URL     string `json:"url" gorm:"type:text;not null"`
	Headers string `json:"headers" gorm:"type:text;not null;default:''"`
	Body    []byte `json:"body,omitempty" gorm:"type:bytea"`
}

func (HttpRequest) TableName() string { return "http_requests" }

// HttpResponse is an immutable frozen response payload, recorded by the
// execution recorder when the drone returns one.
type HttpResponse struct {
	ID      string `json:"id" gorm:"type:varchar(40);primaryKey"`
	Status  int32  `json:"status" gorm:"not null"`
	Headers string `json:"headers" gorm:"type:text;not null;default:''"`
	Body    []byte `json:"body,omitempty" gorm:"type:bytea"`
}

func (HttpResponse) TableName() string { return "http_responses" }

// RedactedBody replaces a payload's body when the retention sweeper
// redacts it; headers are emptied at the same time.
const RedactedBody = "<deleted>"
