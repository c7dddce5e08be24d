package events

import "time"

type CreateEventPayload struct {
	EventDate   time.Time `json:"event_date" validate:"required"`
	EventName   string    `json:"event_name" validate:"required,max=100"`
	Description *string   `json:"description" validate:"omitempty,max=250"`
	Timing      *string   `json:"timing" validate:"omitempty,max=500"`
}

type UpdateEventPayload struct {
	EventDate   *time.Time `json:"event_date,omitempty"`
	EventName   *string    `json:"event_name,omitempty" validate:"omitempty,max=100"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=250"`
	Timing      *string    `json:"timing,omitempty" validate:"omitempty,max=500"`
}

type ListEventsQuery struct {
	Limit  int `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=100"`
	Offset int `query:"offset" json:"offset,omitempty" validate:"min=0"`
}

type SearchEventsQuery struct {
	Limit       int     `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=100"`
	Offset      int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	EventName   *string `query:"event_name" json:"event_name,omitempty" validate:"omitempty,max=100"`
	EventDate   string  `query:"event_date" json:"event_date,omitempty" validate:"date"`
	Description *string `query:"description" json:"description,omitempty" validate:"omitempty,max=250"`
}
