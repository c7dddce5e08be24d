package joblogs

type ListJobLogsQuery struct {
	AfterID *int     `query:"after_id" json:"after_id,omitempty" validate:"omitempty,min=0"`
	Level   []string `query:"level" json:"level,omitempty" validate:"dive,oneof=info warn error"`
	Search  *string  `query:"search" json:"search,omitempty" mod:"trim"`
	Limit   int      `query:"limit" json:"limit,omitempty" default:"200" validate:"min=1,max=1000"`
}
