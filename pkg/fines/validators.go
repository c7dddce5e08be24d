package fines

type UpdateFinePayload struct {
	PaidStatus string `json:"paid_status" validate:"required,oneof=paid not_paid"`
}

type ListFinesQuery struct {
	Limit  int `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=100"`
	Offset int `query:"offset" json:"offset,omitempty" validate:"min=0"`
}

type TotalResponse struct {
	Total string `json:"total"`
}

type PayTotalResponse struct {
	Settled int `json:"settled"`
}
