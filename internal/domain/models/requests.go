package models

// Requests for the weights HTTP endpoints. Defined in domain for consistency and reuse.

type ValuesRequest struct {
	Instrument string `query:"instrument" json:"instrument" default:"EURUSD" validate:"required"`
	Day        int    `query:"day" json:"day" validate:"gte=0,lte=1"`
	Date       string `query:"date" json:"date" validate:"required"`
	Type       int    `query:"type" json:"type" validate:"gte=0,lte=2"`
	Var        int    `query:"var" json:"var" validate:"gte=0,lte=4"`
}

type WeightsAfterRequest struct {
	Code string `query:"code" json:"code" validate:"required"`
}
