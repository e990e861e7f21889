package models

// Requests for forecast HTTP endpoints.

type ForecastRequest struct {
	Tickers   string `query:"tickers" json:"tickers" validate:"required"`
	Window    int    `query:"window" json:"window" default:"30" validate:"gte=0,lte=365"`
	FitWindow int    `query:"fit_window" json:"fit_window" default:"2" validate:"gte=1,lte=120"`
	AsOf      string `query:"as_of" json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	Policy    string `query:"policy" json:"policy" default:"fail_fast" validate:"oneof=fail_fast collect"`
}

// ForecastProgress is streamed to websocket clients for every forecast iteration.
type ForecastProgress struct {
	RunID     string  `json:"run_id"`
	Ticker    string  `json:"ticker"`
	Step      int     `json:"step"`
	Total     int     `json:"total"`
	Date      string  `json:"date"`
	Predicted float64 `json:"predicted"`
	Loss      float64 `json:"loss,omitempty"`
	Done      bool    `json:"done,omitempty"`
	Error     string  `json:"error,omitempty"`
}
