package model

type QALog struct {
	ID         string   `json:"id"`
	RequestID  string   `json:"request_id"`
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
	Outcome    Outcome  `json:"outcome"`
	Ctime      int64    `json:"ctime"`
}
