package model

type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeRefused  Outcome = "refused"
	OutcomeDegraded Outcome = "degraded"
)

type Source struct {
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Snippet    string   `json:"snippet"`
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
}

type Answer struct {
	Text       string   `json:"text"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
	Outcome    Outcome  `json:"outcome"`
}

func (a *Answer) Clone() *Answer {
	if a == nil {
		return nil
	}
	out := *a
	out.Sources = make([]Source, len(a.Sources))
	copy(out.Sources, a.Sources)
	return &out
}

type HistoryMessage struct {
	Speaker string `json:"speaker"`
	Message string `json:"message"`
}
