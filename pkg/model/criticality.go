package model

// SymptomScore is a 1-10 severity estimate assigned to one symptom by the
// scoring service
type SymptomScore struct {
	Name  string `json:"name"`
	Score int    `json:"criticality"`
}

// DailyCriticality is the scored view of one day bucket
type DailyCriticality struct {
	Day        Day            `json:"date"`
	Symptoms   []SymptomScore `json:"symptoms"`
	TotalScore int            `json:"totalDailyScore"`
}
