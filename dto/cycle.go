package dto

// CycleSummary is returned by one scheduling cycle
type CycleSummary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

func (s *CycleSummary) Add(other CycleSummary) {
	s.Processed += other.Processed
	s.Sent += other.Sent
	s.Failed += other.Failed
	s.Skipped += other.Skipped
}
