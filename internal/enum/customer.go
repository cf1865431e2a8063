package enum

type CustomerStatus string

const (
	CustomerStatusPending   CustomerStatus = "pending"
	CustomerStatusContacted CustomerStatus = "contacted"
	CustomerStatusReviewed  CustomerStatus = "reviewed"
)

func (s CustomerStatus) String() string {
	return string(s)
}

// rank orders statuses along the lifecycle; unknown statuses rank lowest
func (s CustomerStatus) rank() int {
	switch s {
	case CustomerStatusPending:
		return 1
	case CustomerStatusContacted:
		return 2
	case CustomerStatusReviewed:
		return 3
	default:
		return 0
	}
}

// Advances reports whether moving from s to next is a forward transition
func (s CustomerStatus) Advances(next CustomerStatus) bool {
	return next.rank() > s.rank()
}

func (s CustomerStatus) IsValid() bool {
	return s.rank() > 0
}

// StatusesBefore lists every status that next advances from
func StatusesBefore(next CustomerStatus) []CustomerStatus {
	var result []CustomerStatus
	for _, s := range []CustomerStatus{CustomerStatusPending, CustomerStatusContacted, CustomerStatusReviewed} {
		if s.Advances(next) {
			result = append(result, s)
		}
	}
	return result
}
