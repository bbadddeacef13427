package report

// FormStats summarizes visit and submission counters for a dashboard view.
type FormStats struct {
	Visits         int64   `json:"visits"`
	Submissions    int64   `json:"submissions"`
	SubmissionRate float64 `json:"submissionRate"`
	BounceRate     float64 `json:"bounceRate"`
}

// BuildStats derives submission and bounce rates from raw counter sums.
// Zero visits means a 0% submission rate and a 100% bounce rate.
func BuildStats(visits, submissions int64) FormStats {
	st := FormStats{Visits: visits, Submissions: submissions}
	if visits > 0 {
		st.SubmissionRate = float64(submissions) / float64(visits) * 100
	}
	st.BounceRate = 100 - st.SubmissionRate
	return st
}
