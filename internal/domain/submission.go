package domain

// SubmissionItem is one answered lead from a single form submit.
type SubmissionItem struct {
	RowIndex int    `json:"row_index"`
	LeadName string `json:"lead"`
	Score    string `json:"score"`
	Comment  string `json:"comment"`
}
