package response

type CovidRestrictionResponse struct {
	Country string `json:"country"`
	State   string `json:"state,omitempty"`
	City    string `json:"city,omitempty"`
	Level   string `json:"level"`
}
