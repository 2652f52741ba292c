package contracts

type SuccessResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type ReadinessResponse struct {
	Profile  string   `json:"profile"`
	Channels []string `json:"channels"`
	Dedup    string   `json:"dedup"`
}
