package server

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// LoginRequest carries the admin password.
type LoginRequest struct {
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// ResearchRequest is the payload for a synchronous research run.
type ResearchRequest struct {
	Topic          string `json:"topic"`
	Depth          string `json:"depth"`
	TechnicalLevel string `json:"technical_level,omitempty"`
	TargetWords    int    `json:"target_words,omitempty"`
}

// CreateSubscriptionRequest registers a recurring research run.
type CreateSubscriptionRequest struct {
	Topic string `json:"topic"`
	Depth string `json:"depth"`
	Cron  string `json:"cron"`
}

// IDResponse is a generic id response wrapper.
type IDResponse struct {
	ID string `json:"id"`
}
