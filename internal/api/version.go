// Package api provides HTTP API handlers for the relay panel.
package api

// APIVersion represents the current API version supported by this server.
// Clients read api_version from /status to detect capabilities.
const (
	// APIVersion1 is the two-phase login API.
	APIVersion1 = 1

	// CurrentAPIVersion is the highest API version supported by this server.
	CurrentAPIVersion = APIVersion1
)

// APICapabilities describes the features available at each API version.
var APICapabilities = map[int][]string{
	APIVersion1: {
		"otp-login",
		"session-cookie",
		"session-revocation",
		"admin-notify",
	},
}

// StatusResponse is the response from the /status endpoint.
type StatusResponse struct {
	Status       string   `json:"status"`
	Service      string   `json:"service"`
	APIVersion   int      `json:"api_version"`
	Capabilities []string `json:"capabilities,omitempty"`
}
