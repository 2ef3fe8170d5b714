// Package httpx holds the shared outbound HTTP client. Every external call
// (feed fetch, chat poll, notification send) goes through a client with a
// bounded timeout so a stuck endpoint cannot hang a cycle.
package httpx

import (
	"net/http"
	"time"
)

const ExternalTimeout = 30 * time.Second

var externalClient = &http.Client{
	Timeout: ExternalTimeout,
}

// ExternalClient returns the processwide outbound HTTP client.
func ExternalClient() *http.Client {
	return externalClient
}
