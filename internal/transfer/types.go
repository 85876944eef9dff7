package transfer

import (
	"net/url"
	"time"
)

// SlotRequest is the body of the slot request.
type SlotRequest struct {
	Filename string `json:"filename"`
}

// Slot is a short-lived write grant for one object in the remote store.
type Slot struct {
	PresignedURL string `json:"presigned_url"`
	Bucket       string `json:"bucket,omitempty"`
	Key          string `json:"key,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// Expiry returns the slot lifetime, zero when the coordinator did not say.
func (s *Slot) Expiry() time.Duration {
	return time.Duration(s.ExpiresIn) * time.Second
}

// ObjectURL is the presigned URL without its signature, which is the plain
// address of the stored object.
func (s *Slot) ObjectURL() string {
	u, err := url.Parse(s.PresignedURL)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
