// Package auth supplies bearer tokens for the remote document store.
//
// The sync engine treats credentials as optional at every moment: a
// missing, expired, or unreadable token means "offline for now", not an
// error. TokenSource implementations therefore report availability with
// a boolean instead of an error so callers can short-circuit cleanly.
package auth

import (
	"encoding/json"
	"os"
	"time"
)

// TokenSource yields the current bearer token, if one is available.
type TokenSource interface {
	// Token returns the token and true, or "" and false when no usable
	// credential exists right now. It never blocks on the network.
	Token() (string, bool)
}

// expirySkew is subtracted from the stored expiry so a token that is
// about to lapse mid-request is already treated as unavailable.
const expirySkew = 30 * time.Second

type tokenFile struct {
	AccessToken string `json:"access_token"`
	Expiry      string `json:"expiry,omitempty"`
}

// FileTokenSource reads a JSON token file on every call, so an external
// refresher can replace the file without the daemon restarting.
type FileTokenSource struct {
	Path string
	now  func() time.Time
}

// NewFileTokenSource returns a source backed by the token file at path.
func NewFileTokenSource(path string) *FileTokenSource {
	return &FileTokenSource{Path: path, now: time.Now}
}

// Token implements TokenSource. Any read or decode problem, and any
// unparseable expiry, reads as no credential.
func (f *FileTokenSource) Token() (string, bool) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", false
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil || tf.AccessToken == "" {
		return "", false
	}
	if tf.Expiry != "" {
		exp, err := time.Parse(time.RFC3339, tf.Expiry)
		if err != nil {
			return "", false
		}
		if !f.now().Add(expirySkew).Before(exp) {
			return "", false
		}
	}
	return tf.AccessToken, true
}

// StaticTokenSource always returns the same token. An empty token reads
// as unavailable.
type StaticTokenSource string

// Token implements TokenSource.
func (s StaticTokenSource) Token() (string, bool) {
	return string(s), s != ""
}
