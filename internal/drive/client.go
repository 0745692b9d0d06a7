// Package drive talks to the remote document store: a Drive-style HTTP
// API holding the user's journal as markdown files in named folders.
//
// The client is deliberately thin. It knows how to create, update, list,
// download, and delete files, and how to resolve folders by name; all
// sync policy (what to upload when, retries, conflict handling) lives in
// the syncer package.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/inkwell-app/inkwell/internal/auth"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultBaseURL is the metadata endpoint root.
	DefaultBaseURL = "https://www.googleapis.com/drive/v3"
	// DefaultUploadURL is the media upload endpoint root.
	DefaultUploadURL = "https://www.googleapis.com/upload/drive/v3"

	markdownMIME = "text/markdown"
	folderMIME   = "application/vnd.google-apps.folder"

	requestTimeout = 30 * time.Second
)

// ErrNoCredentials is returned when the token source has nothing to offer.
var ErrNoCredentials = errors.New("no credentials available")

// StatusError reports a non-2xx response from the remote store.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote store returned status %d: %s", e.Code, e.Body)
}

// IsNotFound reports whether err is a 404 from the remote store.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// File is the subset of remote file metadata the sync engine uses.
type File struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType"`
	Parents  []string `json:"parents,omitempty"`
	Trashed  bool     `json:"trashed,omitempty"`
}

type fileList struct {
	Files         []File `json:"files"`
	NextPageToken string `json:"nextPageToken"`
}

// Client is an authenticated remote store client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	uploadURL  string
	tokens     auth.TokenSource
	folders    *FolderCache
	logger     *log.Logger

	folderGroup singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs overrides the API endpoints, for tests.
func WithBaseURLs(base, upload string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
		c.uploadURL = strings.TrimRight(upload, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a remote store client. tokens must not be nil; cache
// may be nil, in which case folder lookups are never cached. If logger is
// nil, a default logger writing to stderr is used.
func NewClient(tokens auth.TokenSource, cache *FolderCache, logger *log.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = log.New(os.Stderr, "[drive] ", log.LstdFlags)
	}
	c := &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    DefaultBaseURL,
		uploadURL:  DefaultUploadURL,
		tokens:     tokens,
		folders:    cache,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether a credential currently exists.
func (c *Client) Available() bool {
	_, ok := c.tokens.Token()
	return ok
}

func (c *Client) do(ctx context.Context, method, rawURL string, contentType string, body io.Reader) (*http.Response, error) {
	token, ok := c.tokens.Token()
	if !ok {
		return nil, ErrNoCredentials
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	return resp, nil
}

func decodeFile(resp *http.Response) (*File, error) {
	defer resp.Body.Close()
	var f File
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode file metadata: %w", err)
	}
	return &f, nil
}

// CreateFile uploads a new markdown file under parentID using a
// multipart request: a JSON metadata part followed by the media part.
// It returns the created file's metadata.
func (c *Client) CreateFile(ctx context.Context, parentID, name, content string) (*File, error) {
	meta := File{Name: name, MimeType: markdownMIME}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := w.CreatePart(metaHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata part: %w", err)
	}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", markdownMIME)
	mediaPart, err := w.CreatePart(mediaHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create media part: %w", err)
	}
	if _, err := io.WriteString(mediaPart, content); err != nil {
		return nil, fmt.Errorf("failed to write media: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	u := c.uploadURL + "/files?uploadType=multipart&fields=id,name,mimeType,parents"
	resp, err := c.do(ctx, http.MethodPost, u, "multipart/related; boundary="+w.Boundary(), &buf)
	if err != nil {
		return nil, err
	}
	f, err := decodeFile(resp)
	if err != nil {
		return nil, err
	}
	c.logger.Printf("Created remote file: %s (%s)", name, f.ID)
	return f, nil
}

// UpdateFile replaces the content of an existing remote file in place.
// The file keeps its identity, name, and parent.
func (c *Client) UpdateFile(ctx context.Context, fileID, content string) (*File, error) {
	u := c.uploadURL + "/files/" + url.PathEscape(fileID) + "?uploadType=media&fields=id,name,mimeType"
	resp, err := c.do(ctx, http.MethodPatch, u, markdownMIME, strings.NewReader(content))
	if err != nil {
		return nil, err
	}
	f, err := decodeFile(resp)
	if err != nil {
		return nil, err
	}
	c.logger.Printf("Updated remote file: %s", fileID)
	return f, nil
}

// Download fetches a remote file's content.
func (c *Client) Download(ctx context.Context, fileID string) (string, error) {
	u := c.baseURL + "/files/" + url.PathEscape(fileID) + "?alt=media"
	resp, err := c.do(ctx, http.MethodGet, u, "", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read file content: %w", err)
	}
	return string(data), nil
}

// DeleteFile removes a remote file. A file that is already gone counts
// as deleted, so retried deletes converge.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	u := c.baseURL + "/files/" + url.PathEscape(fileID)
	resp, err := c.do(ctx, http.MethodDelete, u, "", nil)
	if err != nil {
		if IsNotFound(err) {
			c.logger.Printf("Remote file already gone: %s", fileID)
			return nil
		}
		return err
	}
	resp.Body.Close()
	c.logger.Printf("Deleted remote file: %s", fileID)
	return nil
}

// FindFile looks up a non-trashed file by name under parentID. It
// returns nil when no such file exists.
func (c *Client) FindFile(ctx context.Context, parentID, name string) (*File, error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false",
		escapeQuery(name), escapeQuery(parentID))
	files, err := c.list(ctx, q, 1)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	return &files[0], nil
}

// ListFolder returns all non-trashed files directly under parentID,
// following pagination to the end.
func (c *Client) ListFolder(ctx context.Context, parentID string) ([]File, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(parentID))
	return c.list(ctx, q, 0)
}

func (c *Client) list(ctx context.Context, query string, pageSize int) ([]File, error) {
	var all []File
	pageToken := ""
	for {
		v := url.Values{}
		v.Set("q", query)
		v.Set("fields", "nextPageToken,files(id,name,mimeType,parents,trashed)")
		if pageSize > 0 {
			v.Set("pageSize", fmt.Sprint(pageSize))
		}
		if pageToken != "" {
			v.Set("pageToken", pageToken)
		}

		resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/files?"+v.Encode(), "", nil)
		if err != nil {
			return nil, err
		}
		var page fileList
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode file list: %w", err)
		}

		all = append(all, page.Files...)
		if page.NextPageToken == "" || (pageSize > 0 && len(all) >= pageSize) {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

// escapeQuery escapes single quotes and backslashes for the q parameter.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
