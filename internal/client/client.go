// Package client is the Go client kit for the role portal API: the
// applicant's view of their upgrade request, the reviewer console's working
// set, and the geocoding call used by the location resolver.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"epiwatch/role-portal/internal/location"
)

// --- Error Definitions ---
var (
	// ErrAccessDenied means the caller lacks the privilege for the call.
	// Callers surface it and navigate away; it is never retried.
	ErrAccessDenied = errors.New("access denied")
	// ErrConflict means the targeted request was already decided.
	ErrConflict = errors.New("request already decided")
)

// APIError carries a server-side {message} payload for other 4xx/5xx replies.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// --- Wire types, mirroring the server's JSON shapes ---

// Status is the applicant's view of their request. State "none" means no
// record exists.
type Status struct {
	State         string `json:"status"`
	RequestedRole string `json:"requestedRole,omitempty"`
	Comment       string `json:"comment,omitempty"`
}

// Applicant lifecycle states as rendered by the view.
const (
	StateNone     = "none"
	StatePending  = "pending"
	StateApproved = "approved"
	StateRejected = "rejected"
)

type Document struct {
	ID       string `json:"id"`
	FileName string `json:"filename"`
	Path     string `json:"path"`
	MimeType string `json:"mimeType"`
}

type Applicant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PendingTask is one pending upgrade request as listed for reviewers.
type PendingTask struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	RequestedRole string     `json:"requestedRole"`
	User          Applicant  `json:"user"`
	Documents     []Document `json:"documents"`
}

// File is one identity document to attach to an application.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// APIClient is a bearer-authenticated client for the role portal API.
type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates an APIClient. The token may be empty for anonymous sessions;
// only the bearer-optional location call works without one.
func New(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// MyStatus fetches the caller's request state. A 404 maps to StateNone.
func (c *APIClient) MyStatus(ctx context.Context) (*Status, error) {
	resp, err := c.do(ctx, http.MethodGet, "/tasks/my-status", "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &Status{State: StateNone}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.asError(resp)
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Apply submits or resubmits an upgrade application as a multipart body
// with a role field and the attached documents.
func (c *APIClient) Apply(ctx context.Context, role string, files []File) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("role", role); err != nil {
		return err
	}
	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="documents"; filename=%q`, file.Name))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, "/tasks/resubmit", writer.FormDataContentType(), &body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.asError(resp)
	}
	return nil
}

// Pending fetches the full pending set. Reviewer-only: a 403 maps to
// ErrAccessDenied.
func (c *APIClient) Pending(ctx context.Context) ([]PendingTask, error) {
	resp, err := c.do(ctx, http.MethodGet, "/tasks/pending", "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, ErrAccessDenied
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.asError(resp)
	}

	var tasks []PendingTask
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Decide posts an approve/reject verdict for the applicant's pending
// request. A 409 maps to ErrConflict, a 403 to ErrAccessDenied.
func (c *APIClient) Decide(ctx context.Context, applicantID, action, comment string) error {
	payload, err := json.Marshal(map[string]string{"comment": comment})
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/tasks/%s/%s", applicantID, action), "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusForbidden:
		return ErrAccessDenied
	case http.StatusConflict:
		return ErrConflict
	default:
		return c.asError(resp)
	}
}

// ReverseGeocode exchanges coordinates for a place name via POST /location.
// It implements location.Geocoder: a reply without the location field maps
// to location.ErrMalformedResponse so the resolver renders
// "Unknown Response" rather than "Network Error".
func (c *APIClient) ReverseGeocode(ctx context.Context, lat, long float64) (string, error) {
	payload, err := json.Marshal(map[string]float64{"lat": lat, "long": long})
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, http.MethodPost, "/location", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.asError(resp)
	}

	var decoded struct {
		Location string `json:"location"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", location.ErrMalformedResponse
	}
	if decoded.Location == "" {
		return "", location.ErrMalformedResponse
	}
	return decoded.Location, nil
}

// DocumentURL joins an opaque storage path to the uploads base URL. The
// result is handed to the platform's URL handler; the content is never
// parsed here.
func (c *APIClient) DocumentURL(path string) string {
	return c.baseURL + "/uploads/" + strings.TrimPrefix(path, "/")
}

// --- helpers ---

func (c *APIClient) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.httpClient.Do(req)
}

// asError decodes a {message} payload into an APIError.
func (c *APIClient) asError(resp *http.Response) error {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Message == "" {
		payload.Message = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: payload.Message}
}
