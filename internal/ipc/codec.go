// Package ipc implements the length-prefixed request/response wire protocol
// that couples the client to the daemon over a Unix-domain socket: a 4-byte
// big-endian length prefix followed by a JSON-encoded, tagged-union message
// (see SPEC_FULL.md §4.3). encoding/json plus encoding/binary are used
// deliberately instead of a third-party serialization stack or gRPC — see
// DESIGN.md's standard-library-only justifications.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/joshuarubin/job/internal/joberrors"
)

// MaxFrameSize is the largest payload, in bytes, accepted by ReadFrame.
// Enforces B2: exactly MaxFrameSize is accepted, MaxFrameSize+1 is rejected.
const MaxFrameSize = 10 * 1024 * 1024

// WriteFrame writes a 4-byte big-endian length prefix followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload))) //nolint:gosec
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("ipc: write frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("ipc: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame. It returns
// joberrors.ErrFrameTooLarge, without having consumed the payload, if the
// declared length exceeds MaxFrameSize; callers must close the connection in
// that case, since the stream is no longer framing-aligned.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("ipc: read frame length: %w", err)
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, joberrors.ErrFrameTooLarge
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("ipc: read frame payload: %w", err)
	}
	return payload, nil
}

// RequestType discriminates Request variants.
type RequestType string

const (
	RequestPing   RequestType = "ping"
	RequestSubmit RequestType = "submit"
	RequestStop   RequestType = "stop"
	RequestWait   RequestType = "wait"
	RequestGet    RequestType = "get"
	RequestList   RequestType = "list"
	RequestRetry  RequestType = "retry"
	RequestClean  RequestType = "clean"
	RequestStatus RequestType = "status"
)

// Request is the tagged union of everything a client can ask the daemon.
// Only the fields relevant to Type are populated.
type Request struct {
	Type RequestType `json:"type"`

	// Submit
	Command        string          `json:"command,omitempty"`
	Name           string          `json:"name,omitempty"`
	Cwd            string          `json:"cwd,omitempty"`
	Project        string          `json:"project,omitempty"`
	TimeoutSecs    *int            `json:"timeout_secs,omitempty"`
	Context        json.RawMessage `json:"context,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`

	// Stop / Wait / Get / Retry: a job id or name
	ID string `json:"id,omitempty"`

	// Stop
	Force bool `json:"force,omitempty"`

	// List
	Status string `json:"status,omitempty"`
	Limit  *int   `json:"limit,omitempty"`

	// Clean
	OlderThanSecs int  `json:"older_than_secs,omitempty"`
	All           bool `json:"all,omitempty"`
}

// ResponseType discriminates Response variants.
type ResponseType string

const (
	ResponseOk     ResponseType = "ok"
	ResponseJob    ResponseType = "job"
	ResponseJobs   ResponseType = "jobs"
	ResponsePong   ResponseType = "pong"
	ResponseStatus ResponseType = "status"
	ResponseError  ResponseType = "error"
)

// StatusInfo is the payload of a Status response.
type StatusInfo struct {
	UptimeSecs   int64 `json:"uptime_secs"`
	RunningCount int   `json:"running_count"`
	TotalJobs    int   `json:"total_jobs"`
}

// Response is the tagged union of everything the daemon can reply with. Job
// is left as json.RawMessage here (rather than *job.Job) so this package has
// no dependency on the job package; callers decode it with
// json.Unmarshal(resp.Job, &j).
type Response struct {
	Type ResponseType `json:"type"`

	Job    json.RawMessage `json:"job,omitempty"`
	Jobs   json.RawMessage `json:"jobs,omitempty"`
	Status *StatusInfo     `json:"status,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Encode marshals v (a *Request or *Response) to JSON.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// WriteRequest encodes and frames a Request.
func WriteRequest(w io.Writer, req *Request) error {
	payload, err := Encode(req)
	if err != nil {
		return fmt.Errorf("ipc: encode request: %w", err)
	}
	return WriteFrame(w, payload)
}

// ReadRequest reads and decodes one framed Request.
func ReadRequest(r io.Reader) (*Request, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("ipc: decode request: %w", err)
	}
	return &req, nil
}

// WriteResponse encodes and frames a Response.
func WriteResponse(w io.Writer, resp *Response) error {
	payload, err := Encode(resp)
	if err != nil {
		return fmt.Errorf("ipc: encode response: %w", err)
	}
	return WriteFrame(w, payload)
}

// ReadResponse reads and decodes one framed Response.
func ReadResponse(r io.Reader) (*Response, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("ipc: decode response: %w", err)
	}
	return &resp, nil
}

// ErrorResponse builds an error Response from err.
func ErrorResponse(err error) *Response {
	return &Response{Type: ResponseError, Error: err.Error()}
}
