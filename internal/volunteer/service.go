package volunteer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"clubhours/internal/notify"
)

// Lifecycle errors. Handlers map these onto HTTP responses.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUploadFailed    = errors.New("proof image upload failed")
	ErrSubmitFailed    = errors.New("request submission failed")
	ErrAddFailed       = errors.New("add achievement type failed")
	ErrDeleteFailed    = errors.New("delete achievement type failed")
	ErrApproveFailed   = errors.New("request approval failed")
	ErrRejectFailed    = errors.New("request rejection failed")
	ErrStaleRow        = errors.New("row offset no longer matches the record")
	ErrAlreadyResolved = errors.New("request already resolved")
)

// Uploader stores a proof image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename string) (string, error)
}

// Service runs the request lifecycle: submit moves a request into
// Pending, approve resolves it with assigned hours, reject deletes the
// row outright. Approve and reject are mutually exclusive terminal
// actions on a pending request.
type Service struct {
	requests *Requests
	types    *AchievementTypes
	uploads  Uploader
	sink     notify.Sink
}

// NewService wires the lifecycle over its collaborators. sink may be
// nil when notifications are not configured.
func NewService(requests *Requests, types *AchievementTypes, uploads Uploader, sink notify.Sink) *Service {
	return &Service{requests: requests, types: types, uploads: uploads, sink: sink}
}

// Submit uploads the proof image and then appends a pending request
// row. The upload happens strictly first: an upload failure aborts
// before anything is written, so no request ever exists without a valid
// proof link. The admin notification is dispatched after the row
// commits and its failure never reaches the caller.
func (s *Service) Submit(ctx context.Context, universityID, description string, image []byte, fileName string) error {
	if universityID == "" || description == "" || len(image) == 0 {
		return fmt.Errorf("%w: university id, description and proof image are required", ErrInvalidInput)
	}

	link, err := s.uploads.Upload(ctx, image, uploadName(fileName))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	req := Request{
		ID:           uuid.NewString(),
		UniversityID: universityID,
		Description:  description,
		ImageLink:    link,
		Date:         time.Now().UTC().Format(time.RFC3339),
	}
	if !s.requests.Add(ctx, req) {
		return ErrSubmitFailed
	}
	submitsTotal.Inc()

	s.notifyAsync("New volunteer hours request",
		fmt.Sprintf("Student %s submitted a request: %s", universityID, description))
	return nil
}

// Approve resolves the pending request at rowIndex with the assigned
// hours. recordID, when the caller has one, guards against the offset
// having shifted under a concurrent mutation.
//
// The two writes are separate backend calls with no atomicity: hours
// lands first so a concurrent pending-list reader can never observe
// approved=true with zero hours. A crash between the writes leaves the
// request pending with hours set, which a re-approve repairs.
func (s *Service) Approve(ctx context.Context, rowIndex int, recordID string, hours float64, approvedBy string) error {
	if hours <= 0 {
		return fmt.Errorf("%w: hours must be positive", ErrInvalidInput)
	}
	cur, err := s.pendingAt(ctx, rowIndex, recordID, ErrApproveFailed)
	if err != nil {
		return err
	}
	if !s.requests.SetHoursAt(ctx, cur.RowIndex, hours) {
		return ErrApproveFailed
	}
	if !s.requests.SetResolutionAt(ctx, cur.RowIndex, approvedBy) {
		return fmt.Errorf("%w: hours written but request still pending, approve again", ErrApproveFailed)
	}
	approvalsTotal.Inc()
	return nil
}

// Reject deletes the pending request at rowIndex. Rows after it shift
// down by one; any offsets the caller still holds are stale.
func (s *Service) Reject(ctx context.Context, rowIndex int, recordID string) error {
	cur, err := s.pendingAt(ctx, rowIndex, recordID, ErrRejectFailed)
	if err != nil {
		return err
	}
	if !s.requests.DeleteAt(ctx, cur.RowIndex) {
		return ErrRejectFailed
	}
	rejectionsTotal.Inc()
	return nil
}

// pendingAt re-reads the row before any mutation and verifies it is
// still the pending request the caller meant. The backing store would
// otherwise apply the write to whatever row sits at the offset now.
func (s *Service) pendingAt(ctx context.Context, rowIndex int, recordID string, opErr error) (Request, error) {
	cur, found, err := s.requests.GetAt(ctx, rowIndex)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", opErr, err)
	}
	if !found {
		return Request{}, fmt.Errorf("%w: no request at offset %d", ErrStaleRow, rowIndex)
	}
	if cur.Approved {
		return Request{}, ErrAlreadyResolved
	}
	if recordID != "" && cur.ID != "" && cur.ID != recordID {
		return Request{}, fmt.Errorf("%w: offset %d now holds a different request", ErrStaleRow, rowIndex)
	}
	return cur, nil
}

// AddType creates a new achievement type with a positive hour value.
func (s *Service) AddType(ctx context.Context, name string, hours float64) error {
	if name == "" || hours <= 0 {
		return fmt.Errorf("%w: name and positive hours are required", ErrInvalidInput)
	}
	t := AchievementType{
		ID:        uuid.NewString(),
		Name:      name,
		Hours:     hours,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if !s.types.Add(ctx, t) {
		return ErrAddFailed
	}
	return nil
}

// DeleteType removes the achievement type at rowIndex, with the same
// staleness guard as request resolution.
func (s *Service) DeleteType(ctx context.Context, rowIndex int, recordID string) error {
	cur, found, err := s.types.GetAt(ctx, rowIndex)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	if !found {
		return fmt.Errorf("%w: no achievement type at offset %d", ErrStaleRow, rowIndex)
	}
	if recordID != "" && cur.ID != "" && cur.ID != recordID {
		return fmt.Errorf("%w: offset %d now holds a different type", ErrStaleRow, rowIndex)
	}
	if !s.types.DeleteAt(ctx, rowIndex) {
		return ErrDeleteFailed
	}
	return nil
}

// notifyAsync publishes off the request path. The publish gets its own
// context so an abandoned caller cannot cancel it mid-flight.
func (s *Service) notifyAsync(title, body string) {
	if s.sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.sink.Publish(ctx, notify.Notification{Title: title, Body: body}); err != nil {
			log.Printf("notification publish failed (ignored): %v", err)
		}
	}()
}

// uploadName builds a collision-free storage name, keeping the original
// extension when there is one.
func uploadName(fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%d-%s%s", time.Now().Unix(), uuid.NewString()[:8], ext)
}
