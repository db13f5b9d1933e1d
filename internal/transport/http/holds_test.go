package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/podhaven/adinventory/internal/app"
	"github.com/podhaven/adinventory/internal/domain"
	"github.com/podhaven/adinventory/internal/tenant"
)

type stubHoldService struct {
	res        domain.Reservation
	err        error
	lastAction string
}

func (s *stubHoldService) CreateHold(_ context.Context, _ tenant.Handle, _ app.CreateHoldInput) (domain.Reservation, error) {
	s.lastAction = "create"
	return s.res, s.err
}

func (s *stubHoldService) Get(_ context.Context, _ tenant.Handle, _ string) (domain.Reservation, error) {
	s.lastAction = "get"
	return s.res, s.err
}

func (s *stubHoldService) Approve(_ context.Context, _ tenant.Handle, _ string) (domain.Reservation, error) {
	s.lastAction = "approve"
	return s.res, s.err
}

func (s *stubHoldService) Reject(_ context.Context, _ tenant.Handle, _, _ string) (domain.Reservation, error) {
	s.lastAction = "reject"
	return s.res, s.err
}

func (s *stubHoldService) Confirm(_ context.Context, _ tenant.Handle, _, _ string) (domain.Reservation, error) {
	s.lastAction = "confirm"
	return s.res, s.err
}

func (s *stubHoldService) Release(_ context.Context, _ tenant.Handle, _ string) (domain.Reservation, error) {
	s.lastAction = "release"
	return s.res, s.err
}

func TestHandleCreateHold(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	expires := now.Add(48 * time.Hour)
	successRes := domain.Reservation{
		ID:        "res-123",
		EpisodeID: "ep-1",
		Counts:    domain.SlotCounts{PreRoll: 1},
		HoldType:  domain.HoldSoft,
		Status:    domain.StatusReserved,
		Approval:  domain.ApprovalApproved,
		ExpiresAt: &expires,
		CreatedAt: now,
	}

	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "success",
			body:           `{"episode_id":"ep-1","counts":{"pre_roll":1},"hold_type":"soft"}`,
			expectedStatus: http.StatusCreated,
			expectedSubstr: `"id":"res-123"`,
		},
		{
			name:           "invalid json",
			body:           `{"episode_id":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid input",
			body:           `{"episode_id":"ep-1","counts":{},"hold_type":"soft"}`,
			serviceErr:     domain.ErrInvalidInput,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "episode not found",
			body:           `{"episode_id":"ep-x","counts":{"pre_roll":1},"hold_type":"soft"}`,
			serviceErr:     domain.ErrNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "insufficient inventory",
			body:           `{"episode_id":"ep-1","counts":{"pre_roll":1},"hold_type":"soft"}`,
			serviceErr:     domain.ErrInsufficientInventory,
			expectedStatus: http.StatusConflict,
			expectedSubstr: codeInsufficientInventory,
		},
		{
			name:           "internal error",
			body:           `{"episode_id":"ep-1","counts":{"pre_roll":1},"hold_type":"soft"}`,
			serviceErr:     errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubHoldService{res: successRes, err: tt.serviceErr}
			req := httptest.NewRequest(http.MethodPost, "/holds", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			HandleCreateHold(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestHandleReservation_Actions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		serviceErr     error
		expectedStatus int
		expectedAction string
	}{
		{name: "get", method: http.MethodGet, path: "/holds/res-1", expectedStatus: http.StatusOK, expectedAction: "get"},
		{name: "approve", method: http.MethodPost, path: "/holds/res-1/approve", expectedStatus: http.StatusOK, expectedAction: "approve"},
		{name: "reject with reason", method: http.MethodPost, path: "/holds/res-1/reject", body: `{"reason":"client declined"}`, expectedStatus: http.StatusOK, expectedAction: "reject"},
		{name: "confirm with order", method: http.MethodPost, path: "/holds/res-1/confirm", body: `{"order_id":"ord-9"}`, expectedStatus: http.StatusOK, expectedAction: "confirm"},
		{name: "release", method: http.MethodPost, path: "/holds/res-1/release", expectedStatus: http.StatusOK, expectedAction: "release"},
		{name: "unknown action", method: http.MethodPost, path: "/holds/res-1/extend", expectedStatus: http.StatusNotFound},
		{name: "get requires GET", method: http.MethodPost, path: "/holds/res-1", expectedStatus: http.StatusMethodNotAllowed},
		{name: "action requires POST", method: http.MethodGet, path: "/holds/res-1/approve", expectedStatus: http.StatusMethodNotAllowed},
		{name: "transition conflict", method: http.MethodPost, path: "/holds/res-1/confirm", body: `{"order_id":"ord-9"}`, serviceErr: domain.ErrInvalidTransition, expectedStatus: http.StatusConflict},
		{name: "approval required", method: http.MethodPost, path: "/holds/res-1/confirm", body: `{"order_id":"ord-9"}`, serviceErr: domain.ErrApprovalRequired, expectedStatus: http.StatusConflict},
		{name: "not found", method: http.MethodPost, path: "/holds/res-x/release", serviceErr: domain.ErrNotFound, expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubHoldService{res: domain.Reservation{ID: "res-1", Status: domain.StatusReserved}, err: tt.serviceErr}

			var body *bytes.Buffer
			if tt.body != "" {
				body = bytes.NewBufferString(tt.body)
			} else {
				body = &bytes.Buffer{}
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			rec := httptest.NewRecorder()

			HandleReservation(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedAction != "" && svc.lastAction != tt.expectedAction {
				t.Fatalf("expected action %q, got %q", tt.expectedAction, svc.lastAction)
			}
		})
	}
}
