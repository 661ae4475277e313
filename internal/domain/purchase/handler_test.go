package purchase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/fanpulse/fanpulse-api/internal/middleware"
	"github.com/fanpulse/fanpulse-api/internal/pkg/checkout"
)

func authedRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, uuid.New())
	return req.WithContext(ctx)
}

func newVerifyHandler(verifier *fakeVerifier) *Handler {
	svc := NewService(newFakeStore(), &fakeBalances{}, verifier, &fakeBoards{}, &fakePublisher{}, 0.8)
	return NewHandler(svc)
}

func TestVerifyHandlerSuccess(t *testing.T) {
	userID := uuid.New()
	verifier := &fakeVerifier{sessions: map[string]*checkout.Session{
		"cs_ok": {ID: "cs_ok", Paid: true, XPAmount: 500, UserID: userID, XPType: checkout.XPTypePlatform},
	}}
	h := newVerifyHandler(verifier)

	req := authedRequest(http.MethodPost, "/verify", `{"session_id":"cs_ok"}`)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			XPAdded         int64 `json:"xp_added"`
			AlreadyCredited bool  `json:"already_credited"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Data.XPAdded != 500 {
		t.Errorf("response = %+v, want success with 500 xp added", resp)
	}
}

func TestVerifyHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		sessionID  string
		verifyErr  error
		wantStatus int
	}{
		{"unknown session", "cs_missing", checkout.ErrSessionNotFound, http.StatusNotFound},
		{"unpaid session", "cs_unpaid", checkout.ErrSessionUnpaid, http.StatusBadRequest},
		{"missing metadata", "cs_bare", checkout.ErrMissingMetadata, http.StatusBadRequest},
		{"provider down", "cs_down", checkout.ErrProviderUnavailable, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newVerifyHandler(&fakeVerifier{errs: map[string]error{tt.sessionID: tt.verifyErr}})

			req := authedRequest(http.MethodPost, "/verify", `{"session_id":"`+tt.sessionID+`"}`)
			rec := httptest.NewRecorder()
			h.Verify(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestVerifyHandlerRequiresAuth(t *testing.T) {
	h := newVerifyHandler(&fakeVerifier{})

	req := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(`{"session_id":"cs_x"}`))
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestVerifyHandlerRejectsBadBody(t *testing.T) {
	h := newVerifyHandler(&fakeVerifier{})

	for name, tc := range map[string]struct {
		body       string
		wantStatus int
	}{
		"invalid json":       {`{"session_id"`, http.StatusBadRequest},
		"missing session_id": {`{}`, http.StatusUnprocessableEntity},
	} {
		t.Run(name, func(t *testing.T) {
			req := authedRequest(http.MethodPost, "/verify", tc.body)
			rec := httptest.NewRecorder()
			h.Verify(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestAwardHandler(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &fakeBalances{}, &fakeVerifier{}, &fakeBoards{}, &fakePublisher{}, 0.8)
	h := NewHandler(svc)

	userID := uuid.New()
	req := authedRequest(http.MethodPost, "/", `{"user_id":"`+userID.String()+`","xp_amount":300}`)
	rec := httptest.NewRecorder()
	h.Award(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if len(store.commits) != 1 || store.commits[0].purchase.UserID != userID {
		t.Errorf("award not committed for %s", userID)
	}
}

func TestAwardHandlerValidation(t *testing.T) {
	h := NewHandler(NewService(newFakeStore(), &fakeBalances{}, &fakeVerifier{}, &fakeBoards{}, &fakePublisher{}, 0.8))

	tests := map[string]string{
		"not a uuid":      `{"user_id":"abc","xp_amount":300}`,
		"zero amount":     `{"user_id":"` + uuid.NewString() + `","xp_amount":0}`,
		"negative amount": `{"user_id":"` + uuid.NewString() + `","xp_amount":-10}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			req := authedRequest(http.MethodPost, "/", body)
			rec := httptest.NewRecorder()
			h.Award(rec, req)

			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422; body: %s", rec.Code, rec.Body.String())
			}
		})
	}
}
