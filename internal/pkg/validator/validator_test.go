package validator

import "testing"

type sampleRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	UserID    string `json:"user_id" validate:"omitempty,uuid"`
	XPAmount  int64  `json:"xp_amount" validate:"required,gt=0"`
}

func TestValidateOK(t *testing.T) {
	req := sampleRequest{SessionID: "cs_1", XPAmount: 100}
	if details := Validate(req); details != nil {
		t.Errorf("Validate = %v, want nil", details)
	}
}

func TestValidateUsesJSONFieldNames(t *testing.T) {
	details := Validate(sampleRequest{XPAmount: 100})
	if details == nil {
		t.Fatal("expected validation errors")
	}
	if _, ok := details["session_id"]; !ok {
		t.Errorf("errors keyed by %v, want json name session_id", details)
	}
}

func TestValidateUUID(t *testing.T) {
	req := sampleRequest{SessionID: "cs_1", UserID: "not-a-uuid", XPAmount: 100}
	details := Validate(req)
	if details == nil {
		t.Fatal("invalid uuid accepted")
	}
	if _, ok := details["user_id"]; !ok {
		t.Errorf("errors = %v, want user_id entry", details)
	}
}

func TestValidateAmountBounds(t *testing.T) {
	for _, amount := range []int64{0, -5} {
		req := sampleRequest{SessionID: "cs_1", XPAmount: amount}
		if details := Validate(req); details == nil {
			t.Errorf("xp_amount %d accepted", amount)
		}
	}
}
