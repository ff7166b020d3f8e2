package dto

import (
	"encoding/json"
	"testing"
)

func TestUpdateTicketRequestAssignee(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantSet bool
		wantID  *string
	}{
		{"absent", `{"status":"resolved"}`, false, nil},
		{"explicit null", `{"assigneeId":null}`, true, nil},
		{"value", `{"assigneeId":"u2"}`, true, strPtr("u2")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req UpdateTicketRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if req.AssigneeID.Set != tt.wantSet {
				t.Fatalf("Set = %v, want %v", req.AssigneeID.Set, tt.wantSet)
			}
			switch {
			case tt.wantID == nil && req.AssigneeID.Value != nil:
				t.Fatalf("Value = %q, want nil", *req.AssigneeID.Value)
			case tt.wantID != nil && (req.AssigneeID.Value == nil || *req.AssigneeID.Value != *tt.wantID):
				t.Fatalf("Value = %v, want %s", req.AssigneeID.Value, *tt.wantID)
			}
		})
	}

	var req UpdateTicketRequest
	if err := json.Unmarshal([]byte(`{"assigneeId":42}`), &req); err == nil {
		t.Fatal("numeric assigneeId accepted")
	}
}

func strPtr(s string) *string { return &s }
