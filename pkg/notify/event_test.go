package notify

import (
	"encoding/json"
	"testing"

	"p9e.in/genfuel/models"
)

func TestEventRendering(t *testing.T) {
	tests := []struct {
		name        string
		event       Event
		wantSubject string
		wantBody    string
	}{
		{
			name:        "main entry",
			event:       MainEntryEvent(300, "Asha"),
			wantSubject: "Main Container Fuel Entry",
			wantBody:    "New fuel entry in main container:\nAmount: 300L\nWorker: Asha",
		},
		{
			name:        "transfer",
			event:       TransferEvent(12.5, "Gen-A", "Asha"),
			wantSubject: "Generator Fuel Transfer",
			wantBody:    "Fuel transferred to generator Gen-A:\nAmount: 12.5L\nWorker: Asha",
		},
		{
			name:        "run log",
			event:       RunLogEvent("Gen-A", 120, 20, "Ravi"),
			wantSubject: "Generator Run Log",
			wantBody:    "Generator Gen-A run log:\nDuration: 120 minutes\nFuel Consumed: 20L\nWorker: Ravi",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.event.Notification()
			if err != nil {
				t.Fatalf("Notification(): %v", err)
			}
			if n.Subject != tt.wantSubject {
				t.Errorf("subject = %q, want %q", n.Subject, tt.wantSubject)
			}
			if n.Body != tt.wantBody {
				t.Errorf("body = %q, want %q", n.Body, tt.wantBody)
			}
			if n.Status != models.NotificationStatusPending {
				t.Errorf("status = %q, want pending", n.Status)
			}
			var payload Event
			if err := json.Unmarshal(n.Payload, &payload); err != nil {
				t.Fatalf("payload: %v", err)
			}
			if payload.Type != tt.event.Type {
				t.Errorf("payload type = %q, want %q", payload.Type, tt.event.Type)
			}
		})
	}
}
