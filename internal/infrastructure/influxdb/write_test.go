package influxdb

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeaderSteve84/habitatT-backend/internal/auth"
)

var pointTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestAuthEventPoint(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		role    auth.Role
		outcome string
		want    string
	}{
		{
			name:    "tenant login",
			event:   "login",
			role:    auth.RoleTenant,
			outcome: "success",
			want:    "auth_events,event=login,outcome=success,role=tenant count=1i",
		},
		{
			name:    "role omitted when unknown",
			event:   "forgot_password",
			outcome: "unknown",
			want:    "auth_events,event=forgot_password,outcome=unknown count=1i",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := write.PointToLineProtocol(authEventPoint(tt.event, tt.role, tt.outcome, pointTime), time.Second)
			if !strings.HasPrefix(line, tt.want+" ") {
				t.Errorf("line = %q, want prefix %q", line, tt.want)
			}
		})
	}
}

func TestStoreSizePoint(t *testing.T) {
	line := write.PointToLineProtocol(storeSizePoint(4, 2, pointTime), time.Second)

	want := "auth_stores,service=habitat pending_resets=2i,revoked_tokens=4i 1772366400\n"
	if line != want {
		t.Errorf("line = %q, want %q", line, want)
	}
}
