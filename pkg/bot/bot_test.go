package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"ridebook/pkg/lifecycle"
	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/service"
	"ridebook/storage"
)

func TestRenderNotificationEscapes(t *testing.T) {
	got := renderNotification(models.Notification{Title: "New <Request>", Body: "a & b"})
	want := "<b>New &lt;Request&gt;</b>\na &amp; b"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if got := renderNotification(models.Notification{Title: "Only"}); got != "<b>Only</b>" {
		t.Fatalf("title only rendered as %q", got)
	}
}

func TestIsNewRequest(t *testing.T) {
	offer := service.NewRequestNotification(&models.Order{ID: "AA0001", Service: models.ServiceChauffeur, City: "Kuala Lumpur"})
	if !isNewRequest(offer) {
		t.Fatal("request offer should carry accept buttons")
	}
	status := models.Notification{Title: "Order update", Data: map[string]string{"requestId": "AA0001", "status": "accepted"}}
	if isNewRequest(status) {
		t.Fatal("status update should not carry accept buttons")
	}
}

func TestRequestMarkupCarriesOrderID(t *testing.T) {
	m := requestMarkup("AA0042")
	if len(m.InlineKeyboard) != 1 || len(m.InlineKeyboard[0]) != 2 {
		t.Fatalf("unexpected keyboard %+v", m.InlineKeyboard)
	}
	for _, btn := range m.InlineKeyboard[0] {
		if !strings.HasSuffix(btn.Data, "AA0042") {
			t.Fatalf("button %q does not carry the order id", btn.Data)
		}
	}
}

func TestTripMarkupFollowsStatus(t *testing.T) {
	cases := []struct {
		status models.OrderStatus
		want   []string
	}{
		{models.StatusAccepted, []string{"⏳ Arrived", "▶ Start"}},
		{models.StatusWaiting, []string{"▶ Start"}},
		{models.StatusInProgress, []string{"🏁 Finish"}},
		{models.StatusCompleted, nil},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			m := tripMarkup(&models.Order{ID: "AA0001", Status: tc.status})
			if tc.want == nil {
				if m != nil {
					t.Fatalf("expected no buttons, got %+v", m.InlineKeyboard)
				}
				return
			}
			if m == nil || len(m.InlineKeyboard) != 1 {
				t.Fatalf("expected one row, got %+v", m)
			}
			var got []string
			for _, btn := range m.InlineKeyboard[0] {
				got = append(got, btn.Text)
			}
			if fmt.Sprint(got) != fmt.Sprint(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestActionError(t *testing.T) {
	cases := map[error]string{
		storage.ErrConflict:     "This request was already taken.",
		storage.ErrNotFound:     "Request not found.",
		service.ErrForbidden:    "You cannot act on this request.",
		errors.New("pool closed"): "Something went wrong, try again.",
		fmt.Errorf("accept: %w", lifecycle.ErrIllegalTransition): "This step is no longer possible.",
	}
	for err, want := range cases {
		if got := actionError(err); got != want {
			t.Errorf("actionError(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestOfflinePushFails(t *testing.T) {
	b, err := New("", logger.NewNop())
	if err != nil {
		t.Fatalf("offline bot: %v", err)
	}
	err = b.Push(context.Background(), 42, models.Notification{Title: "x"})
	if !errors.Is(err, ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", err)
	}
}
