package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/example/lingua/pkg/models"
)

func TestReminderText(t *testing.T) {
	cases := []struct {
		count int
		want  string
	}{
		{1, `You have 1 card to review in "Kitchen".`},
		{3, `You have 3 cards to review in "Kitchen".`},
	}
	for _, tc := range cases {
		if got := ReminderText("Kitchen", tc.count); got != tc.want {
			t.Fatalf("ReminderText(%d): want=%q got=%q", tc.count, tc.want, got)
		}
	}
}

func TestNewNotifierRequiresTokenAndChat(t *testing.T) {
	if _, err := NewNotifier(Config{ChatID: 1}, nil); err == nil {
		t.Fatalf("NewNotifier(no token): want error")
	}
	if _, err := NewNotifier(Config{Token: "t"}, nil); err == nil {
		t.Fatalf("NewNotifier(no chat): want error")
	}
}

func TestSendReminder(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bottest-token/getMe":
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Lingua","username":"lingua_bot"}}`)
		case "/bottest-token/sendMessage":
			if err := r.ParseForm(); err != nil {
				t.Errorf("ParseForm: %v", err)
			}
			if got := r.FormValue("chat_id"); got != "42" {
				t.Errorf("chat_id: want=%q got=%q", "42", got)
			}
			mu.Lock()
			sent = append(sent, r.FormValue("text"))
			mu.Unlock()
			fmt.Fprint(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	n, err := NewNotifier(Config{Token: "test-token", ChatID: 42, Endpoint: srv.URL + "/bot%s/%s"}, nil)
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	if err := n.SendReminder(context.Background(), models.Deck{ID: "d1", Name: "Kitchen"}, 2); err != nil {
		t.Fatalf("SendReminder: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 1 || sent[0] != ReminderText("Kitchen", 2) {
		t.Fatalf("sent: got=%v", sent)
	}
}
