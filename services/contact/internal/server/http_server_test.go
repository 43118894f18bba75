package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"

	"contactapi/pkg/store"
	"contactapi/services/contact/internal/app"
	"contactapi/services/contact/internal/webhook"
)

type slowMailer struct {
	delay time.Duration
}

func (m slowMailer) Send(ctx context.Context, _, _, _ string) error {
	select {
	case <-time.After(m.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestTimeoutsWriteTimeoutCoversEverySink(t *testing.T) {
	tm := Timeouts{
		Read:    15 * time.Second,
		SMTP:    15 * time.Second,
		Webhook: 10 * time.Second,
		Store:   5 * time.Second,
		Alert:   6 * time.Second,
	}
	sinks := tm.Read + tm.SMTP + tm.Webhook + tm.Store + tm.Alert
	if got := tm.WriteTimeout(); got <= sinks {
		t.Fatalf("write timeout = %s, must exceed the %s sink budget", got, sinks)
	}

	srv := NewHTTPServer(":8000", http.NotFoundHandler(), Timeouts{})
	if srv.ReadTimeout != defaultReadTimeout {
		t.Fatalf("read timeout = %s, want %s", srv.ReadTimeout, defaultReadTimeout)
	}
	if srv.WriteTimeout <= srv.ReadTimeout {
		t.Fatalf("write timeout %s must exceed read timeout %s", srv.WriteTimeout, srv.ReadTimeout)
	}
}

func TestSlowSinksStillAcknowledgeOverTheWire(t *testing.T) {
	hookSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hookSrv.Close()

	st, err := store.Open(sqlite.Open(filepath.Join(t.TempDir(), "contact.db")))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	timeouts := Timeouts{
		Read:    100 * time.Millisecond,
		SMTP:    200 * time.Millisecond,
		Webhook: 150 * time.Millisecond,
		Store:   100 * time.Millisecond,
	}
	a, err := app.New(app.Config{
		SenderName:   "Portfolio",
		Mailer:       slowMailer{delay: timeouts.SMTP},
		Chat:         webhook.NewClient(hookSrv.URL, timeouts.Webhook),
		Store:        st,
		StoreTimeout: timeouts.Store,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv, err := New(Config{App: a})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ts := httptest.NewUnstartedServer(srv.Router())
	cfg := NewHTTPServer("", srv.Router(), timeouts)
	ts.Config.ReadTimeout = cfg.ReadTimeout
	ts.Config.WriteTimeout = cfg.WriteTimeout
	ts.Start()
	defer ts.Close()

	resp, err := http.PostForm(ts.URL+"/submit_contact_form", annForm())
	if err != nil {
		t.Fatalf("caller got no acknowledgment: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Message != "Contact form submitted successfully" {
		t.Fatalf("message = %q", body.Message)
	}
}
