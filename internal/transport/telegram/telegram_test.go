package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	kit "shakethefrog/internal/transport"
	logx "shakethefrog/pkg/logx"
)

func TestSplitText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{name: "short", in: "hello", limit: 10, want: []string{"hello"}},
		{name: "hard split", in: "abcdefghij", limit: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "newline", in: "abcd\nefghij", limit: 8, want: []string{"abcd", "efghij"}},
		{name: "runes", in: "ягуляг", limit: 3, want: []string{"ягу", "ляг"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := splitText(tt.in, tt.limit)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("splitText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSenderPostsToBotAPI(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		paths []string
		forms []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		forms = append(forms, string(body))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`)
	}))
	defer srv.Close()

	s, err := New(Config{Token: "123:abc", APIURL: srv.URL}, logx.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.SendText(context.Background(), kit.Target{ChatID: 42}, "new order"); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 || paths[0] != "/bot123:abc/sendMessage" {
		t.Fatalf("paths = %v", paths)
	}
	if !strings.Contains(forms[0], "new order") || !strings.Contains(forms[0], "42") {
		t.Fatalf("request body = %s", forms[0])
	}
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}, logx.Nop()); err == nil {
		t.Fatalf("New() without token should fail")
	}
}
