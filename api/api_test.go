package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gwuah/steerd/steering"
)

func newTestServer(t *testing.T, ports ...uint16) (*Server, *steering.Allowlist, *[][]uint16) {
	t.Helper()

	al, err := steering.NewAllowlist(ports...)
	if err != nil {
		t.Fatalf("error creating the allow-list: %v", err)
	}

	status := func() (SocketStatus, error) {
		return SocketStatus{Mode: "userspace", Present: true, Outstanding: 2, Pending: 1}, nil
	}

	s := New(nil, al, status)

	var changes [][]uint16
	s.OnChange = func(p []uint16) { changes = append(changes, p) }

	if err := s.Init(); err != nil {
		t.Fatalf("error initialising the server: %v", err)
	}

	return s, al, &changes
}

func do(s *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestListPorts(t *testing.T) {
	s, _, _ := newTestServer(t, 443, 80)

	rec := do(s, http.MethodGet, "/ports")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}

	var got portsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("error unmarshaling %q: %v", rec.Body.String(), err)
	}

	want := portsResponse{Ports: []uint16{80, 443}, Capacity: steering.MaxPorts}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestPortLifecycle(t *testing.T) {
	s, al, changes := newTestServer(t)

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/ports/8080", http.StatusNotFound},
		{http.MethodPut, "/ports/8080", http.StatusCreated},
		{http.MethodPut, "/ports/8080", http.StatusOK},
		{http.MethodGet, "/ports/8080", http.StatusOK},
		{http.MethodPut, "/ports/0", http.StatusBadRequest},
		{http.MethodPut, "/ports/65536", http.StatusBadRequest},
		{http.MethodPut, "/ports/http", http.StatusBadRequest},
		{http.MethodDelete, "/ports/8080", http.StatusNoContent},
		{http.MethodDelete, "/ports/8080", http.StatusNotFound},
	}

	for _, test := range tests {
		if rec := do(s, test.method, test.target); rec.Code != test.want {
			t.Errorf("%s %s: got status %d, want %d (%s)", test.method, test.target, rec.Code, test.want, rec.Body.String())
		}
	}

	if al.Len() != 0 {
		t.Errorf("expected an empty allow-list, got %d ports", al.Len())
	}

	want := [][]uint16{{8080}, {}}
	if diff := cmp.Diff(want, *changes); diff != "" {
		t.Errorf("change notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestAddPortWhenFull(t *testing.T) {
	var ports []uint16
	for p := 1; p <= steering.MaxPorts; p++ {
		ports = append(ports, uint16(p))
	}
	s, _, _ := newTestServer(t, ports...)

	if rec := do(s, http.MethodPut, "/ports/2000"); rec.Code != http.StatusInsufficientStorage {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusInsufficientStorage)
	}

	// Present ports are still accepted.
	if rec := do(s, http.MethodPut, "/ports/1"); rec.Code != http.StatusOK {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestSocketStatus(t *testing.T) {
	s, _, _ := newTestServer(t)

	tests := []struct {
		target string
		want   map[string]any
	}{
		{"/socket", map[string]any{"mode": "userspace", "present": true, "outstanding": 2.0, "pending": 1.0}},
		{"/socket?verbosity=lean", map[string]any{"present": true}},
		{"/socket?verbosity=bogus", map[string]any{"mode": "userspace", "present": true, "outstanding": 2.0, "pending": 1.0}},
	}

	for _, test := range tests {
		rec := do(s, http.MethodGet, test.target)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: got status %d", test.target, rec.Code)
			continue
		}

		var got map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Errorf("%s: error unmarshaling %q: %v", test.target, rec.Body.String(), err)
			continue
		}

		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("%s: mismatch (-want +got):\n%s", test.target, diff)
		}
	}
}

func TestSocketStatusError(t *testing.T) {
	al, _ := steering.NewAllowlist()
	s := New(nil, al, func() (SocketStatus, error) { return SocketStatus{}, errors.New("boom") })
	if err := s.Init(); err != nil {
		t.Fatalf("error initialising the server: %v", err)
	}

	if rec := do(s, http.MethodGet, "/socket"); rec.Code != http.StatusInternalServerError {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestSocketStatusSkLookup(t *testing.T) {
	al, _ := steering.NewAllowlist()
	s := New(nil, al, func() (SocketStatus, error) {
		return SocketStatus{Mode: "sklookup", Present: true, Cookie: 0x2a, Inode: 13385}, nil
	})
	if err := s.Init(); err != nil {
		t.Fatalf("error initialising the server: %v", err)
	}

	rec := do(s, http.MethodGet, "/socket")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("error unmarshaling %q: %v", rec.Body.String(), err)
	}

	want := map[string]any{"mode": "sklookup", "present": true, "cookie": 42.0, "inode": 13385.0, "outstanding": 0.0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRoot(t *testing.T) {
	s, _, _ := newTestServer(t)

	for _, target := range []string{"/", "/healthz"} {
		if rec := do(s, http.MethodGet, target); rec.Code != http.StatusOK {
			t.Errorf("%s: got status %d, want %d", target, rec.Code, http.StatusOK)
		}
	}
}
