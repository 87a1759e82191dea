package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	interfaces "github.com/sheikh-saqib/club-membership-ledger/internal/interfaces"
	"github.com/sheikh-saqib/club-membership-ledger/internal/ledger"
	"github.com/sheikh-saqib/club-membership-ledger/internal/storage/memory"
)

var _ Service = (*ledger.Ledger)(nil)

func newTestServer(t *testing.T, limiter *rate.Limiter) (*httptest.Server, *ledger.Ledger) {
	t.Helper()
	l := ledger.NewLedger(func(ctx context.Context) (interfaces.MembershipStore, error) {
		return memory.NewMemoryMembershipStore(), nil
	})
	require.NoError(t, l.Initialize(context.Background()))
	t.Cleanup(func() { _ = l.Teardown() })

	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	srv := httptest.NewServer(NewHandler(l, limiter, nil).Routes())
	t.Cleanup(srv.Close)
	return srv, l
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func addMember(t *testing.T, srv *httptest.Server, first, last string) int {
	t.Helper()
	resp := do(t, srv, http.MethodPost, "/members",
		fmt.Sprintf(`{"first_name":%q,"last_name":%q,"birthday":"1990-01-01"}`, first, last))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		MemberNumber int `json:"member_number"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.MemberNumber
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMemberLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	n := addMember(t, srv, "Ada", "Lovelace")
	path := fmt.Sprintf("/members/%d", n)

	resp := do(t, srv, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var member struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&member))
	assert.Equal(t, "Lovelace", member.LastName)

	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodPost, path+"/deposits", `{"amount":"10.00"}`).StatusCode)
	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, path+"/memberships", "").StatusCode)
	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodPost, path+"/memberships", "").StatusCode)
	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, path+"/deposits", `{"amount":"10.00"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, path+"/deposits", `{"amount":"0"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, path+"/deposits", `{"amount":"0.004"}`).StatusCode)

	resp = do(t, srv, http.MethodGet, "/statistics/deposits", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats []struct {
		Year        int    `json:"year"`
		TotalAmount string `json:"total_amount"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.Len(t, stats, 1)
	assert.Equal(t, "10", stats[0].TotalAmount)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodDelete, path+"/memberships/active", "").StatusCode)
	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodDelete, path+"/memberships/active", "").StatusCode)

	resp = do(t, srv, http.MethodGet, path+"/memberships", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	assert.Len(t, history, 1)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, path, "").StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, path, "").StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, path+"/memberships", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodDelete, path, "").StatusCode)
}

func TestAddMemberErrors(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	addMember(t, srv, "Ada", "Lovelace")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed body", `{`, http.StatusBadRequest},
		{"bad birthday", `{"first_name":"A","last_name":"B","birthday":"yesterday"}`, http.StatusBadRequest},
		{"empty first name", `{"first_name":"","last_name":"B","birthday":"1990-01-01"}`, http.StatusBadRequest},
		{"duplicate last name", `{"first_name":"Byron","last_name":"Lovelace","birthday":"1990-01-01"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, do(t, srv, http.MethodPost, "/members", tt.body).StatusCode)
		})
	}
}

func TestAddMemberWithoutBirthdayReportsNames(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := do(t, srv, http.MethodPost, "/members", `{"first_name":"","last_name":"X"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Error, "first name and last name are required")
	assert.NotContains(t, body.Error, "birthday")

	resp = do(t, srv, http.MethodPost, "/members", `{"first_name":"Grace","last_name":"Hopper"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestInvalidMemberNumber(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/members/abc", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/members/0", "").StatusCode)
}

func TestNotInitializedIsUnavailable(t *testing.T) {
	srv, l := newTestServer(t, nil)
	require.NoError(t, l.Teardown())
	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodGet, "/statistics/deposits", "").StatusCode)
}

func TestMutatingRoutesAreRateLimited(t *testing.T) {
	srv, _ := newTestServer(t, rate.NewLimiter(rate.Limit(0.001), 1))
	addMember(t, srv, "Ada", "Lovelace")

	resp := do(t, srv, http.MethodPost, "/members", `{"first_name":"Grace","last_name":"Hopper","birthday":"1990-01-01"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/statistics/deposits", "").StatusCode)
}
