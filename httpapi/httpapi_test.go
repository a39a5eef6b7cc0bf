package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chillymango/elo-calculator/dispatch"
	"github.com/chillymango/elo-calculator/elo"
	"github.com/chillymango/elo-calculator/gateway"
	"github.com/chillymango/elo-calculator/registry"
	"github.com/chillymango/elo-calculator/session"
	"github.com/chillymango/elo-calculator/store"
	"github.com/chillymango/elo-calculator/subscription"
)

func newServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	reg := registry.New(time.Minute)
	fabric := subscription.New(reg)
	sessions := session.New("test-secret", time.Hour)
	disp := dispatch.New(reg)
	gw := gateway.New(sessions, reg, fabric, disp)
	st, err := store.Open(":memory:", 1200)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	s := &Server{
		Sessions:      sessions,
		Registry:      reg,
		Gateway:       gw,
		Store:         st,
		Tabulator:     elo.New(1200, 16, 512),
		AdminUser:     "admin",
		AdminPassword: "hunter2",
		StartingElo:   1200,
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv, s
}

func postJSON(t *testing.T, url string, body interface{}, bearer string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestLoginThenCreateGameThenLookupByCode(t *testing.T) {
	srv, _ := newServer(t)

	resp := postJSON(t, srv.URL+"/api/login", map[string]string{"name": "alice"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loginOut map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&loginOut))
	token, _ := loginOut["token"].(string)
	require.NotEmpty(t, token)

	resp = postJSON(t, srv.URL+"/api/game", map[string]string{}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var gameOut map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&gameOut))
	code, _ := gameOut["code"].(string)
	require.Len(t, code, 4)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/game/code?code="+code, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var byCode map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&byCode))
	assert.Equal(t, gameOut["game_id"], byCode["game_id"])
}

func TestSessionRequiresBearerToken(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/api/session")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminTokenRequiresCorrectCredentials(t *testing.T) {
	srv, _ := newServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/token",
		bytes.NewBufferString("username=admin&password=wrong"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err = http.NewRequest(http.MethodPost, srv.URL+"/token",
		bytes.NewBufferString("username=admin&password=hunter2"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAddPlayerRejectsDuplicateName(t *testing.T) {
	srv, _ := newServer(t)

	resp := postJSON(t, srv.URL+"/api/add_player", map[string]string{"name": "bob"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/add_player", map[string]string{"name": "bob"}, "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRecordMatchUpdatesEloAndSummaryReflectsIt(t *testing.T) {
	srv, _ := newServer(t)

	postJSON(t, srv.URL+"/api/add_player", map[string]string{"name": "winner"}, "")
	postJSON(t, srv.URL+"/api/add_player", map[string]string{"name": "loser"}, "")

	resp := postJSON(t, srv.URL+"/api/match", map[string]string{"winner": "winner", "loser": "loser"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := http.Get(srv.URL + "/api/summary")
	require.NoError(t, err)
	var players []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&players))
	require.Len(t, players, 2)
	elos := map[string]float64{}
	for _, p := range players {
		name, _ := p["Name"].(string)
		elo, _ := p["Elo"].(float64)
		elos[name] = elo
	}
	assert.Greater(t, elos["winner"], 1200.0)
	assert.Less(t, elos["loser"], 1200.0)
}
