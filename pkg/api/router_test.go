package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cdapd/pkg/cdap"
	"github.com/marmos91/cdapd/pkg/rib"
)

func newTestRouter(t *testing.T) (http.Handler, *cdap.SessionManager, *rib.Daemon) {
	mgr := cdap.NewSessionManager(cdap.SessionManagerConfig{})
	daemon := rib.NewDaemon(nil)
	return NewRouter(mgr, daemon, "test-instance"), mgr, daemon
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, Response) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec, resp
}

func TestRouter_Health(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec, resp := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "test-instance", data["instance"])
}

func TestRouter_Sessions(t *testing.T) {
	h, mgr, _ := newTestRouter(t)

	rec, resp := get(t, h, "/api/v1/sessions")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, resp.Data)

	mgr.EnsureSession(4)
	rec, resp = get(t, h, "/api/v1/sessions")
	assert.Equal(t, http.StatusOK, rec.Code)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var sessions []SessionInfo
	require.NoError(t, json.Unmarshal(raw, &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, 4, sessions[0].PortID)
	assert.Equal(t, "NONE", sessions[0].State)
}

func TestRouter_RIBs(t *testing.T) {
	h, _, daemon := newTestRouter(t)

	_, err := daemon.CreateSchema(1)
	require.NoError(t, err)
	r, err := daemon.CreateRIB(1, nil)
	require.NoError(t, err)
	require.NoError(t, daemon.AssociateRIBToAE(r, "management"))

	rec, resp := get(t, h, "/api/v1/ribs")
	assert.Equal(t, http.StatusOK, rec.Code)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var ribs []RIBInfo
	require.NoError(t, json.Unmarshal(raw, &ribs))
	require.Len(t, ribs, 1)
	assert.Equal(t, "management", ribs[0].AEName)
	assert.Equal(t, 1, ribs[0].Objects)

	rec, _ = get(t, h, "/api/v1/ribs/999/objects")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp = get(t, h, "/api/v1/ribs/"+strconv.FormatInt(r.Handle(), 10)+"/objects")
	assert.Equal(t, http.StatusOK, rec.Code)

	raw, err = json.Marshal(resp.Data)
	require.NoError(t, err)
	var objs []rib.ObjectInfo
	require.NoError(t, json.Unmarshal(raw, &objs))
	require.Len(t, objs, 1)
	assert.Equal(t, "/", objs[0].FQN)
}
