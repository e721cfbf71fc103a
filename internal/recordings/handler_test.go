package recordings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lkproto "github.com/livekit/protocol/livekit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodycam/backend/internal/auth"
	"github.com/bodycam/backend/internal/middleware"
	"github.com/bodycam/backend/internal/models"
)

func newTestRouter(f *fixture, caller uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(f.svc)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextIdentity, &auth.Identity{SubjectID: caller})
	})
	r.POST("/recordings/start", h.Start)
	r.POST("/recordings/stop", h.Stop)
	r.GET("/shifts/:id/recordings", h.ListByShift)
	r.GET("/recordings/:id/download-url", h.GenerateDownloadURL)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func TestHandler_StartAndStop(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f, f.employee)

	w := do(r, http.MethodPost, "/recordings/start", `{"shift_id":"`+f.shift.String()+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var started struct {
		JobID       string    `json:"job_id"`
		RecordingID uuid.UUID `json:"recording_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	assert.Equal(t, "EG_1", started.JobID)
	assert.NotEqual(t, uuid.Nil, started.RecordingID)

	f.provider.stopErr = errors.New("provider down")
	w = do(r, http.MethodPost, "/recordings/stop", `{"job_id":"EG_1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Equal(t, models.RecordingStatusCompleted, f.store.row("EG_1").Status)
}

func TestHandler_StatusCodes(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f, f.employee)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"start without body", http.MethodPost, "/recordings/start", ``, http.StatusBadRequest},
		{"start non-uuid shift", http.MethodPost, "/recordings/start", `{"shift_id":"x"}`, http.StatusNotFound},
		{"start ended shift", http.MethodPost, "/recordings/start", `{"shift_id":"` + f.ended.String() + `"}`, http.StatusNotFound},
		{"stop without job id", http.MethodPost, "/recordings/stop", `{}`, http.StatusBadRequest},
		{"stop empty body", http.MethodPost, "/recordings/stop", ``, http.StatusBadRequest},
		{"list non-uuid shift", http.MethodGet, "/shifts/x/recordings", ``, http.StatusNotFound},
		{"list bad employee", http.MethodGet, "/shifts/" + f.shift.String() + "/recordings?employee_id=x", ``, http.StatusBadRequest},
		{"list other employee", http.MethodGet, "/shifts/" + f.shift.String() + "/recordings?employee_id=" + uuid.NewString(), ``, http.StatusForbidden},
		{"download non-uuid id", http.MethodGet, "/recordings/x/download-url", ``, http.StatusNotFound},
		{"download unknown", http.MethodGet, "/recordings/" + uuid.NewString() + "/download-url", ``, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestHandler_NonUUIDShiftIsUnknownShift(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f, f.employee)

	w := do(r, http.MethodPost, "/recordings/start", `{"shift_id":"shift-42"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"no active shift found"}`, w.Body.String())
	assert.Empty(t, f.provider.starts)
}

func TestHandler_StartProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.startErr = errors.New("503")
	r := newTestRouter(f, f.employee)

	w := do(r, http.MethodPost, "/recordings/start", `{"shift_id":"`+f.shift.String()+`"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"capture start failed"}`, w.Body.String())
	assert.Zero(t, f.store.count())
}

func TestHandler_RegistrationFailure(t *testing.T) {
	f := newFixture(t)
	f.store.failCreate = true
	r := newTestRouter(f, f.employee)

	w := do(r, http.MethodPost, "/recordings/start", `{"shift_id":"`+f.shift.String()+`"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"recording registration failed"}`, w.Body.String())
}

func TestHandler_ListAndDownload(t *testing.T) {
	f := newFixture(t)
	res := f.start(t)
	require.NoError(t, f.svc.Reconcile(context.Background(), endedEvent(res.JobID, lkproto.EgressStatus_EGRESS_COMPLETE, "", "")))
	f.svc.SetPresigner(fakePresigner{})
	r := newTestRouter(f, f.manager)

	w := do(r, http.MethodGet, "/shifts/"+f.shift.String()+"/recordings", ``)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []models.Recording `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, res.JobID, list.Data[0].JobID)
	assert.Equal(t, f.playlistURL(), list.Data[0].StorageLocation)

	w = do(r, http.MethodGet, "/recordings/"+res.RecordingID.String()+"/download-url", ``)
	require.Equal(t, http.StatusOK, w.Code)
	var dl struct {
		Data struct {
			URL       string `json:"url"`
			ExpiresIn int    `json:"expires_in"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dl))
	assert.Contains(t, dl.Data.URL, "playlist.m3u8")
	assert.Equal(t, 900, dl.Data.ExpiresIn)
}
