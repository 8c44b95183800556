package matchmaker

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ChessArena/internal/seek"
	"ChessArena/internal/session"
	"ChessArena/internal/social"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSeekAPI 捕获 handler 组装出来的求战者
type fakeSeekAPI struct {
	err    error
	seeker *seek.Seeker
	key    seek.PoolKey
	target string
}

func (a *fakeSeekAPI) CreateSeek(ctx context.Context, userID, connID string, skr *seek.Seeker, key seek.PoolKey) error {
	a.seeker, a.key = skr, key
	return a.err
}

func (a *fakeSeekAPI) MatchWithOpenSeek(ctx context.Context, userID, connID string, skr *seek.Seeker, targetUserID string, key seek.PoolKey) error {
	a.seeker, a.key, a.target = skr, key, targetUserID
	return a.err
}

func (a *fakeSeekAPI) CancelSeek(ctx context.Context, userID string, key seek.PoolKey) error {
	a.key = key
	return a.err
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", "u1")
		c.Set("userName", "Alice")
	})
	r.POST("/seek/create", h.Create)
	r.POST("/seek/cancel", h.Cancel)
	r.POST("/seek/direct", h.DirectMatch)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func Test_CreateSeekBuildsExcludes(t *testing.T) {
	api := &fakeSeekAPI{}
	blocks := social.NewMemoryBlockList()
	blocks.Block("u1", "enemy")
	r := newTestRouter(NewHandler(api, blocks, 300))

	w := postJSON(t, r, "/seek/create", SeekRequest{
		ConnectionID:    "conn-a",
		PoolType:        "casual",
		InitialSec:      300,
		RematchOpponent: "lastOpponent",
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, api.seeker)
	assert.True(t, api.seeker.Excludes("enemy"))
	assert.True(t, api.seeker.Excludes("lastOpponent"))
	assert.Nil(t, api.seeker.Rating)
	assert.Equal(t, "casual:300+0", api.key.String())
}

func Test_CreateSeekDefaultRatingRange(t *testing.T) {
	api := &fakeSeekAPI{}
	r := newTestRouter(NewHandler(api, nil, 300))

	w := postJSON(t, r, "/seek/create", SeekRequest{
		ConnectionID: "conn-a",
		PoolType:     "rated",
		InitialSec:   300,
		Rating:       1500,
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, api.seeker.Rating)
	require.NotNil(t, api.seeker.Rating.AllowedRange)
	assert.Equal(t, 300, *api.seeker.Rating.AllowedRange)
}

func Test_CreateSeekExplicitRangeWins(t *testing.T) {
	api := &fakeSeekAPI{}
	r := newTestRouter(NewHandler(api, nil, 300))

	narrow := 50
	w := postJSON(t, r, "/seek/create", SeekRequest{
		ConnectionID:       "conn-a",
		PoolType:           "rated",
		InitialSec:         300,
		Rating:             1500,
		AllowedRatingRange: &narrow,
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50, *api.seeker.Rating.AllowedRange)
}

func Test_CreateSeekInvalidPoolType(t *testing.T) {
	api := &fakeSeekAPI{}
	r := newTestRouter(NewHandler(api, nil, 300))

	w := postJSON(t, r, "/seek/create", SeekRequest{
		ConnectionID: "conn-a",
		PoolType:     "blitzmania",
		InitialSec:   300,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func Test_DomainErrorsMapToConflict(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want string
	}{
		{session.ErrTooManyGames, "tooManyGames"},
		{session.ErrConnectionInGame, "connectionInGame"},
		{session.ErrOpenSeekGone, "openSeekGone"},
	} {
		api := &fakeSeekAPI{err: tc.err}
		r := newTestRouter(NewHandler(api, nil, 300))

		w := postJSON(t, r, "/seek/create", SeekRequest{
			ConnectionID: "conn-a",
			PoolType:     "casual",
			InitialSec:   300,
		})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), tc.want)
	}
}

func Test_DirectMatchPassesTarget(t *testing.T) {
	api := &fakeSeekAPI{}
	r := newTestRouter(NewHandler(api, nil, 300))

	w := postJSON(t, r, "/seek/direct", DirectMatchRequest{
		SeekRequest: SeekRequest{
			ConnectionID: "conn-a",
			PoolType:     "casual",
			InitialSec:   180,
		},
		TargetUserID: "u2",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u2", api.target)
}

func Test_CancelSeek(t *testing.T) {
	api := &fakeSeekAPI{}
	r := newTestRouter(NewHandler(api, nil, 300))

	w := postJSON(t, r, "/seek/cancel", CancelRequest{
		PoolType:   "casual",
		InitialSec: 300,
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "casual:300+0", api.key.String())
}
