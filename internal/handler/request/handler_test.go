package request

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodlink/bloodlink-api/internal/middleware"
	"github.com/bloodlink/bloodlink-api/internal/model"
	"github.com/bloodlink/bloodlink-api/internal/notification"
	"github.com/bloodlink/bloodlink-api/internal/repository/repotest"
	donorService "github.com/bloodlink/bloodlink-api/internal/service/donor"
	"github.com/bloodlink/bloodlink-api/internal/service/event"
	matchingService "github.com/bloodlink/bloodlink-api/internal/service/matching"
	requestService "github.com/bloodlink/bloodlink-api/internal/service/request"
	userService "github.com/bloodlink/bloodlink-api/internal/service/user"
	"github.com/bloodlink/bloodlink-api/pkg/auth"
	"github.com/bloodlink/bloodlink-api/pkg/metrics"
	"github.com/bloodlink/bloodlink-api/pkg/security"
)

var testMetrics = metrics.NewMetrics("request_handler_test")

type testServer struct {
	engine   *gin.Engine
	tokens   auth.JWTService
	users    *repotest.UserRepo
	requests *repotest.RequestRepo
	donorSvc *donorService.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := repotest.NewUserRepo()
	requests := repotest.NewRequestRepo()
	outbox := repotest.NewOutboxRepo()
	events := event.NewService(outbox)

	tokens := auth.NewJWTService(auth.Config{
		Secret:        "test-secret",
		RefreshSecret: "test-refresh",
		ExpiryHours:   1,
	})

	requestSvc := requestService.NewService(requests, users, events)
	matchingSvc := matchingService.NewService(requests, users, events, testMetrics, 0)
	userSvc := userService.NewService(users, security.NewBcryptHasher(4), tokens)
	donorSvc := donorService.NewService(users, requests)

	h := NewHandler(requestSvc, matchingSvc, userSvc, donorSvc, notification.NoopService{})

	engine := gin.New()
	api := engine.Group("/api/v1")
	h.RegisterRoutes(api, middleware.NewAuthMiddleware(tokens))

	return &testServer{engine: engine, tokens: tokens, users: users, requests: requests, donorSvc: donorSvc}
}

func (s *testServer) seedUser(t *testing.T, role string, group model.BloodType) (*model.User, string) {
	t.Helper()
	lat, lng := 40.7128, -74.0060
	u := &model.User{
		Email:        uuid.NewString() + "@example.com",
		Name:         "Test User",
		Role:         role,
		BloodGroup:   group,
		Availability: role == model.UserRoleDonor,
		Latitude:     &lat,
		Longitude:    &lng,
	}
	require.NoError(t, s.users.Create(context.Background(), u))
	token, err := s.tokens.GenerateAccessToken(u)
	require.NoError(t, err)
	return u, token
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func createBody() map[string]interface{} {
	return map[string]interface{}{
		"blood_group":      "A+",
		"units_needed":     2,
		"urgency":          "critical",
		"hospital_name":    "City General",
		"hospital_address": "1 Main St",
		"latitude":         40.7128,
		"longitude":        -74.0060,
	}
}

func TestCreateRequestRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/api/v1/requests", "", createBody())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateRequestRequiresRequesterRole(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, model.UserRoleDonor, model.BloodTypeONeg)

	w := s.do(http.MethodPost, "/api/v1/requests", token, createBody())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateRequest(t *testing.T) {
	s := newTestServer(t)
	requester, token := s.seedUser(t, model.UserRoleRequester, model.BloodTypeAPos)

	w := s.do(http.MethodPost, "/api/v1/requests", token, createBody())
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Status string             `json:"status"`
		Data   model.BloodRequest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, model.RequestStatusPending, resp.Data.Status)
	assert.Equal(t, model.UrgencyCritical, resp.Data.Urgency)
	assert.Equal(t, requester.ID, *resp.Data.RequesterID)
}

func TestCreateRequestRejectsBadBody(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, model.UserRoleRequester, model.BloodTypeAPos)

	body := createBody()
	body["blood_group"] = "Z+"
	w := s.do(http.MethodPost, "/api/v1/requests", token, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRequestNotFound(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, model.UserRoleRequester, model.BloodTypeAPos)

	w := s.do(http.MethodGet, "/api/v1/requests/"+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAcceptRequestFlow(t *testing.T) {
	s := newTestServer(t)
	requester, requesterToken := s.seedUser(t, model.UserRoleRequester, model.BloodTypeAPos)
	_, donorToken := s.seedUser(t, model.UserRoleDonor, model.BloodTypeONeg)
	_, rivalToken := s.seedUser(t, model.UserRoleDonor, model.BloodTypeOPos)

	w := s.do(http.MethodPost, "/api/v1/requests", requesterToken, createBody())
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data model.BloodRequest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	path := "/api/v1/requests/" + created.Data.ID.String() + "/accept"

	// Requesters cannot accept.
	w = s.do(http.MethodPost, path, requesterToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The first donor wins the claim and gets the contact bundle.
	w = s.do(http.MethodPost, path, donorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var accepted struct {
		Data struct {
			Request model.BloodRequest  `json:"request"`
			Contact model.ContactBundle `json:"contact"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	assert.Equal(t, model.RequestStatusAccepted, accepted.Data.Request.Status)
	assert.Equal(t, "City General", accepted.Data.Contact.HospitalName)
	assert.Equal(t, requester.Name, accepted.Data.Contact.RequesterName)

	// The second donor is told the request is gone.
	w = s.do(http.MethodPost, path, rivalToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAcceptIncompatibleDonor(t *testing.T) {
	s := newTestServer(t)
	_, requesterToken := s.seedUser(t, model.UserRoleRequester, model.BloodTypeAPos)
	// AB+ donors can only serve AB+ recipients; the request wants A+.
	_, donorToken := s.seedUser(t, model.UserRoleDonor, model.BloodTypeABPos)

	w := s.do(http.MethodPost, "/api/v1/requests", requesterToken, createBody())
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data model.BloodRequest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = s.do(http.MethodPost, "/api/v1/requests/"+created.Data.ID.String()+"/accept", donorToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCompleteLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	_, requesterToken := s.seedUser(t, model.UserRoleRequester, model.BloodTypeAPos)
	donor, donorToken := s.seedUser(t, model.UserRoleDonor, model.BloodTypeONeg)

	w := s.do(http.MethodPost, "/api/v1/requests", requesterToken, createBody())
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data model.BloodRequest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	base := "/api/v1/requests/" + created.Data.ID.String()

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/accept", donorToken, nil).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/on-the-way", donorToken, nil).Code)

	// Warm the stats cache so completion must invalidate it.
	stats, err := s.donorSvc.GetStats(context.Background(), donor.ID)
	require.NoError(t, err)
	require.Zero(t, stats.TotalDonations)

	w = s.do(http.MethodPost, base+"/complete", requesterToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var completed struct {
		Data model.BloodRequest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &completed))
	assert.Equal(t, model.RequestStatusCompleted, completed.Data.Status)
	assert.NotNil(t, completed.Data.CompletedAt)

	// Completion credited the donor.
	credited, err := s.users.Get(context.Background(), donor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, credited.TotalDonations)

	// And dropped the cached stats, so the new count is visible at once.
	stats, err = s.donorSvc.GetStats(context.Background(), donor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDonations)

	// Terminal states reject further transitions.
	w = s.do(http.MethodPost, base+"/cancel", requesterToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestWithdrawOverHTTP(t *testing.T) {
	s := newTestServer(t)
	_, requesterToken := s.seedUser(t, model.UserRoleRequester, model.BloodTypeAPos)

	w := s.do(http.MethodPost, "/api/v1/requests", requesterToken, createBody())
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data model.BloodRequest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	path := "/api/v1/requests/" + created.Data.ID.String()

	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, path, requesterToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, requesterToken, nil).Code)
}
