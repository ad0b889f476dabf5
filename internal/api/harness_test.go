package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"frontline/coaching-app/internal/domain"
	"frontline/coaching-app/internal/metrics"
	"frontline/coaching-app/internal/repository/memory"
	"frontline/coaching-app/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

type testServer struct {
	router  *gin.Engine
	store   *memory.Store
	metrics *metrics.Manager
}

// newTestServer wires the full route table over the in-memory store. Report
// export is left disabled.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	m := metrics.NewTestManager()

	rotation := service.NewRotationService(store.Clients(), store.Users(), store.Assignments(), store.WeekPeriods(), store.DailyEntries(), m)
	attendance := service.NewAttendanceService(store.Clients(), store.Users(), store.Assignments(), store.Attendance(), nil, service.AttendanceOptions{}, m)
	consultations := service.NewConsultationService(store.Clients(), store.Users(), store.Consultations(), rotation)
	assignments := service.NewAssignmentService(store.Clients(), store.Users(), store.Assignments())

	router := gin.New()
	router.Use(RequestLogger(), RequestMetrics(m))
	SetupRoutes(router, testSecret, time.UTC, rotation, attendance, consultations, assignments)

	return &testServer{router: router, store: store, metrics: m}
}

func (s *testServer) newUser(t *testing.T, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{Name: gofakeit.Name(), Email: gofakeit.Email(), Role: role}
	_, err := s.store.Users().Create(context.Background(), u)
	require.NoError(t, err)
	return u
}

func (s *testServer) newClient(t *testing.T) *domain.Client {
	t.Helper()
	c := &domain.Client{Name: gofakeit.Name(), Email: gofakeit.Email(), Phone: gofakeit.Phone(), NewClient: true}
	_, err := s.store.Clients().Create(context.Background(), c)
	require.NoError(t, err)
	return c
}

// assign gives the client an active program with the trainer, through the
// assignment endpoint.
func (s *testServer) assign(t *testing.T, clientID primitive.ObjectID, trainer *domain.User, days ...string) {
	t.Helper()
	manager := s.newUser(t, domain.RoleManager)
	w := s.do(t, http.MethodPost, "/api/v1/clients/"+clientID.Hex()+"/assignment", token(t, manager), gin.H{
		"programId":   primitive.NewObjectID().Hex(),
		"trainerId":   trainer.ID.Hex(),
		"workoutDays": days,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// newRequest builds a request with a raw Authorization header.
func newRequest(method, path, authorization string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req
}

func serve(s *testServer, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, u *domain.User) string {
	t.Helper()
	return signToken(t, u.ID.Hex(), u.Role, testSecret, time.Now().Add(time.Hour))
}

func signToken(t *testing.T, uid string, role domain.Role, secret string, expires time.Time) string {
	t.Helper()
	claims := jwtClaims{
		UserID: uid,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
