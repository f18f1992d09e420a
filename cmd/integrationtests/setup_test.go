package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/internal/server"
	"auction-engine/internal/views"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("integration-secret")

// TestEnv is a router over a real in-memory stack
type TestEnv struct {
	Router *gin.Engine
	Repo   *repository.MemoryRepo
}

// SetupTestEnv seeds a seller, three bidders and the given auctions. Zero
// CurrentPrice, Status and EndTime are filled with sensible defaults.
func SetupTestEnv(t *testing.T, auctions ...models.Auction) *TestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryRepo()
	repo.AddUser(models.User{UserID: "seller", Reputation: models.Reputation{TotalRatings: 50, PositiveRatings: 49}})
	repo.AddUser(models.User{UserID: "alice", Reputation: models.Reputation{TotalRatings: 10, PositiveRatings: 9}})
	repo.AddUser(models.User{UserID: "bob", Reputation: models.Reputation{TotalRatings: 4, PositiveRatings: 4}})
	repo.AddUser(models.User{UserID: "carol"})

	now := time.Now().UTC()
	for i, a := range auctions {
		if a.CurrentPrice == 0 {
			a.CurrentPrice = a.StartingPrice
		}
		if a.Status == "" {
			a.Status = models.StatusActive
		}
		if a.EndTime.IsZero() {
			a.EndTime = now.Add(time.Hour)
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now.Add(time.Duration(i) * time.Second)
		}
		repo.AddAuction(a)
	}

	service := bidding.NewBiddingService(repo)
	viewSvc := views.NewService(repo, nil)
	return &TestEnv{Router: server.SetupRouter(service, viewSvc, testSecret), Repo: repo}
}

// Token issues a bearer token for userID
func Token(t *testing.T, userID string) string {
	t.Helper()
	token, err := utils.GenerateToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return token
}

// ExecuteRequestAndParse executes an HTTP request as userID ("" for anonymous)
// and returns the decoded envelope
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url, userID string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+Token(t, userID))
	}
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return resp, w
}

// Data returns the object payload of a successful envelope
func Data(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "response has no object payload: %v", resp)
	return data
}

// List returns the array payload of a successful envelope
func List(t *testing.T, resp map[string]any) []map[string]any {
	t.Helper()
	raw, ok := resp["data"].([]any)
	require.True(t, ok, "response has no array payload: %v", resp)
	out := make([]map[string]any, len(raw))
	for i, v := range raw {
		out[i] = v.(map[string]any)
	}
	return out
}
