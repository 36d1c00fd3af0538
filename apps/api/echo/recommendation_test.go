package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eduassist/core/progress"
	"github.com/trezcool/eduassist/core/recommendation"
	"github.com/trezcool/eduassist/core/user"
)

func createRecommendation(t *testing.T, app *testApp, nr recommendation.NewRecommendation) recommendation.Recommendation {
	t.Helper()
	rec, err := app.recSvc.Create(context.Background(), nr)
	if err != nil {
		t.Fatalf("createRecommendation() failed: %v", err)
	}
	return rec
}

func completeQuiz(t *testing.T, app *testApp, userID, subjectID string, score float64) {
	t.Helper()
	_, err := app.progressSvc.CompleteQuiz(
		context.Background(),
		userID,
		progress.QuizResult{QuizID: "q-" + subjectID, SubjectID: subjectID, Score: score},
	)
	if err != nil {
		t.Fatalf("completeQuiz() failed: %v", err)
	}
}

func Test_recommendationApi_create(t *testing.T) {
	app := newTestApp(t)

	teacher := createUser(t, app.usrRepo, "Teacher", "teacher1", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := createUser(t, app.usrRepo, "Hero", "herohero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	body := marchallObj(t, recommendation.NewRecommendation{
		UserID:     student.ID,
		Type:       "practice",
		Title:      "Fractions drill",
		Reason:     "Struggling with fractions lately",
		Priority:   60,
		Confidence: 0.8,
		SubjectID:  "math",
		Difficulty: recommendation.DifficultyEasy,
	})

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/recommendations", body)
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, errMissingTokenResp)}, rec)
	})

	t.Run("staff required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/recommendations", getToken(t, student), body)
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("invalid payload", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/recommendations", getToken(t, teacher), marchallObj(t, recommendation.NewRecommendation{Type: "practice"}))
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("created", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/recommendations", getToken(t, teacher), body)
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got recommendation.Recommendation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, student.ID, got.UserID)
		assert.Equal(t, recommendation.StatusPending, got.Status)
		assert.Equal(t, 15, got.EstimatedTime)
	})
}

func Test_recommendationApi_query(t *testing.T) {
	app := newTestApp(t)

	student := createUser(t, app.usrRepo, "Hero", "herohero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	other := createUser(t, app.usrRepo, "Other", "otherkid", "other@test.cd", "", []string{user.RoleStudent}, true)
	token := getToken(t, student)

	// math is weak, physics is not
	completeQuiz(t, app, student.ID, "math", 40)
	completeQuiz(t, app, student.ID, "physics", 90)

	mathRec := createRecommendation(t, app, recommendation.NewRecommendation{
		UserID: student.ID, Type: "practice", Title: "Fractions drill",
		Priority: 50, Confidence: 0.8, SubjectID: "math", Difficulty: recommendation.DifficultyEasy,
	})
	physRec := createRecommendation(t, app, recommendation.NewRecommendation{
		UserID: student.ID, Type: "review", Title: "Kinematics recap",
		Priority: 40, Confidence: 0.8, SubjectID: "physics", Difficulty: recommendation.DifficultyHard,
	})
	createRecommendation(t, app, recommendation.NewRecommendation{
		UserID: other.ID, Type: "practice", Title: "Not yours",
		Priority: 99, Confidence: 0.8, SubjectID: "math",
	})

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/recommendations")
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, errMissingTokenResp)}, rec)
	})

	t.Run("prioritized view", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/recommendations", token)
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got []recommendation.Recommendation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
		// fresh recs: urgency 10 adds 2; Easy +30, Hard +10
		assert.Equal(t, mathRec.ID, got[0].ID)
		assert.Equal(t, 82.0, got[0].Priority)
		assert.Equal(t, physRec.ID, got[1].ID)
		assert.Equal(t, 52.0, got[1].Priority)
	})

	t.Run("weak-areas view", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/recommendations?view=weak-areas", token)
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got []recommendation.Recommendation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		// only the weak-subject item survives; the physics one scores
		// below the high-priority floor
		require.Len(t, got, 1)
		assert.Equal(t, mathRec.ID, got[0].ID)
	})
}

func Test_recommendationApi_updateStatus(t *testing.T) {
	app := newTestApp(t)

	student := createUser(t, app.usrRepo, "Hero", "herohero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	other := createUser(t, app.usrRepo, "Other", "otherkid", "other@test.cd", "", []string{user.RoleStudent}, true)
	admin := createUser(t, app.usrRepo, "Admin", "theadmin", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	rec1 := createRecommendation(t, app, recommendation.NewRecommendation{
		UserID: student.ID, Type: "practice", Title: "Fractions drill", Confidence: 0.5,
	})

	statusBody := func(status recommendation.Status, reason string) []byte {
		return marchallObj(t, StatusUpdateRequest{Status: status, Reason: reason})
	}

	t.Run("only the owner or an admin may act", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, "/v1/recommendations/"+rec1.ID+"/status", getToken(t, other), statusBody(recommendation.StatusAccepted, ""))
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("unknown recommendation", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, "/v1/recommendations/nope/status", getToken(t, student), statusBody(recommendation.StatusAccepted, ""))
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}, rec)
	})

	t.Run("invalid status", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, "/v1/recommendations/"+rec1.ID+"/status", getToken(t, student), statusBody("archived", ""))
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("owner accepts", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, "/v1/recommendations/"+rec1.ID+"/status", getToken(t, student), statusBody(recommendation.StatusAccepted, "will do"))
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got recommendation.Recommendation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, recommendation.StatusAccepted, got.Status)
		assert.Equal(t, "will do", got.Reason)
	})

	t.Run("invalid transition", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, "/v1/recommendations/"+rec1.ID+"/status", getToken(t, student), statusBody(recommendation.StatusPending, ""))
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("admin completes on behalf of the owner", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, "/v1/recommendations/"+rec1.ID+"/status", getToken(t, admin), statusBody(recommendation.StatusCompleted, ""))
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got recommendation.Recommendation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, recommendation.StatusCompleted, got.Status)
	})
}

func Test_recommendationApi_analytics(t *testing.T) {
	app := newTestApp(t)

	student := createUser(t, app.usrRepo, "Hero", "herohero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	completeQuiz(t, app, student.ID, "math", 40)
	completeQuiz(t, app, student.ID, "math", 100)

	rec1 := createRecommendation(t, app, recommendation.NewRecommendation{
		UserID: student.ID, Type: "practice", Title: "Fractions drill", Confidence: 0.5,
	})
	_, err := app.recSvc.UpdateStatus(context.Background(), rec1.ID, recommendation.StatusDismissed, "not now")
	require.NoError(t, err)
	createRecommendation(t, app, recommendation.NewRecommendation{
		UserID: student.ID, Type: "review", Title: "Decimals recap", Confidence: 0.5,
	})

	req, rec := newAuthRequest(http.MethodGet, "/v1/recommendations/analytics", getToken(t, student))
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got AnalyticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Summary.Total)
	assert.Equal(t, 1, got.Summary.ByStatus[recommendation.StatusDismissed])
	assert.Equal(t, 1, got.Summary.ByType["practice"])
	// scores 40 and 100: variance 900, average 70
	assert.True(t, got.Variance.HasVariance)
	assert.Equal(t, 70.0, got.Variance.Average)
}

func Test_recommendationApi_performance(t *testing.T) {
	app := newTestApp(t)

	student := createUser(t, app.usrRepo, "Hero", "herohero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	completeQuiz(t, app, student.ID, "math", 60)
	completeQuiz(t, app, student.ID, "math", 70)
	completeQuiz(t, app, student.ID, "math", 85)

	req, rec := newAuthRequest(http.MethodGet, "/v1/performance", getToken(t, student))
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got []recommendation.PerformanceSignal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "math", got[0].SubjectID)
	assert.Equal(t, []float64{60, 70, 85}, got[0].RecentScores)
	assert.Equal(t, recommendation.TrajectoryImproving, got[0].Trend)
}
