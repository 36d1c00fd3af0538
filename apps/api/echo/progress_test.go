package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eduassist/core/progress"
	"github.com/trezcool/eduassist/core/user"
)

func Test_progressApi_retrieve(t *testing.T) {
	app := newTestApp(t)

	student := createUser(t, app.usrRepo, "Hero", "herohero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/progress")
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, errMissingTokenResp)}, rec)
	})

	t.Run("fresh user starts at level 1", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/progress", getToken(t, student))
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got progress.Progress
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, student.ID, got.UserID)
		assert.Equal(t, 1, got.Level)
		assert.Zero(t, got.XP)
		assert.Zero(t, got.Streak)
	})
}

func Test_progressApi_completeQuiz(t *testing.T) {
	app := newTestApp(t)

	student := createUser(t, app.usrRepo, "Hero", "herohero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	token := getToken(t, student)

	t.Run("invalid payload", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/progress/quiz", token, marchallObj(t, progress.QuizResult{Score: 80}))
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("out-of-range score", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/progress/quiz", token, marchallObj(t, progress.QuizResult{QuizID: "q1", SubjectID: "math", Score: 180}))
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("first quiz awards XP and a badge", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/progress/quiz", token, marchallObj(t, progress.QuizResult{QuizID: "q1", SubjectID: "math", Score: 80, Rating: 4}))
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got progress.Progress
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, 90, got.XP) // 50 base + 80/2
		assert.Equal(t, 1, got.QuizCount)
		assert.Equal(t, 1, got.Streak)
		assert.True(t, got.HasBadge(progress.BadgeFirstQuiz))
	})

	t.Run("perfect score badge", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/progress/quiz", token, marchallObj(t, progress.QuizResult{QuizID: "q2", SubjectID: "math", Score: 100}))
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got progress.Progress
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, 190, got.XP)
		assert.True(t, got.HasBadge(progress.BadgePerfectScore))
	})
}

func Test_progressApi_recentActivity(t *testing.T) {
	app := newTestApp(t)

	student := createUser(t, app.usrRepo, "Hero", "herohero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	token := getToken(t, student)

	t.Run("empty feed", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/progress/activity", token)
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte("[]")}, rec)
	})

	t.Run("quiz shows up in the feed", func(t *testing.T) {
		completeQuiz(t, app, student.ID, "math", 80)

		req, rec := newAuthRequest(http.MethodGet, "/v1/progress/activity", token)
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got []progress.Activity
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "quiz_completed", got[0].Type)
		assert.Equal(t, 90, got[0].XP)
	})
}

func Test_progressApi_awardXP(t *testing.T) {
	app := newTestApp(t)

	teacher := createUser(t, app.usrRepo, "Teacher", "teacher1", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := createUser(t, app.usrRepo, "Hero", "herohero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	body := marchallObj(t, AwardXPRequest{UserID: student.ID, Amount: 510})

	t.Run("staff required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/progress/xp", getToken(t, student), body)
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("invalid amount", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/progress/xp", getToken(t, teacher), marchallObj(t, AwardXPRequest{UserID: student.ID, Amount: -5}))
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("awarded", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/progress/xp", getToken(t, teacher), body)
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got progress.Progress
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, 510, got.XP)
		assert.Equal(t, 2, got.Level)
	})
}

func Test_progressApi_unlockBadge(t *testing.T) {
	app := newTestApp(t)

	teacher := createUser(t, app.usrRepo, "Teacher", "teacher1", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := createUser(t, app.usrRepo, "Hero", "herohero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	t.Run("staff required", func(t *testing.T) {
		body := marchallObj(t, UnlockBadgeRequest{UserID: student.ID, Code: progress.BadgeStreak7})
		req, rec := newAuthRequest(http.MethodPost, "/v1/progress/badges", getToken(t, student), body)
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("unknown badge code", func(t *testing.T) {
		body := marchallObj(t, UnlockBadgeRequest{UserID: student.ID, Code: "golden_unicorn"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/progress/badges", getToken(t, teacher), body)
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unlocked", func(t *testing.T) {
		body := marchallObj(t, UnlockBadgeRequest{UserID: student.ID, Code: progress.BadgeStreak7})
		req, rec := newAuthRequest(http.MethodPost, "/v1/progress/badges", getToken(t, teacher), body)
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got progress.Progress
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.True(t, got.HasBadge(progress.BadgeStreak7))
	})
}

func Test_progressApi_leaderboard(t *testing.T) {
	app := newTestApp(t)

	usr1 := createUser(t, app.usrRepo, "Hero", "herohero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	usr2 := createUser(t, app.usrRepo, "Champ", "thechamp", "champ@test.cd", "", []string{user.RoleStudent}, true)
	token := getToken(t, usr1)

	completeQuiz(t, app, usr1.ID, "math", 80)  // 90 XP
	completeQuiz(t, app, usr2.ID, "math", 100) // 100 XP

	t.Run("ranked by XP", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/leaderboard", token)
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got []progress.LeaderboardEntry
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, usr2.ID, got[0].UserID)
		assert.Equal(t, 100, got[0].XP)
		assert.Equal(t, "thechamp", got[0].Username)
		assert.Equal(t, 90, got[1].XP)
	})

	t.Run("limit applies", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/leaderboard?limit=1", token)
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got []progress.LeaderboardEntry
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, usr2.ID, got[0].UserID)
	})
}
