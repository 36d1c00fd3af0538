package echoapi

import (
	"net/http"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eduassist/core"
	"github.com/trezcool/eduassist/core/progress"
)

type progressApi struct {
	svc        *progress.Service
	conf       *core.Config
	validate   *validator.Validate
	translator ut.Translator
}

func registerProgressAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *progress.Service,
	conf *core.Config,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := progressApi{
		svc:        svc,
		conf:       conf,
		validate:   validate,
		translator: translator,
	}

	pg := g.Group("/progress", jwt)
	pg.GET("", api.retrieve)
	pg.POST("/quiz", api.completeQuiz)
	pg.GET("/activity", api.recentActivity)
	pg.POST("/xp", api.awardXP, staffMiddleware())
	pg.POST("/badges", api.unlockBadge, staffMiddleware())

	g.GET("/leaderboard", api.leaderboard, jwt)
}

// Handlers

func (api *progressApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	p, err := api.svc.Get(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *progressApi) completeQuiz(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data progress.QuizResult
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuizResult")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	p, err := api.svc.CompleteQuiz(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "completing quiz")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *progressApi) recentActivity(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	feed, err := api.svc.RecentActivity(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting recent activity")
	}
	if feed == nil {
		feed = []progress.Activity{}
	}
	return ctx.JSON(http.StatusOK, feed)
}

func (api *progressApi) awardXP(ctx echo.Context) error {
	var data AwardXPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AwardXPRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	p, err := api.svc.AwardXP(ctx.Request().Context(), data.UserID, data.Amount)
	if err != nil {
		return errors.Wrap(err, "awarding XP")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *progressApi) unlockBadge(ctx echo.Context) error {
	var data UnlockBadgeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UnlockBadgeRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	p, err := api.svc.UnlockBadge(ctx.Request().Context(), data.UserID, data.Code)
	if err != nil {
		return errors.Wrap(err, "unlocking badge")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *progressApi) leaderboard(ctx echo.Context) error {
	limit := api.conf.LeaderboardLimit
	if raw := ctx.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < limit {
			limit = n
		}
	}

	board, err := api.svc.Leaderboard(ctx.Request().Context(), limit)
	if err != nil {
		return errors.Wrap(err, "getting leaderboard")
	}
	if board == nil {
		board = []progress.LeaderboardEntry{}
	}
	return ctx.JSON(http.StatusOK, board)
}

type (
	AwardXPRequest struct {
		UserID string `json:"user_id" validate:"required"`
		Amount int    `json:"amount" validate:"required,gt=0"`
	}

	UnlockBadgeRequest struct {
		UserID string `json:"user_id" validate:"required"`
		Code   string `json:"code" validate:"required,oneof=first_quiz perfect_score streak_7 streak_30"`
	}
)
