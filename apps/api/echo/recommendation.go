package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eduassist/core/recommendation"
)

const weakAreasView = "weak-areas"

type recommendationApi struct {
	svc        *recommendation.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerRecommendationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *recommendation.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := recommendationApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	rg := g.Group("/recommendations", jwt)
	rg.POST("", api.create, staffMiddleware())
	rg.GET("", api.query)
	rg.GET("/analytics", api.analytics)
	rg.PATCH("/:id/status", api.updateStatus)

	g.GET("/performance", api.performance, jwt)
}

// Handlers

func (api *recommendationApi) create(ctx echo.Context) error {
	var data recommendation.NewRecommendation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecommendation")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	rec, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating recommendation")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

// query returns the caller's open recommendations, prioritized. With
// ?view=weak-areas the list narrows to weak subjects instead.
func (api *recommendationApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var recs []recommendation.Recommendation
	if ctx.QueryParam("view") == weakAreasView {
		recs, err = api.svc.WeakAreaViewForUser(ctx.Request().Context(), claims.Subject)
	} else {
		recs, err = api.svc.PrioritizedForUser(ctx.Request().Context(), claims.Subject)
	}
	if err != nil {
		return errors.Wrap(err, "querying recommendations")
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *recommendationApi) analytics(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	summary, variance, err := api.svc.Analytics(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "computing analytics")
	}
	return ctx.JSON(http.StatusOK, AnalyticsResponse{Summary: summary, Variance: variance})
}

func (api *recommendationApi) updateStatus(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data StatusUpdateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusUpdateRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	rec, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == recommendation.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting recommendation")
	}
	// users may only act on their own recommendations
	if rec.UserID != claims.Subject && !claims.IsAdmin {
		return errHttpForbidden
	}

	rec, err = api.svc.UpdateStatus(ctx.Request().Context(), rec.ID, data.Status, data.Reason)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

// performance returns the caller's per-subject performance signals.
func (api *recommendationApi) performance(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	signals, err := api.svc.Signals(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "fetching performance signals")
	}
	return ctx.JSON(http.StatusOK, signals)
}

type (
	StatusUpdateRequest struct {
		Status recommendation.Status `json:"status" validate:"required,oneof=pending accepted dismissed completed"`
		Reason string                `json:"reason"`
	}

	AnalyticsResponse struct {
		Summary  recommendation.Summary        `json:"summary"`
		Variance recommendation.VarianceReport `json:"variance"`
	}
)
