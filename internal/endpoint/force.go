package endpoint

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
	api "github.com/selfmon/selfmon/lib-selfmon"
)

type forceCheckResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Result  *api.CheckResult `json:"result,omitempty"`
}

// ForceCheckEndpoint is the http.HandlerFunc for POST /api/force-check.
//
// The check keeps running even if the client goes away.
func ForceCheckEndpoint(m Monitor, runner Runner, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithoutCancel(r.Context())

		var result api.CheckResult
		task := func(ctx context.Context) (err error) {
			result, err = m.ForceCheck(ctx)
			return err
		}

		var err error
		if runner != nil {
			err = runner.OnDemand(ctx, task)
		} else {
			err = task(ctx)
		}

		if err != nil {
			logger.Error().Err(err).Msg("force check failed")

			resp := forceCheckResponse{Success: false, Message: err.Error()}
			if result.Timestamp != 0 {
				resp.Result = &result
			}
			handleError(logger, "force-check", writeJSON(w, http.StatusInternalServerError, resp))
			return
		}

		logger.Info().Str("status", result.Status.String()).Msg("force check performed")

		handleError(logger, "force-check", writeJSON(w, http.StatusOK, forceCheckResponse{
			Success: true,
			Message: "Check performed successfully",
			Result:  &result,
		}))
	}
}

// ForceCheckDisabledEndpoint is the http.HandlerFunc for POST /api/force-check when no credentials are configured.
func ForceCheckDisabledEndpoint(logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handleError(logger, "force-check", writeJSON(w, http.StatusForbidden, forceCheckResponse{
			Success: false,
			Message: "force check is disabled: set user and password to enable it",
		}))
	}
}
