package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/angelmondragon/archivemint-backend/api/responses"
	"github.com/angelmondragon/archivemint-backend/api/validators"
	"github.com/angelmondragon/archivemint-backend/internal/balance"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
)

const avgMintsPerDayParam = "avgMintsPerDay"

type balanceReporter interface {
	Status(ctx context.Context, avgMintsPerDay float64) balance.Snapshot
	MonitorAndAlert(ctx context.Context, avgMintsPerDay float64) balance.Snapshot
}

// PlatformStatus reports the platform wallet's health. GET returns the full status
// document; HEAD returns only the X-Status, X-Mints-Remaining and X-Days-Remaining headers.
func PlatformStatus(monitor balanceReporter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		avg, err := validators.ParseQueryFloat(r, avgMintsPerDayParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap := monitor.Status(r.Context(), avg)
		writeStatusHeaders(w, snap)
		if r.Method == http.MethodHead {
			w.WriteHeader(httpStatusFor(snap.Status))
			return
		}
		responses.WriteDocument(w, httpStatusFor(snap.Status), snap)
	}
}

// PlatformMonitor is the scheduler entry point: it reads the status and alerts operators
// when the wallet needs a refill. MonitorSecret guards the route.
func PlatformMonitor(monitor balanceReporter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		avg, err := validators.ParseQueryFloat(r, avgMintsPerDayParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap := monitor.MonitorAndAlert(r.Context(), avg)
		writeStatusHeaders(w, snap)
		responses.WriteDocument(w, httpStatusFor(snap.Status), snap)
	}
}

func writeStatusHeaders(w http.ResponseWriter, snap balance.Snapshot) {
	w.Header().Set("X-Status", string(snap.Status))
	w.Header().Set("X-Mints-Remaining", strconv.FormatInt(snap.Estimates.MintsRemaining, 10))
	w.Header().Set("X-Days-Remaining", strconv.FormatFloat(snap.Estimates.DaysRemaining, 'f', 2, 64))
	w.Header().Set("Cache-Control", "no-store")
}

func httpStatusFor(health enums.PlatformHealth) int {
	switch health {
	case enums.PlatformHealthHealthy, enums.PlatformHealthWarning:
		return http.StatusOK
	case enums.PlatformHealthCritical:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
