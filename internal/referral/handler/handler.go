// Package handler exposes the referral service over HTTP. It stays thin:
// decode, delegate, encode. Business rules live in the service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"capref/internal/referral/models"
	id "capref/pkg/domain"
	dErrors "capref/pkg/domain-errors"
	"capref/pkg/platform/httputil"
	"capref/pkg/requestcontext"
)

// Service defines the referral operations the handler depends on.
type Service interface {
	Create(ctx context.Context, referrerUserID id.UserID, referrerCode string, req models.CreateReferralRequest) (*models.CreateReferralResponse, error)
	List(ctx context.Context, referrerUserID id.UserID, status *models.Status, skip, take int) (*models.ReferralListResponse, error)
	Get(ctx context.Context, referrerUserID id.UserID, referralID id.ReferralID) (*models.ReferralSummary, error)
	Resolve(ctx context.Context, token string) (*models.ResolveReferralResponse, error)
	TrackEvent(ctx context.Context, referrerUserID id.UserID, referralID id.ReferralID, event models.EventType) error
}

// Handler wires referral endpoints to the referral service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a referral handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterAPI mounts the authenticated referral endpoints. The router
// passed in must already carry the auth middleware.
func (h *Handler) RegisterAPI(r chi.Router) {
	r.Post("/v1/referrals", h.HandleCreate)
	r.Get("/v1/referrals", h.HandleList)
	r.Get("/v1/referrals/{referralID}", h.HandleGet)
	r.Post("/v1/referrals/{referralID}/events", h.HandleTrackEvent)
}

// RegisterPublic mounts the endpoints the install flow hits before any
// identity exists: token resolution and the share-link redirect.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/v1/referrals/resolve", h.HandleResolve)
	r.Get("/r/{token}", h.HandleRedirect)
}

// HandleCreate handles POST /v1/referrals.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	userID, referrerCode, ok := h.identity(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.CreateReferralRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Create(ctx, userID, referrerCode, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "referral create failed",
			"request_id", requestID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "referral created",
		"request_id", requestID,
		"user_id", userID,
		"referral_id", result.ReferralID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	w.Header().Set("Location", "/v1/referrals/"+result.ReferralID)
	httputil.WriteJSON(w, http.StatusCreated, result)
}

// HandleList handles GET /v1/referrals with optional status, skip, and
// take query parameters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, _, ok := h.identity(w, ctx)
	if !ok {
		return
	}

	var status *models.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		status = &parsed
	}
	skip, ok := h.queryInt(w, r, "skip")
	if !ok {
		return
	}
	take, ok := h.queryInt(w, r, "take")
	if !ok {
		return
	}

	result, err := h.service.List(ctx, userID, status, skip, take)
	if err != nil {
		h.logger.ErrorContext(ctx, "referral list failed",
			"request_id", requestID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleGet handles GET /v1/referrals/{referralID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, _, ok := h.identity(w, ctx)
	if !ok {
		return
	}
	referralID, err := id.ParseReferralID(chi.URLParam(r, "referralID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Get(ctx, userID, referralID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "referral get failed",
				"request_id", requestID,
				"user_id", userID,
				"referral_id", referralID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleResolve handles GET /v1/referrals/resolve?token=. Unknown and
// blank tokens are successful negative responses, not errors.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	result, err := h.service.Resolve(ctx, r.URL.Query().Get("token"))
	if err != nil {
		h.logger.ErrorContext(ctx, "referral resolve failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleTrackEvent handles POST /v1/referrals/{referralID}/events and
// responds 204 on success.
func (h *Handler) HandleTrackEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, _, ok := h.identity(w, ctx)
	if !ok {
		return
	}
	referralID, err := id.ParseReferralID(chi.URLParam(r, "referralID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.TrackEventRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	event, err := models.ParseEventType(req.EventType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.TrackEvent(ctx, userID, referralID, event); err != nil {
		h.logger.ErrorContext(ctx, "referral event tracking failed",
			"request_id", requestID,
			"user_id", userID,
			"referral_id", referralID,
			"event", req.EventType,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRedirect handles GET /r/{token}: the link a referred friend taps.
// It forwards to the app-store interstitial carrying the token so the app
// can resolve it after install. The token is passed through unverified;
// resolution decides later whether it maps to a referral.
func (h *Handler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	http.Redirect(w, r, "/appstore.html?token="+url.QueryEscape(token), http.StatusFound)
}

// identity pulls the authenticated referrer from the request context. The
// auth middleware populates both values; their absence means the route was
// mounted without it.
func (h *Handler) identity(w http.ResponseWriter, ctx context.Context) (id.UserID, string, bool) {
	userID := requestcontext.UserID(ctx)
	referrerCode := requestcontext.ReferralCode(ctx)
	if userID.IsNil() || referrerCode == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, "", false
	}
	return userID, referrerCode, true
}

// queryInt parses an optional integer query parameter, defaulting to zero
// when absent.
func (h *Handler) queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be an integer", name))
		return 0, false
	}
	return value, true
}
