package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prompt-architect/relay/internal/cache"
	"github.com/prompt-architect/relay/internal/coalesce"
	"github.com/prompt-architect/relay/internal/config"
	"github.com/prompt-architect/relay/internal/fingerprint"
	"github.com/prompt-architect/relay/internal/httputil"
	"github.com/prompt-architect/relay/internal/ratelimit"
	"github.com/prompt-architect/relay/internal/telemetry"
	"github.com/prompt-architect/relay/internal/types"
	"github.com/prompt-architect/relay/internal/upstream"
)

// Caller-visible error codes for /api/chat.
const (
	CodeInvalidInput             = "INVALID_INPUT"
	CodeInvalidSystemMessage     = "INVALID_SYSTEM_MESSAGE"
	CodeInputTooLong             = "INPUT_TOO_LONG"
	CodeInvalidTemperature       = "INVALID_TEMPERATURE"
	CodeMissingCredential        = "MISSING_CREDENTIAL"
	CodeRateLimited              = "RATE_LIMITED"
	CodeUpstreamQuota            = "UPSTREAM_QUOTA"
	CodeUpstreamUnauthorized     = "UPSTREAM_UNAUTHORIZED"
	CodeUpstreamModelUnavailable = "UPSTREAM_MODEL_UNAVAILABLE"
	CodeUpstreamEmptyResponse    = "UPSTREAM_EMPTY_RESPONSE"
	CodeUpstreamFailed           = "UPSTREAM_FAILED"
)

// rateLimitedError aborts the leader path when the sliding window is full.
// It carries the wait hint through the coalescing group to whoever is
// listening for the outcome.
type rateLimitedError struct {
	RetryAfterSeconds int
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", e.RetryAfterSeconds)
}

// Handler orchestrates /api/chat: validation, fingerprinting, cache lookup,
// request coalescing, rate limiting, and the upstream call.
type Handler struct {
	cfg       func() *config.Config
	completer upstream.Completer
	cache     *cache.Store
	flights   *coalesce.Group[*types.Completion]
	limiter   *ratelimit.Limiter
	metrics   *telemetry.Metrics
}

func NewHandler(cfg func() *config.Config, completer upstream.Completer, store *cache.Store, limiter *ratelimit.Limiter, metrics *telemetry.Metrics) *Handler {
	return &Handler{
		cfg:       cfg,
		completer: completer,
		cache:     store,
		flights:   coalesce.NewGroup[*types.Completion](),
		limiter:   limiter,
		metrics:   metrics,
	}
}

// Chat handles POST /api/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()
	cfg := h.cfg()

	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.reject(w, http.StatusBadRequest, CodeInvalidInput, "Request body must be valid JSON.")
		return
	}

	userInput := strings.TrimSpace(req.UserInput)
	systemMessage := strings.TrimSpace(req.SystemMessage)

	// Validation happens in field order and before any fingerprint, cache,
	// or rate-limit work: a rejected request must not spend budget.
	if userInput == "" {
		h.reject(w, http.StatusBadRequest, CodeInvalidInput, "User input is required.")
		return
	}
	if systemMessage == "" {
		h.reject(w, http.StatusBadRequest, CodeInvalidSystemMessage, "System message is required.")
		return
	}
	if utf8.RuneCountInString(userInput) > cfg.Chat.MaxInputChars {
		h.reject(w, http.StatusBadRequest, CodeInputTooLong,
			fmt.Sprintf("User input is too long. Maximum length is %d characters.", cfg.Chat.MaxInputChars))
		return
	}
	if req.Temperature == nil || *req.Temperature < 0 || *req.Temperature > 2 {
		h.reject(w, http.StatusBadRequest, CodeInvalidTemperature, "Temperature must be a number between 0.0 and 2.0.")
		return
	}
	temperature := fingerprint.RoundTemperature(*req.Temperature)

	if cfg.Upstream.APIKey == "" {
		h.reject(w, http.StatusServiceUnavailable, CodeMissingCredential,
			"No upstream API credential is configured on the server.")
		return
	}

	key := fingerprint.Key(cfg.Upstream.Model, temperature, cfg.Chat.MaxOutputTokens, systemMessage, userInput)

	if entry, ok := h.cache.Get(key); ok {
		if h.metrics != nil {
			h.metrics.RecordCacheLookup(true)
			h.metrics.RecordRequest("OK")
		}
		h.respond(w, cfg, entry.Result, entry.Model, entry.Temperature, true)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordCacheLookup(false)
	}

	clientKey := ratelimit.ClientKey(r)
	// The upstream call outlives a leader disconnect: followers and the
	// cache depend on it finishing.
	callCtx := context.WithoutCancel(r.Context())

	completion, leader, err := h.flights.Do(r.Context(), key, func() (*types.Completion, error) {
		// Rate limiting happens only here, on the leader path. Cache hits
		// and coalesced followers never consume budget.
		if admit := h.limiter.Admit(clientKey); !admit.Allowed {
			return nil, &rateLimitedError{RetryAfterSeconds: admit.RetryAfterSeconds}
		}

		callStart := time.Now()
		completion, err := h.completer.Complete(callCtx, upstream.Request{
			Model:       cfg.Upstream.Model,
			Temperature: temperature,
			MaxTokens:   cfg.Chat.MaxOutputTokens,
			Messages: []types.Message{
				{Role: "system", Content: systemMessage},
				{Role: "user", Content: userInput},
			},
		})
		if h.metrics != nil {
			h.metrics.RecordUpstream(cfg.Upstream.Model, float64(time.Since(callStart).Milliseconds()), upstreamErrKind(err))
		}
		if err != nil {
			return nil, err
		}

		// The cache is populated before the outcome reaches any waiter, so
		// a repeat of this fingerprint after the flight completes is a hit.
		h.cache.Put(key, completion.Text, completion.Model, completion.Temperature)
		if h.metrics != nil {
			h.metrics.CacheEntries.Set(float64(h.cache.Len()))
		}
		return completion, nil
	})
	if !leader && err == nil && h.metrics != nil {
		h.metrics.CoalescedTotal.Inc()
	}

	if err != nil {
		h.writeFailure(w, r, reqID, err)
		return
	}

	slog.Info("chat completed",
		"request_id", reqID,
		"model", completion.Model,
		"temperature", completion.Temperature,
		"cache_hit", false,
		"coalesced", !leader,
		"client", clientKey,
		"duration_ms", time.Since(receivedAt).Milliseconds(),
	)
	if h.metrics != nil {
		h.metrics.RecordRequest("OK")
	}
	h.respond(w, cfg, completion.Text, completion.Model, completion.Temperature, false)
}

// Health handles GET /api/health. It has no dependencies and always
// reports ok.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) respond(w http.ResponseWriter, cfg *config.Config, result, model string, temperature float64, cacheHit bool) {
	httputil.WriteJSON(w, http.StatusOK, types.ChatResponse{
		OK:     true,
		Result: result,
		Meta: types.ChatMeta{
			Model:           model,
			Temperature:     temperature,
			CacheHit:        cacheHit,
			MaxOutputTokens: cfg.Chat.MaxOutputTokens,
			BudgetProfile:   cfg.Chat.BudgetProfile,
		},
	})
}

func (h *Handler) reject(w http.ResponseWriter, status int, code, message string) {
	if h.metrics != nil {
		h.metrics.RecordRequest(code)
	}
	httputil.WriteError(w, status, code, message)
}

// writeFailure translates a coalesced-path error into the client envelope.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, reqID string, err error) {
	var rlErr *rateLimitedError
	if errors.As(err, &rlErr) {
		if h.metrics != nil {
			h.metrics.RateLimitedTotal.Inc()
			h.metrics.RecordRequest(CodeRateLimited)
		}
		slog.Warn("rate limit exceeded",
			"request_id", reqID,
			"client", ratelimit.ClientKey(r),
			"retry_after_s", rlErr.RetryAfterSeconds,
		)
		httputil.WriteRateLimited(w, CodeRateLimited,
			"Too many requests. Please wait before trying again.", rlErr.RetryAfterSeconds)
		return
	}

	// Only the requester's own context going away makes the error
	// unanswerable. An upstream call can surface DeadlineExceeded too,
	// via the client timeout, and that one must reach the caller.
	if r.Context().Err() != nil &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		slog.Debug("request abandoned while waiting", "request_id", reqID)
		return
	}

	status, code := http.StatusInternalServerError, CodeUpstreamFailed
	message := "Unable to complete your request right now."

	var upErr *upstream.Error
	if errors.As(err, &upErr) {
		message = upErr.Message
		switch upErr.Kind {
		case upstream.KindQuotaExceeded:
			status, code = http.StatusTooManyRequests, CodeUpstreamQuota
		case upstream.KindUnauthorized:
			status, code = http.StatusUnauthorized, CodeUpstreamUnauthorized
		case upstream.KindModelUnavailable:
			status, code = http.StatusNotFound, CodeUpstreamModelUnavailable
		case upstream.KindEmptyResponse:
			status, code = http.StatusBadGateway, CodeUpstreamEmptyResponse
		}
	}

	// Full detail, including any raw upstream body, stays in the log.
	slog.Error("upstream call failed", "request_id", reqID, "error", err)
	if h.metrics != nil {
		h.metrics.RecordRequest(code)
	}
	httputil.WriteError(w, status, code, message)
}

func upstreamErrKind(err error) string {
	if err == nil {
		return ""
	}
	var upErr *upstream.Error
	if errors.As(err, &upErr) {
		return string(upErr.Kind)
	}
	return string(upstream.KindUnclassified)
}
