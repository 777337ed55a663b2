package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatsis/gatsishub-backend/api/responses"
	pkgerrors "github.com/gatsis/gatsishub-backend/pkg/errors"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
	pkgredis "github.com/gatsis/gatsishub-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// idempotencyRule pairs a request path shape with the retention window for
// its replay records. Money-adjacent routes keep their records for a week.
// Rules match the raw URL path, not the chi route pattern: the middleware
// runs before the inner mux resolves the route, so the pattern is still
// partial at that point.
type idempotencyRule struct {
	method string
	match  func(path string) bool
	ttl    time.Duration
}

var idempotencyRules = []idempotencyRule{
	{http.MethodPost, exactRoute("/api/v1/auth/signup"), defaultIdempotencyTTL},
	{http.MethodPost, exactRoute("/api/v1/messages"), defaultIdempotencyTTL},
	{http.MethodPost, nestedRoute("/api/v1/admin/conversations/", "/messages"), defaultIdempotencyTTL},
	{http.MethodPost, nestedRoute("/api/v1/notifications/", "/read"), defaultIdempotencyTTL},
	{http.MethodPost, exactRoute("/api/v1/notifications/read-all"), defaultIdempotencyTTL},
	{http.MethodPost, exactRoute("/api/v1/admin/materials"), defaultIdempotencyTTL},
	{http.MethodPost, exactRoute("/api/v1/admin/quotas"), defaultIdempotencyTTL},
	{http.MethodPost, exactRoute("/api/v1/orders"), criticalIdempotencyTTL},
	{http.MethodPost, exactRoute("/api/v1/admin/orders"), criticalIdempotencyTTL},
	{http.MethodPost, nestedRoute("/api/v1/admin/orders/", "/status"), criticalIdempotencyTTL},
	{http.MethodPost, nestedRoute("/api/v1/admin/orders/", "/payment"), criticalIdempotencyTTL},
	{http.MethodPost, exactRoute("/api/v1/production/submissions"), criticalIdempotencyTTL},
	{http.MethodPost, nestedRoute("/api/v1/admin/submissions/", "/verify"), criticalIdempotencyTTL},
	{http.MethodPost, nestedRoute("/api/v1/admin/submissions/", "/reject"), criticalIdempotencyTTL},
}

type idempotencyRecord struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

// Idempotency replays the stored response when a POST arrives twice with the
// same Idempotency-Key and body. A reused key with a different body is a
// conflict, never a silent replay.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := routeTTL(r.Method, r.URL.Path)
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if key == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			digest := requestDigest(body)
			storeKey := store.IdempotencyKey(actorScope(r), key)

			stored, getErr := store.Get(r.Context(), storeKey)
			switch {
			case getErr != nil && !errors.Is(getErr, redis.Nil):
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, getErr, "check idempotency"))
				return
			case stored != "":
				var record idempotencyRecord
				if err := json.Unmarshal([]byte(stored), &record); err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
					return
				}
				if record.RequestHash != digest {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				replayResponse(w, record)
				return
			}

			rec := &replayRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			record := idempotencyRecord{
				Status:      rec.statusOrOK(),
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
				RequestHash: digest,
			}
			if ct := rec.Header().Get("Content-Type"); ct != "" {
				record.Headers = map[string]string{"Content-Type": ct}
			}

			payload, marshalErr := json.Marshal(record)
			if marshalErr != nil {
				logError(r.Context(), logg, "marshal idempotency record", marshalErr)
				return
			}
			if _, setErr := store.SetNX(r.Context(), storeKey, string(payload), ttl); setErr != nil {
				logError(r.Context(), logg, "persist idempotency record", setErr)
			}
		})
	}
}

// actorScope isolates replay records per actor, method, and path so one
// customer's key can never surface another's response.
func actorScope(r *http.Request) string {
	return strings.Join([]string{
		ActorKindFromContext(r.Context()),
		ActorIDFromContext(r.Context()),
		r.Method,
		r.URL.Path,
	}, "|")
}

func replayResponse(w http.ResponseWriter, record idempotencyRecord) {
	if ct := record.Headers["Content-Type"]; ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(record.Status)
	if decoded, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

func requestDigest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func routeTTL(method, path string) (time.Duration, bool) {
	if path == "" {
		return 0, false
	}
	for _, rule := range idempotencyRules {
		if rule.method == method && rule.match(path) {
			return rule.ttl, true
		}
	}
	return 0, false
}

func exactRoute(path string) func(string) bool {
	return func(requestPath string) bool { return requestPath == path }
}

func nestedRoute(prefix, suffix string) func(string) bool {
	return func(requestPath string) bool {
		return strings.HasPrefix(requestPath, prefix) && strings.HasSuffix(requestPath, suffix)
	}
}

// replayRecorder tees the response so a copy can be stored for replay.
type replayRecorder struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *replayRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *replayRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *replayRecorder) statusOrOK() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
