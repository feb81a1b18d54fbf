// Package tenant resolves the clinic (tenant) of each request and validates it
// against the clinics table before any tenant-scoped handler runs.
package tenant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mdnsystems/OmniCare-sub005/internal/auth"
	"github.com/mdnsystems/OmniCare-sub005/internal/cache"
	"github.com/mdnsystems/OmniCare-sub005/internal/middleware"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/rs/zerolog"
)

const (
	HeaderName = "X-Tenant-ID"
	QueryParam = "tenantId"
	BodyField  = "tenantId"

	// maxPeekBody limita quanto do corpo JSON é lido para achar tenantId.
	maxPeekBody = 1 << 20
)

// Info é a clínica resolvida para a requisição.
type Info struct {
	ID         uuid.UUID
	Name       string
	Active     bool
	BlockLevel string // nível efetivo (override ou calculado)
}

type ctxKey struct{}

func WithInfo(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

func FromContext(ctx context.Context) (Info, bool) {
	info, ok := ctx.Value(ctxKey{}).(Info)
	return info, ok
}

// ID devolve o tenant resolvido ou uuid.Nil.
func ID(ctx context.Context) uuid.UUID {
	info, _ := FromContext(ctx)
	return info.ID
}

// ClinicLookup carrega a clínica pelo id; repo.ErrNotFound quando não existe.
type ClinicLookup func(ctx context.Context, id uuid.UUID) (*repo.Clinic, error)

// Error é uma falha de resolução com o status HTTP correspondente.
type Error struct {
	Status int
	Msg    string
}

func (e *Error) Error() string { return e.Msg }

var (
	ErrMismatch       = &Error{http.StatusForbidden, "tenant mismatch"}
	ErrRequired       = &Error{http.StatusBadRequest, "tenantId required"}
	ErrInvalidID      = &Error{http.StatusBadRequest, "invalid tenantId"}
	ErrClinicNotFound = &Error{http.StatusNotFound, "clinic not found"}
	ErrClinicInactive = &Error{http.StatusForbidden, "clinic inactive"}
)

// Explicit devolve o tenant informado na requisição fora do token, nesta ordem:
// header X-Tenant-ID, query tenantId, campo tenantId do corpo JSON. O corpo é restaurado.
func Explicit(r *http.Request) (string, error) {
	if v := strings.TrimSpace(r.Header.Get(HeaderName)); v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(r.URL.Query().Get(QueryParam)); v != "" {
		return v, nil
	}
	return peekBody(r)
}

func peekBody(r *http.Request) (string, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", nil
	}
	if !strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return "", nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBody+1))
	rest := r.Body
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(raw), rest), rest}
	if err != nil || len(raw) > maxPeekBody {
		return "", nil
	}
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return "", nil
	}
	v, ok := fields[BodyField]
	if !ok {
		return "", nil
	}
	var s string
	if json.Unmarshal(v, &s) != nil {
		return "", ErrInvalidID
	}
	return strings.TrimSpace(s), nil
}

// Select aplica a regra de precedência entre o tenant do token e o explícito.
// Usuários de clínica sempre usam o do token; um explícito diferente é mismatch.
// Super admin não tem tenant no token e precisa informar um.
func Select(claims *auth.Claims, explicit string) (string, error) {
	var fromToken string
	if claims != nil && claims.TenantID != nil {
		fromToken = strings.TrimSpace(*claims.TenantID)
	}
	isSuper := claims != nil && claims.Role == auth.RoleSuperAdmin
	switch {
	case fromToken != "":
		if explicit != "" && !strings.EqualFold(explicit, fromToken) {
			return "", ErrMismatch
		}
		return fromToken, nil
	case isSuper:
		if explicit == "" {
			return "", ErrRequired
		}
		return explicit, nil
	default:
		return "", ErrRequired
	}
}

type Resolver struct {
	lookup ClinicLookup
	cache  *cache.TTL[Info]
	log    zerolog.Logger
}

func NewResolver(lookup ClinicLookup, ttl time.Duration, log zerolog.Logger) *Resolver {
	return &Resolver{lookup: lookup, cache: cache.New[Info](ttl), log: log}
}

// Close para o janitor do cache.
func (res *Resolver) Close() { res.cache.Stop() }

// Invalidate remove a clínica do cache (mudança de nível, ativação, edição).
func (res *Resolver) Invalidate(id uuid.UUID) { res.cache.Delete(id.String()) }

// Load valida o id e devolve a clínica, usando o cache.
func (res *Resolver) Load(ctx context.Context, raw string) (Info, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return Info{}, ErrInvalidID
	}
	key := id.String()
	info, ok := res.cache.Get(key)
	if !ok {
		c, err := res.lookup(ctx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return Info{}, ErrClinicNotFound
			}
			return Info{}, err
		}
		info = Info{ID: c.ID, Name: c.Name, Active: c.Active, BlockLevel: c.EffectiveBlockLevel()}
		res.cache.Set(key, info)
	}
	if !info.Active {
		return Info{}, ErrClinicInactive
	}
	return info, nil
}

// Resolve extrai, confere e carrega o tenant da requisição.
func (res *Resolver) Resolve(r *http.Request) (Info, error) {
	explicit, err := Explicit(r)
	if err != nil {
		return Info{}, err
	}
	raw, err := Select(auth.ClaimsFrom(r.Context()), explicit)
	if err != nil {
		return Info{}, err
	}
	return res.Load(r.Context(), raw)
}

// Middleware exige um tenant válido; deve rodar depois de RequireAuth.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := res.Resolve(r)
		if err != nil {
			var te *Error
			if errors.As(err, &te) {
				writeError(w, te.Status, te.Msg)
				return
			}
			res.log.Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("tenant lookup")
			writeError(w, http.StatusInternalServerError, "internal")
			return
		}
		middleware.AnnotateTenant(r.Context(), info.ID.String())
		next.ServeHTTP(w, r.WithContext(WithInfo(r.Context(), info)))
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
