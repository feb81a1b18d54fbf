package api

import (
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/schema"

	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
)

const defaultLimit = 20
const maxLimit = 100

// ParseLimitOffset reads limit and offset from query params. Default limit is 20, max 100.
func ParseLimitOffset(r *http.Request) (limit, offset int) {
	limit = defaultLimit
	offset = 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
			if limit > maxLimit {
				limit = maxLimit
			}
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func pageFrom(r *http.Request) repo.Page {
	limit, offset := ParseLimitOffset(r)
	return repo.Page{Limit: limit, Offset: offset}
}

var queryDecoder = newQueryDecoder()

// newQueryDecoder decodifica filtros de listagem (?status=&from=&professional_id=).
// Datas aceitam YYYY-MM-DD ou RFC3339.
func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	d.SetAliasTag("schema")
	d.RegisterConverter(uuid.UUID{}, func(s string) reflect.Value {
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			return reflect.Value{}
		}
		return reflect.ValueOf(id)
	})
	d.RegisterConverter(time.Time{}, func(s string) reflect.Value {
		s = strings.TrimSpace(s)
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return reflect.ValueOf(t)
		}
		if t, err := time.Parse(dateLayout, s); err == nil {
			return reflect.ValueOf(t)
		}
		return reflect.Value{}
	})
	return d
}

func decodeQuery(r *http.Request, dst interface{}) error {
	return queryDecoder.Decode(dst, r.URL.Query())
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// endOfRange devolve o limite superior (exclusivo) de ?key=. Data sem hora inclui o dia
// inteiro, então vira a meia-noite seguinte; RFC3339 é usado como veio.
func endOfRange(r *http.Request, key string, t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	if _, err := time.Parse(dateLayout, strings.TrimSpace(r.URL.Query().Get(key))); err == nil {
		t = t.AddDate(0, 0, 1)
	}
	return &t
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
