package httpapi

import (
	"context"
	"net/http"
)

type reqCacheKey struct{}

// RequestCache — запросная памятка для данных выпадающих списков:
// каталоги секций и варианты опций в рамках одного запроса читаются
// из БД не более одного раза.
type RequestCache struct {
	values map[string]any
}

// WithRequestCache кладёт новую памятку в контекст каждого запроса.
func WithRequestCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), reqCacheKey{}, &RequestCache{values: map[string]any{}})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func cacheFrom(ctx context.Context) *RequestCache {
	c, _ := ctx.Value(reqCacheKey{}).(*RequestCache)
	return c
}

// memo возвращает закэшированное значение либо вычисляет и запоминает его.
// Вне запроса (без памятки в контексте) просто вычисляет.
func memo[T any](ctx context.Context, key string, compute func() (T, error)) (T, error) {
	c := cacheFrom(ctx)
	if c == nil {
		return compute()
	}
	if v, ok := c.values[key]; ok {
		return v.(T), nil
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	c.values[key] = v
	return v, nil
}
