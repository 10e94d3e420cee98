package handler

import "net/http"

// NewHealthHandler は死活監視用のハンドラを返します。
func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"ironveil"}`))
	}
}
