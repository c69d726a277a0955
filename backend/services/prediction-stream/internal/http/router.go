package httpserver

import "net/http"

// Routes groups handlers.
type Routes struct {
	Stream            http.HandlerFunc
	StreamPath        string
	LatestPrediction  http.HandlerFunc
	PredictionHistory http.HandlerFunc
	PredictionStats   http.HandlerFunc
	Metrics           http.Handler
	Health            http.HandlerFunc
}

// NewRouter registers endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.Stream != nil {
		path := routes.StreamPath
		if path == "" {
			path = "/ws/predictions/"
		}
		mux.Handle(path, method(http.MethodGet, routes.Stream))
	}
	if routes.LatestPrediction != nil {
		mux.Handle("/predictions/latest", method(http.MethodGet, routes.LatestPrediction))
	}
	if routes.PredictionHistory != nil {
		mux.Handle("/predictions/history", method(http.MethodGet, routes.PredictionHistory))
	}
	if routes.PredictionStats != nil {
		mux.Handle("/predictions/stats", method(http.MethodGet, routes.PredictionStats))
	}
	if routes.Metrics != nil {
		mux.Handle("/metrics", routes.Metrics)
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
