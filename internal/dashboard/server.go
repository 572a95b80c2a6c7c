// Package dashboard 提供浏览器看板的 HTTP 与 WebSocket 接口：
// 读取最近一份扫描报告、查看与修改运行参数、健康检查以及实时推送。
package dashboard

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"arb-scanner/infrastructure/logger"
	"arb-scanner/internal/scanner"
)

// maxSettingsBody PUT /api/settings 请求体上限
const maxSettingsBody = 4 << 10

// ReportSource 最近一份扫描报告。
type ReportSource interface {
	Latest() (scanner.Report, bool)
}

// SettingsReader 当前运行参数。
type SettingsReader interface {
	Snapshot() scanner.SettingsSnapshot
}

// ParameterUpdater 校验并应用一组参数（按类别）。
type ParameterUpdater interface {
	ApplyParameters(category string, params map[string]interface{}) error
}

// Options Server 依赖项。
type Options struct {
	Reports  ReportSource
	Settings SettingsReader
	Updater  ParameterUpdater
	Hub      *Hub
	Health   func() error
	Logger   *logger.Logger
}

// Server 看板 HTTP 接口。
type Server struct {
	reports  ReportSource
	settings SettingsReader
	updater  ParameterUpdater
	hub      *Hub
	health   func() error
	log      *logger.Logger
}

func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{
		reports:  opts.Reports,
		settings: opts.Settings,
		updater:  opts.Updater,
		hub:      opts.Hub,
		health:   opts.Health,
		log:      log,
	}
}

// Handler 注册路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
	if s.hub != nil {
		mux.HandleFunc("GET /ws", s.hub.HandleWS)
	}
	return mux
}

// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GET /api/report，首个周期完成前返回 204。
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	report, ok := s.reports.Latest()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GET /api/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotFound, "settings unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.settings.Snapshot())
}

// PUT /api/settings，局部更新 threshold_pct / interval_sec / policy。
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	if s.updater == nil || s.settings == nil {
		writeError(w, http.StatusNotFound, "settings unavailable")
		return
	}

	var params map[string]interface{}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxSettingsBody))
	if err := dec.Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	for k := range params {
		switch k {
		case "threshold_pct", "interval_sec", "policy":
		default:
			writeError(w, http.StatusBadRequest, "unknown setting: "+k)
			return
		}
	}
	if len(params) == 0 {
		writeError(w, http.StatusBadRequest, "no settings provided")
		return
	}

	if err := s.updater.ApplyParameters("scan", params); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	snap := s.settings.Snapshot()
	s.log.LogEvent("settings_update", map[string]interface{}{
		"source":        "dashboard",
		"threshold_pct": snap.ThresholdPct,
		"interval_sec":  snap.IntervalSec,
		"policy":        string(snap.Policy),
	})
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
