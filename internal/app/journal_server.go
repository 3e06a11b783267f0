package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"backtest-blotter/internal/journal"
)

// newJournalHandler 暴露订单日志的只读查询接口：
// GET /runs/{run_id}/orders[?order_id=] 与 GET /runs/{run_id}/transactions。
func newJournalHandler(svc *journal.Service, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /runs/{run_id}/orders", func(w http.ResponseWriter, r *http.Request) {
		runID := strings.TrimSpace(r.PathValue("run_id"))
		events, err := svc.ListOrderEvents(r.Context(), runID, strings.TrimSpace(r.URL.Query().Get("order_id")))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if events == nil {
			events = []journal.OrderEvent{}
		}
		writeJSON(w, events, logger)
	})

	mux.HandleFunc("GET /runs/{run_id}/transactions", func(w http.ResponseWriter, r *http.Request) {
		txns, err := svc.ListTransactions(r.Context(), strings.TrimSpace(r.PathValue("run_id")))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if txns == nil {
			txns = []journal.TransactionRecord{}
		}
		writeJSON(w, txns, logger)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("写入日志查询响应失败", zap.Error(err))
	}
}

// Serve 启动日志查询服务，阻塞直到 ctx 结束。
func (a *App) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newJournalHandler(a.journal, a.logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			a.logger.Warn("关闭日志查询服务失败", zap.Error(err))
		}
	}()

	a.logger.Info("日志查询接口已启动", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
