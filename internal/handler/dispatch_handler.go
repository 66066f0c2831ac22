package handler

import (
	"net/http"

	"github.com/pulsemetrics/engage-engine/internal/scheduler"
	"github.com/pulsemetrics/engage-engine/pkg/utils/httputil"
	"go.uber.org/zap"
)

// PostDispatch godoc
//
//	@Summary	Trigger a dispatch pass outside the cron schedule
//	@Produce	json
//	@Param		scope	query	string	false	"Scope to process (empty for every scope)"
//	@Param		limit	query	integer	false	"Maximum unprocessed interactions loaded for the pass"
//	@Success	200	"Status OK"
//	@Router		/dispatch [post]
func PostDispatch(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	limit, err := QueryParamToOptionalInt(r, "limit", 0)
	if err != nil {
		httputil.Error(w, r, httputil.ErrAPIParsingInteger, err)
		return
	}

	job := scheduler.DispatchJob{Scope: scope, BatchSize: limit}
	if job.IsRunning() {
		httputil.Error(w, r, httputil.ErrAPIQueueFull, nil)
		return
	}

	zap.L().Info("Manual dispatch pass triggered", zap.String("scope", scope))
	go job.Run()

	httputil.OK(w, r)
}
