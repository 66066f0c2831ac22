package handler

import (
	"net/http"

	"github.com/pulsemetrics/engage-engine/pkg/utils/httputil"
)

// IsAlive godoc
//
//	@Summary	Check if the API is alive
//	@Produce	json
//	@Success	200	"Status OK"
//	@Router		/isalive [get]
func IsAlive(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, r, map[string]interface{}{"alive": true})
}
