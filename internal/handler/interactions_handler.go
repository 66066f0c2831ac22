package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pulsemetrics/engage-engine/internal/executor"
	"github.com/pulsemetrics/engage-engine/internal/interaction"
	"github.com/pulsemetrics/engage-engine/internal/rule"
	"github.com/pulsemetrics/engage-engine/pkg/utils/httputil"
	"go.uber.org/zap"
)

// GetInteractions godoc
//
//	@Summary	Get interactions, oldest first
//	@Produce	json
//	@Param		scope		query	string	false	"Filter on a scope"
//	@Param		processed	query	boolean	false	"Filter on the processed state"
//	@Param		limit		query	integer	false	"Maximum number of interactions returned"
//	@Success	200	{array}	interaction.Interaction
//	@Router		/interactions [get]
func GetInteractions(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")

	processed, err := QueryParamToOptionalBool(r, "processed")
	if err != nil {
		httputil.Error(w, r, httputil.ErrAPIUnexpectedParamValue, err)
		return
	}
	limit, err := QueryParamToOptionalInt(r, "limit", 100)
	if err != nil {
		httputil.Error(w, r, httputil.ErrAPIParsingInteger, err)
		return
	}

	interactions, err := interaction.R().GetAll(scope, processed, limit)
	if err != nil {
		zap.L().Error("GetInteractions", zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIDBSelectFailed, err)
		return
	}

	httputil.JSON(w, r, interactions)
}

// GetInteraction godoc
//
//	@Summary	Get an interaction by id
//	@Produce	json
//	@Param		id	path	string	true	"Interaction ID"
//	@Success	200	{object}	interaction.Interaction
//	@Router		/interactions/{id} [get]
func GetInteraction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, ok, err := interaction.R().Get(id)
	if err != nil {
		zap.L().Error("GetInteraction", zap.String("id", id), zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIDBSelectFailed, err)
		return
	}
	if !ok {
		httputil.Error(w, r, httputil.ErrAPIDBResourceNotFound, nil)
		return
	}

	httputil.JSON(w, r, found)
}

// PostInteraction godoc
//
//	@Summary	Ingest a new inbound interaction
//	@Accept		json
//	@Produce	json
//	@Param		interaction	body	interaction.Interaction	true	"Interaction definition"
//	@Success	200	{object}	interaction.Interaction
//	@Router		/interactions [post]
func PostInteraction(w http.ResponseWriter, r *http.Request) {
	var newInteraction interaction.Interaction
	if err := json.NewDecoder(r.Body).Decode(&newInteraction); err != nil {
		zap.L().Warn("Interaction json decode", zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIDecodeJSONBody, err)
		return
	}
	if newInteraction.Platform == "" || newInteraction.Type == "" {
		httputil.Error(w, r, httputil.ErrAPIResourceInvalid,
			errors.New("an interaction requires at least a platform and a type"))
		return
	}

	id, err := interaction.R().Create(newInteraction)
	if err != nil {
		zap.L().Error("PostInteraction", zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIDBInsertFailed, err)
		return
	}

	created, ok, err := interaction.R().Get(id)
	if err != nil {
		httputil.Error(w, r, httputil.ErrAPIDBSelectFailed, err)
		return
	}
	if !ok {
		httputil.Error(w, r, httputil.ErrAPIDBResourceNotFoundAfterInsert, nil)
		return
	}

	httputil.JSON(w, r, created)
}

// PostInteractionRetry godoc
//
//	@Summary	Re-issue the committed action of an interaction through the batch processor
//	@Produce	json
//	@Param		id	path	string	true	"Interaction ID"
//	@Success	200	"Status OK"
//	@Router		/interactions/{id}/retry [post]
func PostInteractionRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, ok, err := interaction.R().Get(id)
	if err != nil {
		httputil.Error(w, r, httputil.ErrAPIDBSelectFailed, err)
		return
	}
	if !ok {
		httputil.Error(w, r, httputil.ErrAPIDBResourceNotFound, nil)
		return
	}
	if !found.Processed() {
		httputil.Error(w, r, httputil.ErrAPIResourceInvalid,
			errors.New("the interaction has no committed rule, nothing to retry"))
		return
	}

	winner, ok, err := rule.R().Get(*found.ProcessedByRuleID)
	if err != nil {
		httputil.Error(w, r, httputil.ErrAPIDBSelectFailed, err)
		return
	}
	if !ok {
		httputil.Error(w, r, httputil.ErrAPIDBResourceNotFound,
			errors.New("the committed rule no longer exists"))
		return
	}

	select {
	case executor.E().BatchReceiver <- []executor.ActionBatch{{Interaction: found, Descriptor: winner.Action}}:
		httputil.OK(w, r)
	default:
		httputil.Error(w, r, httputil.ErrAPIQueueFull, nil)
	}
}
