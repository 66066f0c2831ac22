package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pulsemetrics/engage-engine/internal/rule"
	"github.com/pulsemetrics/engage-engine/internal/scheduler"
	"github.com/pulsemetrics/engage-engine/pkg/utils/httputil"
	"go.uber.org/zap"
)

// GetRules godoc
//
//	@Summary	Get all automation rules, ordered by priority
//	@Produce	json
//	@Param		scope	query	string	false	"Filter on a scope"
//	@Success	200	{array}	rule.Rule
//	@Router		/rules [get]
func GetRules(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")

	rulesMap, err := rule.R().GetAll(scope)
	if err != nil {
		zap.L().Error("GetRules", zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIDBSelectFailed, err)
		return
	}

	rules := make([]rule.Rule, 0, len(rulesMap))
	for _, r := range rulesMap {
		rules = append(rules, r)
	}
	rule.SortByPriority(rules)

	httputil.JSON(w, r, rules)
}

// GetRule godoc
//
//	@Summary	Get a rule by id
//	@Produce	json
//	@Param		id	path	string	true	"Rule ID"
//	@Success	200	{object}	rule.Rule
//	@Router		/rules/{id} [get]
func GetRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ruleID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		zap.L().Warn("Parse rule id", zap.String("id", id), zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIParsingInteger, err)
		return
	}

	found, ok, err := rule.R().Get(ruleID)
	if err != nil {
		zap.L().Error("GetRule", zap.Int64("id", ruleID), zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIDBSelectFailed, err)
		return
	}
	if !ok {
		httputil.Error(w, r, httputil.ErrAPIDBResourceNotFound, nil)
		return
	}

	httputil.JSON(w, r, found)
}

// PostRule godoc
//
//	@Summary	Create a new automation rule
//	@Accept		json
//	@Produce	json
//	@Param		rule	body	rule.Rule	true	"Rule definition"
//	@Success	200	{object}	rule.Rule
//	@Router		/rules [post]
func PostRule(w http.ResponseWriter, r *http.Request) {
	var newRule rule.Rule
	if err := json.NewDecoder(r.Body).Decode(&newRule); err != nil {
		zap.L().Warn("Rule json decode", zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIDecodeJSONBody, err)
		return
	}
	if ok, err := newRule.IsValid(); !ok {
		zap.L().Warn("Rule is invalid", zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIResourceInvalid, err)
		return
	}

	if _, ok, err := rule.R().GetByName(newRule.Name); err != nil {
		httputil.Error(w, r, httputil.ErrAPIDBSelectFailed, err)
		return
	} else if ok {
		httputil.Error(w, r, httputil.ErrAPIResourceDuplicate, errors.New("a rule already exists with name: "+newRule.Name))
		return
	}

	id, err := rule.R().Create(newRule)
	if err != nil {
		zap.L().Error("PostRule", zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIDBInsertFailed, err)
		return
	}

	created, ok, err := rule.R().Get(id)
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

// PutRule godoc
//
//	@Summary	Update an automation rule
//	@Accept		json
//	@Produce	json
//	@Param		id	path	string	true	"Rule ID"
//	@Success	200	{object}	rule.Rule
//	@Router		/rules/{id} [put]
func PutRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ruleID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		httputil.Error(w, r, httputil.ErrAPIParsingInteger, err)
		return
	}

	var updated rule.Rule
	if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
		zap.L().Warn("Rule json decode", zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIDecodeJSONBody, err)
		return
	}
	updated.ID = ruleID
	if ok, err := updated.IsValid(); !ok {
		zap.L().Warn("Rule is invalid", zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIResourceInvalid, err)
		return
	}

	if err := rule.R().Update(updated); err != nil {
		zap.L().Error("PutRule", zap.Int64("id", ruleID), zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIDBUpdateFailed, err)
		return
	}

	stored, ok, err := rule.R().Get(ruleID)
	if err != nil {
		httputil.Error(w, r, httputil.ErrAPIDBSelectFailed, err)
		return
	}
	if !ok {
		httputil.Error(w, r, httputil.ErrAPIDBResourceNotFoundAfterInsert, nil)
		return
	}

	httputil.JSON(w, r, stored)
}

// DeleteRule godoc
//
//	@Summary	Delete an automation rule
//	@Produce	json
//	@Param		id	path	string	true	"Rule ID"
//	@Success	200	"Status OK"
//	@Router		/rules/{id} [delete]
func DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ruleID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		httputil.Error(w, r, httputil.ErrAPIParsingInteger, err)
		return
	}

	if err := rule.R().Delete(ruleID); err != nil {
		zap.L().Error("DeleteRule", zap.Int64("id", ruleID), zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIDBDeleteFailed, err)
		return
	}

	httputil.OK(w, r)
}

// RuleStatus combines a rule with the current state of its circuit breaker
type RuleStatus struct {
	Rule    rule.Rule `json:"rule"`
	State   string    `json:"state"`
	Message string    `json:"message,omitempty"`
	RetryAt *string   `json:"retryAt,omitempty"`
}

// GetRulesStatus godoc
//
//	@Summary	Get every rule with its dispatch availability
//	@Produce	json
//	@Param		scope	query	string	false	"Filter on a scope"
//	@Success	200	{array}	handler.RuleStatus
//	@Router		/rules/status [get]
func GetRulesStatus(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")

	rulesMap, err := rule.R().GetAll(scope)
	if err != nil {
		zap.L().Error("GetRulesStatus", zap.Error(err))
		httputil.Error(w, r, httputil.ErrAPIDBSelectFailed, err)
		return
	}
	breakers := scheduler.S().BreakerStatus()

	statuses := make([]RuleStatus, 0, len(rulesMap))
	for _, rl := range rulesMap {
		status := RuleStatus{Rule: rl, State: "closed"}
		if breakerStatus, ok := breakers[rl.ID]; ok {
			status.State = breakerStatus.State
			if breakerStatus.RetryAt != nil {
				retryAt := breakerStatus.RetryAt.Format(time.RFC3339)
				status.RetryAt = &retryAt
				status.Message = fmt.Sprintf("temporarily suspended, retrying at %s", retryAt)
			}
		}
		if !rl.Enabled {
			status.State = "disabled"
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].Rule.Priority != statuses[j].Rule.Priority {
			return statuses[i].Rule.Priority < statuses[j].Rule.Priority
		}
		return statuses[i].Rule.ID < statuses[j].Rule.ID
	})

	httputil.JSON(w, r, statuses)
}
