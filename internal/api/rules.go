package api

import (
	"net/http"

	"github.com/hackgods/practice-scheduling/internal/scheduling"
)

func createRuleHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRuleRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		rule, err := svc.CreateRecurringRule(r.Context(), practiceID(r), req.toRule())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, rule)
	}
}

func listRulesHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, err := svc.ListRecurringRules(r.Context(), practiceID(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if rules == nil {
			rules = []scheduling.RecurringRule{}
		}

		writeJSON(w, http.StatusOK, ListRulesResponse{Rules: rules})
	}
}

func getRuleHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "ruleID")
		if !ok {
			return
		}

		rule, err := svc.GetRecurringRule(r.Context(), practiceID(r), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, rule)
	}
}

func setRuleActiveHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "ruleID")
		if !ok {
			return
		}
		var req SetRuleActiveRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.IsActive == nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "is_active is required")
			return
		}

		rule, err := svc.SetRecurringRuleActive(r.Context(), practiceID(r), id, *req.IsActive)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, rule)
	}
}

func deleteRuleHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "ruleID")
		if !ok {
			return
		}

		if err := svc.DeleteRecurringRule(r.Context(), practiceID(r), id); err != nil {
			writeServiceError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func previewOccurrencesHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "ruleID")
		if !ok {
			return
		}
		if !requireQuery(w, r, "from", "to") {
			return
		}
		from, ok := dateQuery(w, r, "from")
		if !ok {
			return
		}
		to, ok := dateQuery(w, r, "to")
		if !ok {
			return
		}

		occ, err := svc.PreviewOccurrences(r.Context(), practiceID(r), id, from, to)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if occ == nil {
			occ = []scheduling.Occurrence{}
		}

		writeJSON(w, http.StatusOK, OccurrencesResponse{RuleID: id, Occurrences: occ})
	}
}

// materializeRuleHandler books the rule's occurrences in the requested range. Occurrences that
// are already booked or fall on a blocked day come back as skipped.
func materializeRuleHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "ruleID")
		if !ok {
			return
		}
		var req DateRangeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.From.IsZero() || req.To.IsZero() {
			writeError(w, http.StatusBadRequest, "invalid_input", "from and to are required")
			return
		}

		res, err := svc.MaterializeRule(r.Context(), practiceID(r), id, req.From, req.To)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}
