package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/practice-scheduling/internal/logging"
	"github.com/hackgods/practice-scheduling/internal/telephony"
)

// Voice providers add fields of their own to function calls, so these bodies are decoded
// leniently.
func decodeLenient(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func bookAppointmentFunctionHandler(fns *telephony.Functions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var args telephony.BookAppointmentArgs
		if !decodeLenient(w, r, &args) {
			return
		}

		res := fns.BookAppointment(r.Context(), practiceID(r), args)
		writeJSON(w, http.StatusOK, res)
	}
}

func transferCallFunctionHandler(fns *telephony.Functions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var args telephony.TransferCallArgs
		if !decodeLenient(w, r, &args) {
			return
		}

		res := fns.TransferCall(r.Context(), practiceID(r), args)
		writeJSON(w, http.StatusOK, res)
	}
}

// invokeFunctionHandler dispatches a generic {"name": ..., "arguments": ...} function call.
func invokeFunctionHandler(fns *telephony.Functions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var call telephony.FunctionCall
		if !decodeLenient(w, r, &call) {
			return
		}

		out, err := fns.Invoke(r.Context(), practiceID(r), call)
		if err != nil {
			if errors.Is(err, telephony.ErrUnknownFunction) {
				writeError(w, http.StatusBadRequest, "unknown_function", err.Error())
				return
			}
			logging.FromContext(r.Context()).Warn().Err(err).Str("function", call.Name).Msg("bad function arguments")
			writeError(w, http.StatusBadRequest, "invalid_arguments", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, out)
	}
}
