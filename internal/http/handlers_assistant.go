package http

import (
	"net/http"

	"bizbalance/internal/assistant"
	applog "bizbalance/internal/log"
)

type suggestResponse struct {
	Category string `json:"category"`
}

// handleSuggestCategory answers {"category": ""} when no suggestion is
// available; the form then keeps whatever the user typed.
func (s *Server) handleSuggestCategory(w http.ResponseWriter, r *http.Request, ownerID string) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}
	ctx := r.Context()
	s.appMetrics.suggestions.Add(1)

	desc := p.Get("description")
	category := ""
	if desc != "" && s.assistant != nil {
		category = s.assistant.Suggest(ctx, desc, s.ledger.Categories(ctx, ownerID))
	}

	applog.FromContext(ctx).DebugContext(ctx, "Category suggested",
		applog.FieldOwnerID, ownerID,
		applog.FieldOperation, applog.OpSuggest,
		applog.FieldCategory, category)
	writeJSON(w, http.StatusOK, suggestResponse{Category: category})
}

type converseResponse struct {
	Reply string `json:"reply"`
}

type chatTurn struct {
	Prompt string
	Reply  string
}

// handleConverse runs one chat turn. The client resends the whole history
// each time; the current transactions are attached as the snapshot.
func (s *Server) handleConverse(w http.ResponseWriter, r *http.Request, ownerID string) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.rejectInput(w, r, http.StatusBadRequest, "Formato de requisição inválido", err)
		return
	}
	req, err := ParseConverse(p)
	if err != nil {
		s.rejectInput(w, r, http.StatusBadRequest, "Histórico de conversa inválido", err)
		return
	}
	if req.Message == "" {
		s.rejectInput(w, r, http.StatusUnprocessableEntity, "Digite uma mensagem", errBadInput)
		return
	}
	s.appMetrics.conversations.Add(1)

	txs, err := s.ledger.Transactions(ctx, ownerID)
	if err != nil {
		// The agent still answers, just without figures.
		logger.WarnContext(ctx, "Conversing without transaction snapshot",
			applog.FieldError, err,
			applog.FieldOwnerID, ownerID)
		txs = nil
	}

	reply := assistant.Apology
	if s.assistant != nil {
		reply = s.assistant.Converse(ctx, req.History, req.Message, txs)
	}

	logger.DebugContext(ctx, "Agent turn completed",
		applog.FieldOwnerID, ownerID,
		applog.FieldOperation, applog.OpConverse,
		"history_len", len(req.History))

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, converseResponse{Reply: reply})
		return
	}
	s.render(w, r, http.StatusOK, "chat_turn", chatTurn{Prompt: req.Message, Reply: reply})
}
