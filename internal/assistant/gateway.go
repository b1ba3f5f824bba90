package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bizbalance/internal/core"
	applog "bizbalance/internal/log"
)

// Apology is the reply shown when the agent backend fails.
const Apology = "Desculpe, ocorreu um erro ao me comunicar com o assistente. Por favor, tente novamente."

const DefaultTimeout = 30 * time.Second

// Gateway wraps a Generator with the two product features. Neither method
// returns an error: failures are logged and mapped to fixed answers.
type Gateway struct {
	gen     Generator
	timeout time.Duration
	logger  *applog.Logger
}

func NewGateway(gen Generator, timeout time.Duration, logger *applog.Logger) *Gateway {
	if gen == nil {
		gen = Disabled{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &Gateway{gen: gen, timeout: timeout, logger: logger.WithComponent(applog.ComponentAssistant)}
}

const suggestSystem = `Você classifica transações financeiras de pequenas empresas.
Responda apenas com o nome de uma categoria, sem pontuação nem explicação.
Prefira uma das categorias existentes quando alguma servir.`

// Suggest proposes a category for description. A blank description returns
// "" without calling the backend; a backend failure also returns "". A reply
// matching a known category case-insensitively is returned in that spelling.
func (g *Gateway) Suggest(ctx context.Context, description string, categories []string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := fmt.Sprintf("Categorias existentes: %s\nDescrição da transação: %s\nCategoria:",
		strings.Join(categories, ", "), description)
	reply, err := g.gen.Generate(ctx, Request{System: suggestSystem, Prompt: prompt})
	if err != nil {
		g.logger.WarnContext(ctx, "Category suggestion failed",
			applog.FieldOperation, applog.OpSuggest,
			applog.FieldError, err)
		return ""
	}
	return normalizeCategory(reply, categories)
}

func normalizeCategory(reply string, categories []string) string {
	reply = strings.TrimSpace(reply)
	reply = strings.Trim(reply, "\"'`.")
	if i := strings.IndexByte(reply, '\n'); i >= 0 {
		reply = strings.TrimSpace(reply[:i])
	}
	for _, c := range categories {
		if strings.EqualFold(c, reply) {
			return c
		}
	}
	return reply
}

const agentSystem = `Você é o "BizBalance AI", um assistente financeiro amigável e prestativo. Sua tarefa é ajudar o usuário a entender suas finanças com base nas transações fornecidas. Seja conciso, útil e use um tom conversacional.

Aqui estão as transações do usuário no formato JSON:
` + "```json\n%s\n```"

// snapshotEntry is the JSON shape of a transaction shown to the agent.
type snapshotEntry struct {
	ID          string     `json:"id"`
	Type        core.Kind  `json:"type"`
	Description string     `json:"description"`
	Amount      core.Money `json:"amount"`
	Date        string     `json:"date"`
	Category    string     `json:"category"`
}

// Snapshot renders transactions as indented JSON with YYYY-MM-DD dates.
func Snapshot(txs []core.Transaction) (string, error) {
	entries := make([]snapshotEntry, 0, len(txs))
	for _, t := range txs {
		entries = append(entries, snapshotEntry{
			ID:          t.ID,
			Type:        t.Kind,
			Description: t.Description,
			Amount:      t.Amount,
			Date:        core.FormatDate(t.Date),
			Category:    t.Category,
		})
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Converse answers prompt given the prior history and the owner's
// transactions. Everything is sent on every call; nothing is remembered.
func (g *Gateway) Converse(ctx context.Context, history []core.Message, prompt string, txs []core.Transaction) string {
	snapshot, err := Snapshot(txs)
	if err != nil {
		g.logger.ErrorContext(ctx, "Failed to build transaction snapshot", applog.FieldError, err)
		return Apology
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	reply, err := g.gen.Generate(ctx, Request{
		System:  fmt.Sprintf(agentSystem, snapshot),
		History: history,
		Prompt:  prompt,
	})
	if err != nil {
		g.logger.ErrorContext(ctx, "Agent conversation failed",
			applog.FieldOperation, applog.OpConverse,
			applog.FieldError, err,
			applog.FieldDuration, time.Since(start).Milliseconds())
		return Apology
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		g.logger.WarnContext(ctx, "Agent returned a blank reply", applog.FieldOperation, applog.OpConverse)
		return Apology
	}
	g.logger.DebugContext(ctx, "Agent replied",
		"turns", len(history)+1,
		applog.FieldDuration, time.Since(start).Milliseconds())
	return reply
}
