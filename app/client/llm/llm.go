package llm

import (
	"context"

	"pairtalk/app/config"
	"pairtalk/app/util/apperr"

	"github.com/samber/do"
)

const domain = "llm"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Completer turns a chat transcript into the next assistant message.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

func NewClient(di *do.Injector) (Completer, error) {
	cfg := do.MustInvoke[*config.Config](di)

	switch cfg.LLM.Provider {
	case "openai":
		return NewOpenAI(cfg.LLM), nil
	case "langchain":
		return NewLangChain(cfg.LLM)
	case "scripted":
		marker := ""
		if len(cfg.Mediation.SummaryMarkers) > 0 {
			marker = cfg.Mediation.SummaryMarkers[0]
		}
		return NewScripted(cfg.LLM.ScriptedTurns, marker), nil
	default:
		return nil, apperr.Validation(domain, "unknown llm provider %q", cfg.LLM.Provider)
	}
}
