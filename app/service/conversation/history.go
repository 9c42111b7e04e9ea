package conversation

import (
	"pairtalk/app/client/llm"
	"pairtalk/app/service/store"

	"github.com/elliotchance/pie/v2"
)

func toCompletion(thread []*store.Message) []llm.Message {
	return pie.Map(thread, func(msg *store.Message) llm.Message {
		role := llm.RoleUser
		if msg.Role == store.RoleAssistant {
			role = llm.RoleAssistant
		}

		return llm.Message{
			Role:    role,
			Content: msg.Text,
		}
	})
}
