// Package thread rebuilds the conversation one partner sees from a session's interleaved log.
package thread

import (
	"iter"

	"pairtalk/app/service/store"
)

// OpenerRule decides which assistant entries may open a partner's thread before the partner has written.
type OpenerRule int

const (
	// OpenerAny takes the first assistant entry seen before anything else was included, whoever it was
	// addressed to, so the other partner's opener or reply can land in this partner's thread.
	OpenerAny OpenerRule = iota
	// OpenerOwn takes such an entry only when its author label is empty or names the partner.
	OpenerOwn
)

func ParseOpenerRule(value string) OpenerRule {
	if value == "any" {
		return OpenerAny
	}

	return OpenerOwn
}

type Partitioner struct {
	sharedAuthor string
	openerRule   OpenerRule
}

func NewPartitioner(sharedAuthor string, rule OpenerRule) *Partitioner {
	return &Partitioner{
		sharedAuthor: sharedAuthor,
		openerRule:   rule,
	}
}

// Seq lazily yields, in log order, the entries visible to partner.
func (p *Partitioner) Seq(log []*store.Message, partner string) iter.Seq[*store.Message] {
	return func(yield func(*store.Message) bool) {
		expectingReply := false
		included := 0

		for _, msg := range log {
			take := false

			switch {
			case msg.Role == store.RoleUser && msg.Author == partner:
				take = true
				expectingReply = true
			case msg.Role == store.RoleAssistant && expectingReply:
				take = true
				expectingReply = false
			case msg.Role == store.RoleAssistant && included == 0 && p.opens(msg, partner):
				take = true
			case msg.Author == p.sharedAuthor:
				take = true
			}

			if !take {
				continue
			}

			included++
			if !yield(msg) {
				return
			}
		}
	}
}

// For returns the entries visible to partner.
func (p *Partitioner) For(log []*store.Message, partner string) []*store.Message {
	result := make([]*store.Message, 0, len(log)/2+1)
	for msg := range p.Seq(log, partner) {
		result = append(result, msg)
	}

	return result
}

func (p *Partitioner) opens(msg *store.Message, partner string) bool {
	if p.openerRule == OpenerAny {
		return true
	}

	return msg.Author == "" || msg.Author == partner
}
