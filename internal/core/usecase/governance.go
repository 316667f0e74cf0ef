package usecase

import (
	"fmt"
	"strings"

	"github.com/tenantic/assistant-core/internal/core/domain"
)

const (
	// RetrievalScoreFloor is the similarity below which retrieval counts as
	// "no relevant evidence" rather than low-confidence evidence. Both
	// ranking strategies share it.
	RetrievalScoreFloor = 0.3
	// InternalConfidenceFloor is the minimum best-evidence score an
	// INTERNAL-mode agent requires to answer.
	InternalConfidenceFloor = 0.5
)

const (
	ReasonKillSwitch        = "kill switch engaged"
	ReasonCostLimit         = "daily cost limit reached"
	ReasonNoAllowedTopic    = "message does not match any allowed topic"
	ReasonNoEvidence        = "no evidence"
	ReasonLowConfidence     = "insufficient confidence"
	reasonForbiddenTopicFmt = "message matches forbidden topic: %s"
)

// Verdict is a governance outcome. Blocked verdicts are first-class results,
// not errors.
type Verdict struct {
	Allowed bool
	Reason  string
	// MatchedTopic is set when a topic rule decided the verdict.
	MatchedTopic string
}

func allow() Verdict {
	return Verdict{Allowed: true}
}

func block(reason string) Verdict {
	return Verdict{Reason: reason}
}

// Authorize evaluates the agent's circuit breakers before any external call.
func Authorize(agent *domain.Agent) Verdict {
	if agent.KillSwitch {
		return block(ReasonKillSwitch)
	}
	if agent.CostUsedToday >= agent.CostLimitDaily {
		return block(ReasonCostLimit)
	}
	return allow()
}

// CheckTopicContract applies the agent's topic policy to a message.
// Forbidden matches take precedence over allowed matches.
func CheckTopicContract(agent *domain.Agent, message string) Verdict {
	lowered := strings.ToLower(message)

	for _, topic := range agent.ForbiddenTopics {
		t := strings.ToLower(strings.TrimSpace(topic))
		if t == "" {
			continue
		}
		if strings.Contains(lowered, t) {
			v := block(fmt.Sprintf(reasonForbiddenTopicFmt, topic))
			v.MatchedTopic = topic
			return v
		}
	}

	if len(agent.AllowedTopics) == 0 {
		return allow()
	}
	for _, topic := range agent.AllowedTopics {
		t := strings.ToLower(strings.TrimSpace(topic))
		if t == "" {
			continue
		}
		if strings.Contains(lowered, t) {
			v := allow()
			v.MatchedTopic = topic
			return v
		}
	}
	return block(ReasonNoAllowedTopic)
}

// CheckMode evaluates whether retrieved evidence satisfies the agent's
// operating mode. FREE and HYBRID always pass; INTERNAL demands at least one
// evidence item whose best score clears the confidence floor.
func CheckMode(mode domain.AgentMode, evidence []domain.Evidence) Verdict {
	if mode != domain.ModeInternal {
		return allow()
	}
	if len(evidence) == 0 {
		return block(ReasonNoEvidence)
	}
	best := evidence[0].Score
	for _, ev := range evidence[1:] {
		if ev.Score > best {
			best = ev.Score
		}
	}
	if best < InternalConfidenceFloor {
		return block(ReasonLowConfidence)
	}
	return allow()
}
