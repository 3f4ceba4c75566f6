package app

import (
	"fmt"

	"github.com/yungbote/codeflow-backend/internal/judge"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
	"github.com/yungbote/codeflow-backend/internal/platform/neo4jdb"
	"github.com/yungbote/codeflow-backend/internal/realtime/bus"
)

type Clients struct {
	Bus   bus.Bus
	Graph *neo4jdb.Client
	// Judge is nil when JUDGE_URL is unset; /submit then answers 503.
	Judge judge.Executor
}

// eventBusKind names the wakeup transport wireClients picks.
func eventBusKind(redisAddr string) string {
	if redisAddr != "" {
		return "redis"
	}
	return "memory"
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	var b bus.Bus
	if cfg.RedisAddr != "" {
		rb, err := bus.NewRedisBus(log, bus.RedisConfig{Addr: cfg.RedisAddr, Channel: cfg.RedisChannel})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis bus: %w", err)
		}
		b = rb
	} else {
		log.Warn("REDIS_ADDR not set; wakeups stay in-process")
		b = bus.NewMemory()
	}

	graph, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		_ = b.Close()
		return Clients{}, fmt.Errorf("init neo4j: %w", err)
	}

	var exec judge.Executor
	if cfg.JudgeURL != "" {
		exec = judge.NewGoJudgeClient(log, cfg.JudgeURL, cfg.JudgeTimeout)
	} else {
		log.Warn("JUDGE_URL not set; code submission disabled")
	}

	return Clients{Bus: b, Graph: graph, Judge: exec}, nil
}
