// Package notify pushes terminal pipeline events to a Telegram chat so an
// operator hears about finished and failed simulations without watching
// the websocket stream.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nats-io/nats.go"

	"github.com/dkoutsos/agentsim/internal/config"
	"github.com/dkoutsos/agentsim/internal/model"
	"github.com/dkoutsos/agentsim/internal/natsbus"
)

type Notifier struct {
	bot  *telego.Bot
	nats *natsbus.Client
	cfg  config.TelegramConfig
	sub  *nats.Subscription
}

func New(cfg config.TelegramConfig, bus *natsbus.Bus) (*Notifier, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	client, err := natsbus.NewClient(bus)
	if err != nil {
		return nil, fmt.Errorf("notifier nats client: %w", err)
	}

	return &Notifier{bot: bot, nats: client, cfg: cfg}, nil
}

// Start subscribes to the simulation event stream and returns immediately;
// delivery happens on the bus subscription goroutine.
func (n *Notifier) Start(ctx context.Context) error {
	sub, err := n.nats.Subscribe(natsbus.TopicEventsSimulation, func(msg *nats.Msg) {
		var ev model.SimulationEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}

		text := formatEvent(ev)
		if text == "" {
			return
		}
		if err := n.send(ctx, text); err != nil {
			slog.Error("telegram notification failed", "simulation", ev.SimulationID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe simulation events: %w", err)
	}
	n.sub = sub
	return nil
}

func (n *Notifier) Close() {
	if n.sub != nil {
		_ = n.sub.Unsubscribe()
	}
	n.nats.Close()
}

// formatEvent renders terminal events only; intermediate stage transitions
// return "" and are not forwarded.
func formatEvent(ev model.SimulationEvent) string {
	switch ev.EventType {
	case model.EventSimulationCompleted:
		return fmt.Sprintf("✅ Simulation %s completed", ev.SimulationID)
	case model.EventStageFailed:
		stage, _ := ev.Payload["stage"].(string)
		if stage == "" {
			stage = "unknown"
		}
		return fmt.Sprintf("❌ Simulation %s failed at stage %s", ev.SimulationID, stage)
	default:
		return ""
	}
}

func (n *Notifier) send(ctx context.Context, text string) error {
	for _, chunk := range chunkMessage(text, 4096) {
		msg := tu.Message(tu.ID(n.cfg.ChatID), chunk)
		if _, err := n.bot.SendMessage(ctx, msg); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// chunkMessage splits a message into chunks that fit within Telegram's
// message size limit, preferring newline boundaries.
func chunkMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}

		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > maxLen/2 {
			cutAt = idx + 1
		}

		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}

	return chunks
}
