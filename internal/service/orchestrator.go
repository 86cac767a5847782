package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	otelx "github.com/Strob0t/BotForge/internal/adapter/otel"
	"github.com/Strob0t/BotForge/internal/adapter/ws"
	"github.com/Strob0t/BotForge/internal/config"
	"github.com/Strob0t/BotForge/internal/domain"
	"github.com/Strob0t/BotForge/internal/domain/chatbot"
	"github.com/Strob0t/BotForge/internal/domain/conversation"
	"github.com/Strob0t/BotForge/internal/domain/plan"
	"github.com/Strob0t/BotForge/internal/domain/turn"
	"github.com/Strob0t/BotForge/internal/domain/usage"
	"github.com/Strob0t/BotForge/internal/port/broadcast"
	"github.com/Strob0t/BotForge/internal/port/database"
	"github.com/Strob0t/BotForge/internal/port/llm"
	"github.com/Strob0t/BotForge/internal/port/messagequeue"
	"github.com/Strob0t/BotForge/internal/resilience"
)

// degradedReply is returned when the model provider is unavailable after a
// retry. The user always gets a coherent answer, never a stack trace.
const degradedReply = "I'm having trouble answering right now. Please try again in a moment."

// capNote is appended when the tool-call ceiling forces completion.
const capNote = "\n\n(I had to stop consulting my tools to answer; the reply may be incomplete.)"

// Orchestrator drives one turn: gating, prompt assembly, streamed generation
// with a bounded tool-call loop, and metering.
type Orchestrator struct {
	store    database.Store
	provider llm.ChatProvider
	plans    *PlanService
	memory   *MemoryService
	tools    *ToolRegistry
	usage    *UsageService
	queue    messagequeue.Queue
	bcast    broadcast.Broadcaster
	metrics  *otelx.Metrics
	cfg      config.Agent
}

// NewOrchestrator creates a new Orchestrator. queue, bcast and metrics are
// optional.
func NewOrchestrator(
	store database.Store,
	provider llm.ChatProvider,
	plans *PlanService,
	memory *MemoryService,
	tools *ToolRegistry,
	usageSvc *UsageService,
	queue messagequeue.Queue,
	bcast broadcast.Broadcaster,
	metrics *otelx.Metrics,
	cfg config.Agent,
) *Orchestrator {
	return &Orchestrator{
		store:    store,
		provider: provider,
		plans:    plans,
		memory:   memory,
		tools:    tools,
		usage:    usageSvc,
		queue:    queue,
		bcast:    bcast,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// turnState carries one turn's mutable state through the phases.
type turnState struct {
	phase    turn.Phase
	req      turn.Request
	bot      *chatbot.Chatbot
	limits   plan.Limits
	conv     *conversation.Conversation
	tools    []Tool
	messages []llm.Message
	meta     turn.Metadata
	started  time.Time
}

// HandleTurn runs one turn. Deltas stream to sink as they are generated; the
// returned Result carries the assembled answer and consumption metadata.
// Only configuration and quota errors abort the turn; provider failures after
// gating produce a degraded completion with partial usage still billed.
func (o *Orchestrator) HandleTurn(ctx context.Context, req turn.Request, sink turn.Sink) (*turn.Result, error) {
	st := &turnState{phase: turn.PhaseGating, req: req, started: time.Now()}

	ctx, span := otelx.StartTurnSpan(ctx, req.ChatbotID, req.SessionID)
	defer span.End()

	if o.metrics != nil {
		o.metrics.TurnsStarted.Add(ctx, 1)
	}

	if err := o.gate(ctx, st); err != nil {
		if o.metrics != nil {
			o.metrics.TurnsFailed.Add(ctx, 1)
		}
		return nil, err
	}

	// Manual mode: a human operator owns the conversation. The message is
	// stored for the operator but no generation happens.
	if st.conv.Mode == conversation.ModeManual {
		if _, err := o.memory.Append(ctx, st.conv.ID, conversation.RoleUser, req.Content); err != nil {
			return nil, err
		}
		return &turn.Result{ConversationID: st.conv.ID, Handoff: true}, nil
	}

	if err := o.assemble(ctx, st); err != nil {
		return nil, err
	}

	result, err := o.generate(ctx, st, sink)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			o.billAbandoned(ctx, st)
		}
		return nil, err
	}

	o.finish(ctx, st, result)
	return result, nil
}

// billAbandoned meters usage incurred before a client cancelled mid-turn.
// Tokens and tool credits from completed iterations stand even though no
// reply is delivered; RecordTurn detaches from the dead request context.
func (o *Orchestrator) billAbandoned(ctx context.Context, st *turnState) {
	if st.meta.TokensUsed == 0 && st.meta.ToolsExecuted == 0 {
		return
	}
	o.usage.RecordTurn(ctx, st.bot.ID, usage.Delta{
		TokensIn:  st.meta.TokensUsed,
		ToolCalls: int64(st.meta.ToolsExecuted),
		Credits:   st.meta.CreditsUsed,
	})
	ctx = context.WithoutCancel(ctx)
	if o.metrics != nil {
		o.metrics.TurnsFailed.Add(ctx, 1)
		o.metrics.TokensUsed.Add(ctx, st.meta.TokensUsed)
		o.metrics.CreditsUsed.Add(ctx, st.meta.CreditsUsed)
	}
}

// gate validates the tenant, lifecycle state, plan and quota. No model cost
// is incurred before this passes.
func (o *Orchestrator) gate(ctx context.Context, st *turnState) error {
	if err := chatbot.ValidateID(st.req.ChatbotID); err != nil {
		return err
	}

	bot, err := o.store.GetChatbot(ctx, st.req.ChatbotID)
	if err != nil {
		return err
	}
	if bot.Status != chatbot.StatusActive {
		return fmt.Errorf("chatbot %s is %s, not active: %w", bot.ID, bot.Status, domain.ErrValidation)
	}
	st.bot = bot

	// Tier is resolved fresh per turn; upgrades and downgrades apply mid-session.
	limits, err := o.plans.Resolve(plan.Tier(bot.PlanTier))
	if err != nil {
		return err
	}
	st.limits = limits

	if err := o.usage.CheckQuota(ctx, bot.ID, limits); err != nil {
		return err
	}

	conv, err := o.store.GetOrCreateConversation(ctx, bot.ID, st.req.SessionID)
	if err != nil {
		return err
	}
	st.conv = conv
	return nil
}

// assemble builds the tool set, the system prompt and the bounded history
// window, then appends the inbound message.
func (o *Orchestrator) assemble(ctx context.Context, st *turnState) error {
	st.phase = turn.PhasePromptAssembly

	tools, err := o.tools.ForTurn(st.limits, st.req.Anonymous, ToolContext{
		ChatbotID:      st.bot.ID,
		ConversationID: st.conv.ID,
	})
	if err != nil {
		return err
	}
	st.tools = tools

	system, err := BuildSystemPrompt(st.bot, st.tools, st.limits)
	if err != nil {
		return err
	}

	history, err := o.memory.Window(ctx, st.conv.ID)
	if err != nil {
		return err
	}

	if _, err := o.memory.Append(ctx, st.conv.ID, conversation.RoleUser, st.req.Content); err != nil {
		return err
	}

	st.messages = make([]llm.Message, 0, len(history)+2)
	st.messages = append(st.messages, llm.Message{Role: "system", Content: system})
	for _, m := range history {
		st.messages = append(st.messages, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	st.messages = append(st.messages, llm.Message{Role: "user", Content: st.req.Content})
	return nil
}

// generate runs the model with the tool loop until a final answer, the
// iteration ceiling, or an unrecoverable provider failure.
func (o *Orchestrator) generate(ctx context.Context, st *turnState, sink turn.Sink) (*turn.Result, error) {
	st.phase = turn.PhaseGenerating

	model := st.bot.Model
	if model == "" || !st.limits.AllowsModel(model) {
		model = o.cfg.DefaultModel
	}

	defs := make([]llm.ToolDef, 0, len(st.tools))
	for _, t := range st.tools {
		defs = append(defs, t.Def)
	}

	onDelta := func(delta string) error {
		if sink != nil {
			sink(delta)
		}
		if o.bcast != nil {
			o.bcast.BroadcastEvent(ctx, st.bot.ID, ws.EventTurnDelta, ws.TurnDeltaEvent{
				ChatbotID:      st.bot.ID,
				ConversationID: st.conv.ID,
				Delta:          delta,
			})
		}
		return nil
	}

	var answer string
	capped := false

	for iteration := 0; ; iteration++ {
		res, err := o.chat(ctx, llm.ChatRequest{Model: model, Messages: st.messages, Tools: defs}, onDelta)
		if err != nil {
			// Client cancellation stops the turn; HandleTurn bills any
			// usage already incurred before propagating the error.
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			slog.Error("provider failed after retry", "chatbot_id", st.bot.ID, "error", err)
			return o.degraded(st, sink), nil
		}

		st.meta.TokensUsed += res.Usage.PromptTokens + res.Usage.CompletionTokens

		if len(res.ToolCalls) == 0 {
			answer = res.Content
			break
		}

		if iteration+1 >= o.cfg.MaxToolIterations {
			capped = true
			answer = res.Content + capNote
			break
		}

		st.phase = turn.PhaseToolCall
		st.messages = append(st.messages, llm.Message{
			Role:      "assistant",
			Content:   res.Content,
			ToolCalls: res.ToolCalls,
		})
		st.messages = append(st.messages, o.executeTools(ctx, st, res.ToolCalls)...)
		st.phase = turn.PhaseGenerating
	}

	st.phase = turn.PhaseCompleted
	if capped {
		slog.Warn("tool-call ceiling reached", "chatbot_id", st.bot.ID, "iterations", o.cfg.MaxToolIterations)
	}

	return &turn.Result{
		ConversationID: st.conv.ID,
		Answer:         answer,
		Metadata:       st.meta,
	}, nil
}

// chat calls the provider with a per-call timeout and one retry.
func (o *Orchestrator) chat(ctx context.Context, req llm.ChatRequest, onDelta func(string) error) (*llm.ChatResult, error) {
	var res *llm.ChatResult
	err := resilience.RetryOnce(ctx, 500*time.Millisecond, func(ctx context.Context) error {
		callCtx := ctx
		if o.cfg.ProviderTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, o.cfg.ProviderTimeout)
			defer cancel()
		}
		var callErr error
		res, callErr = o.provider.ChatStream(callCtx, req, onDelta)
		return callErr
	})
	return res, err
}

// executeTools runs one generation step's tool calls with bounded fan-out.
// Tool failures never propagate; the model sees a natural-language error
// string and decides how to respond.
func (o *Orchestrator) executeTools(ctx context.Context, st *turnState, calls []llm.ToolCall) []llm.Message {
	byName := make(map[string]Tool, len(st.tools))
	for _, t := range st.tools {
		byName[t.Def.Name] = t
	}

	type outcome struct {
		msg     llm.Message
		success bool
	}
	results := make([]outcome, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.cfg.ToolParallelism, 1))

	// Goroutines write only their own slot; turn metadata is accumulated
	// serially after the join.
	for i, call := range calls {
		g.Go(func() error {
			msg, ok := o.executeTool(gctx, st, byName, call)
			results[i] = outcome{msg: msg, success: ok}
			return nil
		})
	}
	_ = g.Wait()

	msgs := make([]llm.Message, 0, len(calls))
	for i, call := range calls {
		msgs = append(msgs, results[i].msg)
		st.meta.ToolsExecuted++
		st.meta.ToolNames = append(st.meta.ToolNames, call.Name)
		st.meta.CreditsUsed++
		if o.metrics != nil {
			o.metrics.ToolCalls.Add(ctx, 1)
		}
		if call.Name == plan.ToolRequestHandoff && results[i].success {
			st.conv.Mode = conversation.ModeManual
		}
	}
	return msgs
}

func (o *Orchestrator) executeTool(ctx context.Context, st *turnState, byName map[string]Tool, call llm.ToolCall) (llm.Message, bool) {
	msg := llm.Message{Role: "tool", ToolCallID: call.ID, Name: call.Name}

	ctx, span := otelx.StartToolCallSpan(ctx, call.ID, call.Name)
	defer span.End()

	inv := &usage.ToolInvocation{
		ChatbotID:      st.bot.ID,
		ConversationID: st.conv.ID,
		Tool:           call.Name,
		Success:        true,
	}

	tool, ok := byName[call.Name]
	if !ok {
		inv.Success = false
		inv.Error = "tool not available"
		msg.Content = fmt.Sprintf("The tool %q is not available on this plan.", call.Name)
	} else {
		out, err := tool.Execute(ctx, json.RawMessage(call.Arguments))
		if err != nil {
			inv.Success = false
			inv.Error = err.Error()
			msg.Content = fmt.Sprintf("The %s tool failed: %s. Answer as best you can without it.", call.Name, err)
			slog.Warn("tool execution failed", "tool", call.Name, "chatbot_id", st.bot.ID, "error", err)
		} else {
			msg.Content = out
		}
	}

	o.usage.RecordToolInvocation(ctx, inv)
	return msg, inv.Success
}

// degraded maps an unrecoverable provider failure to a user-visible fallback
// completion. Usage incurred before the failure is still recorded by finish.
func (o *Orchestrator) degraded(st *turnState, sink turn.Sink) *turn.Result {
	st.phase = turn.PhaseFailed
	if sink != nil {
		sink(degradedReply)
	}
	return &turn.Result{
		ConversationID: st.conv.ID,
		Answer:         degradedReply,
		Degraded:       true,
		Metadata:       st.meta,
	}
}

// finish persists the assistant reply, bills the turn and fans out events.
// It runs on a context detached from the request so a client disconnect
// mid-stream cannot skip billing.
func (o *Orchestrator) finish(ctx context.Context, st *turnState, result *turn.Result) {
	ctx = context.WithoutCancel(ctx)

	if result.Answer != "" {
		if _, err := o.memory.Append(ctx, st.conv.ID, conversation.RoleAssistant, result.Answer); err != nil {
			slog.Error("persist assistant reply", "conversation_id", st.conv.ID, "error", err)
		}
	}

	result.Handoff = result.Handoff || st.conv.Mode == conversation.ModeManual
	result.Metadata = st.meta

	o.usage.RecordTurn(ctx, st.bot.ID, usage.Delta{
		TokensIn:  st.meta.TokensUsed, // prompt+completion split is provider detail; meter totals
		ToolCalls: int64(st.meta.ToolsExecuted),
		Credits:   st.meta.CreditsUsed,
	})
	result.Metadata.EstimatedCost = float64(st.meta.TokensUsed) / 1000 * o.cfg.CostPerKiloToken

	if o.metrics != nil {
		o.metrics.TurnsCompleted.Add(ctx, 1)
		if result.Degraded {
			o.metrics.TurnsDegraded.Add(ctx, 1)
		}
		o.metrics.TokensUsed.Add(ctx, st.meta.TokensUsed)
		o.metrics.CreditsUsed.Add(ctx, st.meta.CreditsUsed)
		o.metrics.TurnDuration.Record(ctx, time.Since(st.started).Seconds())
	}

	if o.queue != nil {
		payload, err := json.Marshal(messagequeue.TurnCompletedPayload{
			ChatbotID:      st.bot.ID,
			ConversationID: st.conv.ID,
			SessionID:      st.req.SessionID,
			Answer:         result.Answer,
			Degraded:       result.Degraded,
			TokensUsed:     st.meta.TokensUsed,
			ToolsExecuted:  st.meta.ToolsExecuted,
			ToolNames:      st.meta.ToolNames,
			CreditsUsed:    st.meta.CreditsUsed,
		})
		if err == nil {
			if err := o.queue.Publish(ctx, messagequeue.SubjectTurnCompleted, payload); err != nil {
				slog.Error("publish turn completed", "conversation_id", st.conv.ID, "error", err)
			}
		}
	}

	if o.bcast != nil {
		o.bcast.BroadcastEvent(ctx, st.bot.ID, ws.EventTurnCompleted, ws.TurnCompletedEvent{
			ChatbotID:      st.bot.ID,
			ConversationID: st.conv.ID,
			Degraded:       result.Degraded,
			TokensUsed:     st.meta.TokensUsed,
			ToolsExecuted:  st.meta.ToolsExecuted,
		})
	}
}
