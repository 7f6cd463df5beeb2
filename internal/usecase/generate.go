package usecase

import (
	"context"
	"log/slog"
	"strings"

	"formula-agent/internal/dialogue"
	"formula-agent/internal/domain"
)

// respond asks the generator for the next reply. commit reports whether the
// pending answer should be stored: only when the reply moved past the slot
// being answered, and never after a tool detour.
func (s *ChatService) respond(ctx context.Context, log *slog.Logger, messages []domain.ChatMessage, directive dialogue.Directive, form domain.FormState, pending string) (domain.Reply, bool, error) {
	req := domain.ChatRequest{Model: s.openaiModel, Messages: messages}
	if s.tools != nil {
		req.Tools = s.tools.Definitions()
	}
	completion, err := s.llm.Chat(ctx, req)
	if err != nil {
		return domain.Reply{}, false, upstreamError("openai", err)
	}

	if len(completion.ToolCalls) > 0 && s.tools != nil {
		reply, err := s.detour(ctx, log, messages, completion, directive, form)
		return reply, false, err
	}

	canCommit := pending != "" && !directive.Done
	reply, err := s.parseOrReformat(ctx, log, messages, completion.Content)
	if err != nil {
		log.Warn("generation unusable, using default question", "error", err)
		next := form
		if canCommit {
			next = form.With(directive.Slot.Key, pending)
		}
		return s.registry.NextQuestion(next), canCommit, nil
	}
	advanced := reply.IsComplete || reply.Component != directive.Slot.Key
	return reply, canCommit && advanced, nil
}

// parseOrReformat parses raw and, on failure, asks the generator once to
// restate its answer as JSON.
func (s *ChatService) parseOrReformat(ctx context.Context, log *slog.Logger, messages []domain.ChatMessage, raw string) (domain.Reply, error) {
	reply, err := parseReply(raw, s.registry)
	if err == nil {
		return reply, nil
	}
	log.Info("reply not parseable, requesting reformat", "error", err)

	retry := append(cloneMessages(messages),
		domain.ChatMessage{Role: roleAssistant, Content: raw},
		domain.ChatMessage{Role: roleUser, Content: reformatInstruction()},
	)
	completion, err := s.llm.Chat(ctx, domain.ChatRequest{Model: s.openaiModel, Messages: retry, JSONObject: true})
	if err != nil {
		return domain.Reply{}, err
	}
	return parseReply(completion.Content, s.registry)
}

// detour runs the requested tools, replays their output to the generator
// together with the resume directive and keeps the reply on the pending slot.
func (s *ChatService) detour(ctx context.Context, log *slog.Logger, messages []domain.ChatMessage, completion domain.Completion, directive dialogue.Directive, form domain.FormState) (domain.Reply, error) {
	var d dialogue.Detour
	if err := d.Request(completion.ToolCalls[0], directive); err != nil {
		return domain.Reply{}, newError(ErrorUpstream, "openai_invalid_tool_call", err)
	}

	followUp := cloneMessages(messages)
	followUp = append(followUp, domain.ChatMessage{Role: roleAssistant, Content: completion.Content, ToolCalls: completion.ToolCalls})
	results := make([]string, 0, len(completion.ToolCalls))
	for _, call := range completion.ToolCalls {
		out := s.tools.Execute(ctx, call)
		log.Info("tool executed", "tool", call.Function.Name, "resume_component", directive.Slot.Key)
		followUp = append(followUp, domain.ChatMessage{Role: roleTool, ToolCallID: call.ID, Content: out})
		results = append(results, out)
	}
	if err := d.Inject(strings.Join(results, "\n")); err != nil {
		return domain.Reply{}, newError(ErrorInternal, "detour_state_error", err)
	}
	followUp = insertAfterFirstSystem(followUp, domain.ChatMessage{Role: roleSystem, Content: resumeReminder(directive, form)})

	second, err := s.llm.Chat(ctx, domain.ChatRequest{Model: s.openaiModel, Messages: followUp, JSONObject: true})
	if err != nil {
		return domain.Reply{}, upstreamError("openai", err)
	}
	reply, perr := parseReply(second.Content, s.registry)
	if perr != nil {
		log.Warn("reply after tool call not parseable", "error", perr)
		if directive.Done {
			reply = s.registry.NextQuestion(form)
			reply.Text = d.Result() + "\n\n" + reply.Text
		}
	}
	resolved, kept, err := d.Resolve(reply)
	if err != nil {
		return domain.Reply{}, newError(ErrorInternal, "detour_state_error", err)
	}
	if !kept {
		log.Warn("reply after tool call left the pending component", "component", reply.Component, "resume_component", d.Target().Slot.Key)
	}
	return resolved, nil
}

func cloneMessages(in []domain.ChatMessage) []domain.ChatMessage {
	return append(make([]domain.ChatMessage, 0, len(in)+3), in...)
}

func insertAfterFirstSystem(messages []domain.ChatMessage, m domain.ChatMessage) []domain.ChatMessage {
	at := 0
	for i, msg := range messages {
		if msg.Role == roleSystem {
			at = i + 1
			break
		}
	}
	out := make([]domain.ChatMessage, 0, len(messages)+1)
	out = append(out, messages[:at]...)
	out = append(out, m)
	return append(out, messages[at:]...)
}
