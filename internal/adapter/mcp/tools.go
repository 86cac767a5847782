package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/BotForge/internal/domain/plan"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.listChatbotsTool(),
		s.getChatbotTool(),
		s.getUsageTool(),
		s.searchKnowledgeTool(),
		s.getPlanLimitsTool(),
	)
}

func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}

func (s *Server) listChatbotsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_chatbots",
		mcplib.WithDescription("List all chatbots owned by an account"),
		mcplib.WithString("account_id",
			mcplib.Required(),
			mcplib.Description("The account whose chatbots to list"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListChatbots,
	}
}

func (s *Server) getChatbotTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_chatbot",
		mcplib.WithDescription("Get details of a specific chatbot by ID"),
		mcplib.WithString("chatbot_id",
			mcplib.Required(),
			mcplib.Description("The chatbot ID to look up"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetChatbot,
	}
}

func (s *Server) getUsageTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_usage",
		mcplib.WithDescription("Get the metered usage record for a chatbot"),
		mcplib.WithString("chatbot_id",
			mcplib.Required(),
			mcplib.Description("The chatbot whose usage to read"),
		),
		mcplib.WithString("period",
			mcplib.Description("Billing period as YYYY-MM, defaults to the current month"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetUsage,
	}
}

func (s *Server) searchKnowledgeTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("search_knowledge",
		mcplib.WithDescription("Preview a retrieval query against a chatbot's knowledge base"),
		mcplib.WithString("chatbot_id",
			mcplib.Required(),
			mcplib.Description("The chatbot whose knowledge base to search"),
		),
		mcplib.WithString("query",
			mcplib.Required(),
			mcplib.Description("The search query text"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleSearchKnowledge,
	}
}

func (s *Server) getPlanLimitsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_plan_limits",
		mcplib.WithDescription("Get the limits of a subscription plan tier"),
		mcplib.WithString("tier",
			mcplib.Required(),
			mcplib.Description("The plan tier: free, starter, pro or enterprise"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetPlanLimits,
	}
}

func (s *Server) handleListChatbots(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Chatbots == nil {
		return mcplib.NewToolResultError("chatbot reader not configured"), nil
	}
	args := req.GetArguments()
	accountID, ok := args["account_id"].(string)
	if !ok || accountID == "" {
		return mcplib.NewToolResultError("account_id is required"), nil
	}
	bots, err := s.deps.Chatbots.List(ctx, accountID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list chatbots", err), nil
	}
	data, err := json.Marshal(bots)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal chatbots", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetChatbot(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Chatbots == nil {
		return mcplib.NewToolResultError("chatbot reader not configured"), nil
	}
	args := req.GetArguments()
	chatbotID, ok := args["chatbot_id"].(string)
	if !ok || chatbotID == "" {
		return mcplib.NewToolResultError("chatbot_id is required"), nil
	}
	bot, err := s.deps.Chatbots.Get(ctx, chatbotID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get chatbot %s", chatbotID), err,
		), nil
	}
	data, err := json.Marshal(bot)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal chatbot", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetUsage(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Usage == nil {
		return mcplib.NewToolResultError("usage reader not configured"), nil
	}
	args := req.GetArguments()
	chatbotID, ok := args["chatbot_id"].(string)
	if !ok || chatbotID == "" {
		return mcplib.NewToolResultError("chatbot_id is required"), nil
	}
	period, _ := args["period"].(string)
	rec, err := s.deps.Usage.Get(ctx, chatbotID, period)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get usage for chatbot %s", chatbotID), err,
		), nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal usage record", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleSearchKnowledge(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Knowledge == nil {
		return mcplib.NewToolResultError("knowledge searcher not configured"), nil
	}
	args := req.GetArguments()
	chatbotID, ok := args["chatbot_id"].(string)
	if !ok || chatbotID == "" {
		return mcplib.NewToolResultError("chatbot_id is required"), nil
	}
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcplib.NewToolResultError("query is required"), nil
	}
	chunks, err := s.deps.Knowledge.Search(ctx, chatbotID, query)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("knowledge search failed", err), nil
	}
	data, err := json.Marshal(chunks)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal search results", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetPlanLimits(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Plans == nil {
		return mcplib.NewToolResultError("plan resolver not configured"), nil
	}
	args := req.GetArguments()
	tier, ok := args["tier"].(string)
	if !ok || tier == "" {
		return mcplib.NewToolResultError("tier is required"), nil
	}
	limits, err := s.deps.Plans.Resolve(plan.Tier(tier))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to resolve tier %s", tier), err,
		), nil
	}
	data, err := json.Marshal(limits)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal plan limits", err), nil
	}
	return toolResultJSON(string(data)), nil
}
