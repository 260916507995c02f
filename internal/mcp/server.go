package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/dhofer/mcp-server-kontomanager/internal/config"
	"github.com/dhofer/mcp-server-kontomanager/internal/portal"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Server wires the MCP runtime to the portal session client.
type Server struct {
	cfg       config.Config
	client    *portal.Client
	tools     map[string]Tool
	mcpServer *mcpserver.MCPServer
}

// Tool describes the contract for MCP tool implementations.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// BinaryResult is returned by tools that produce a binary payload (bill
// PDFs) instead of a JSON record.
type BinaryResult struct {
	URI      string
	MIMEType string
	Data     []byte
}

// NewServer constructs the Kontomanager MCP server and registers all tools.
func NewServer(cfg config.Config, client *portal.Client) (*Server, error) {
	mcpSrv := mcpserver.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithLogging(),
		mcpserver.WithRecovery(),
	)

	server := &Server{
		cfg:       cfg,
		client:    client,
		tools:     make(map[string]Tool),
		mcpServer: mcpSrv,
	}

	server.registerAllTools()
	return server, nil
}

// Start launches the stdio server (Claude/Gemini CLI default).
func (s *Server) Start(ctx context.Context) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// StartSSE hosts the server over HTTP using SSE endpoints with graceful
// shutdown.
func (s *Server) StartSSE(ctx context.Context, port int) error {
	sseServer := mcpserver.NewSSEServer(s.mcpServer, mcpserver.WithBaseURL("http://localhost:"+strconv.Itoa(port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Printf("SSE server shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// ExecuteTool executes a tool directly (used by tests).
func (s *Server) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	tool, exists := s.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool.Execute(ctx, args)
}

func (s *Server) registerAllTools() {
	// Data retrieval
	s.registerTool(&GetAccountUsageTool{client: s.client})
	s.registerTool(&GetPhoneNumbersTool{client: s.client})
	s.registerTool(&ListBillsTool{client: s.client})
	s.registerTool(&DownloadBillTool{client: s.client})
	s.registerTool(&GetCallHistoryTool{client: s.client})
	s.registerTool(&GetSimSettingsTool{client: s.client})
	s.registerTool(&GetCallForwardingSettingsTool{client: s.client})

	// Actions
	s.registerTool(&SwitchActivePhoneNumberTool{client: s.client})
	s.registerTool(&SetSimSettingTool{client: s.client})
	s.registerTool(&SetCallForwardingRuleTool{client: s.client})
	s.registerTool(&ToggleRoamingTool{client: s.client})
}

func (s *Server) registerTool(tool Tool) {
	s.tools[tool.Name()] = tool

	schema, err := json.Marshal(tool.InputSchema())
	if err != nil {
		schema = json.RawMessage(`{"type":"object"}`)
	}

	mcpTool := mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema)
	s.mcpServer.AddTool(mcpTool, s.wrapTool(tool))
}

func (s *Server) wrapTool(tool Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}

		result, err := tool.Execute(ctx, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(formatToolError(tool.Name(), err))},
				IsError: true,
			}, nil
		}

		if bin, ok := result.(*BinaryResult); ok {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewEmbeddedResource(mcp.BlobResourceContents{
					URI:      bin.URI,
					MIMEType: bin.MIMEType,
					Blob:     base64.StdEncoding.EncodeToString(bin.Data),
				})},
				IsError: false,
			}, nil
		}

		payload := marshalToolPayload(tool.Name(), result)
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(string(payload))},
			IsError: false,
		}, nil
	}
}

// formatToolError prefixes the failure with its error kind so the caller can
// tell "your settings may be half-changed" apart from "nothing happened".
func formatToolError(toolName string, err error) string {
	return fmt.Sprintf("tool %s failed (%s): %v", toolName, errorKind(err), err)
}

func errorKind(err error) string {
	var (
		cfgErr      *config.ConfigurationError
		authErr     *portal.AuthenticationError
		netErr      *portal.TransientNetworkError
		parseErr    *portal.ParseError
		settingErr  *portal.UnknownSettingError
		subErr      *portal.InvalidSubscriberError
		validErr    *portal.ValidationError
		verifyErr   *portal.MutationVerificationError
		notFoundErr *portal.NotFoundError
	)
	switch {
	case errors.As(err, &cfgErr):
		return "configuration_error"
	case errors.As(err, &authErr):
		return "authentication_error"
	case errors.As(err, &netErr):
		return "transient_network_error"
	case errors.As(err, &parseErr):
		return "parse_error"
	case errors.As(err, &settingErr):
		return "unknown_setting_error"
	case errors.As(err, &subErr):
		return "invalid_subscriber_error"
	case errors.As(err, &validErr):
		return "validation_error"
	case errors.As(err, &verifyErr):
		return "mutation_verification_error"
	case errors.As(err, &notFoundErr):
		return "not_found_error"
	default:
		return "internal_error"
	}
}

func marshalToolPayload(toolName string, result interface{}) []byte {
	payload, marshalErr := json.Marshal(result)
	if marshalErr == nil {
		return payload
	}

	fallback := map[string]interface{}{
		"success": false,
		"error":   fmt.Sprintf("tool %s returned non-serializable payload: %v", toolName, marshalErr),
	}
	payload, fallbackErr := json.Marshal(fallback)
	if fallbackErr == nil {
		return payload
	}

	return []byte(fmt.Sprintf(`{"success":false,"error":"tool %s failed to encode payload"}`, toolName))
}
