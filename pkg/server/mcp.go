package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mikeboe/filesearch-dashboard/pkg/gemini"
	"github.com/mikeboe/filesearch-dashboard/pkg/session"
)

// MCPSession represents an MCP session
type MCPSession struct {
	ID      string
	Created int64
}

// MCPRequest represents an MCP JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an MCP JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents an MCP error
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// DefaultMCPSessionTTL bounds how long an MCP session id stays valid.
const DefaultMCPSessionTTL = 24 * time.Hour

// MCPServer exposes the stores reachable with the server key as MCP tools.
type MCPServer struct {
	Service    *Service
	SessionTTL time.Duration

	now      func() time.Time
	mu       sync.Mutex
	sessions map[string]*MCPSession
}

func NewMCPServer(s *Service) *MCPServer {
	return &MCPServer{
		Service:    s,
		SessionTTL: DefaultMCPSessionTTL,
		now:        time.Now,
		sessions:   make(map[string]*MCPSession),
	}
}

func (m *MCPServer) expired(sess *MCPSession, now time.Time) bool {
	return m.SessionTTL > 0 && now.Sub(time.Unix(sess.Created, 0)) > m.SessionTTL
}

// open registers a new session and drops the expired ones. Callers hold m.mu.
func (m *MCPServer) open(now time.Time) string {
	for id, sess := range m.sessions {
		if m.expired(sess, now) {
			delete(m.sessions, id)
		}
	}
	id := uuid.New().String()
	m.sessions[id] = &MCPSession{ID: id, Created: now.Unix()}
	return id
}

// valid reports whether id names a live session, forgetting it once expired.
func (m *MCPServer) valid(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return false
	}
	if m.expired(sess, m.now()) {
		delete(m.sessions, id)
		return false
	}
	return true
}

// Close ends the session named by the Mcp-Session-Id header.
func (m *MCPServer) Close(c *gin.Context) {
	id := c.GetHeader("Mcp-Session-Id")

	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	c.Status(http.StatusNoContent)
}

type ListDocumentsArgs struct {
	StoreID string `json:"store_id"`
}

type AskStoreArgs struct {
	StoreID                string `json:"store_id"`
	Query                  string `json:"query"`
	UseDefaultSystemPrompt *bool  `json:"use_default_system_prompt,omitempty"`
	Model                  string `json:"model,omitempty"`
}

// Handle handles MCP protocol requests
func (m *MCPServer) Handle(c *gin.Context) {
	sessionID := c.GetHeader("Mcp-Session-Id")

	var req MCPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, MCPResponse{
			JSONRPC: "2.0",
			ID:      nil,
			Error: &MCPError{
				Code:    -32700,
				Message: "Parse error",
			},
		})
		return
	}

	// Handle initialize request
	if req.Method == "initialize" {
		if sessionID == "" {
			m.mu.Lock()
			sessionID = m.open(m.now())
			m.mu.Unlock()
			c.Header("Mcp-Session-Id", sessionID)
		}

		c.JSON(http.StatusOK, MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: map[string]interface{}{
				"protocolVersion": "2024-11-05",
				"serverInfo": map[string]interface{}{
					"name":    "filesearch-dashboard-mcp",
					"version": "1.0.0",
				},
				"capabilities": map[string]interface{}{
					"tools": map[string]interface{}{},
				},
			},
		})
		return
	}

	// Validate session for other requests
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32000,
				Message: "Bad Request: No valid session ID provided",
			},
		})
		return
	}

	if !m.valid(sessionID) {
		c.JSON(http.StatusBadRequest, MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32000,
				Message: "Invalid session ID",
			},
		})
		return
	}

	switch req.Method {
	case "tools/list":
		m.handleToolsList(c, req)
	case "tools/call":
		m.handleToolsCall(c, req)
	case "ping":
		c.JSON(http.StatusOK, MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		})
	default:
		c.JSON(http.StatusOK, MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: "Method not found",
			},
		})
	}
}

func (m *MCPServer) handleToolsList(c *gin.Context, req MCPRequest) {
	storeID := map[string]interface{}{
		"type":        "string",
		"description": "The store resource name, e.g. fileSearchStores/abc.",
	}

	c.JSON(http.StatusOK, MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": []map[string]interface{}{
				{
					"name":        "list_stores",
					"description": "List the File Search stores available to the server.",
					"inputSchema": map[string]interface{}{
						"type":       "object",
						"properties": map[string]interface{}{},
					},
				},
				{
					"name":        "list_documents",
					"description": "List the documents indexed in a File Search store.",
					"inputSchema": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"store_id": storeID,
						},
						"required": []string{"store_id"},
					},
				},
				{
					"name":        "ask_store",
					"description": "Answer a question grounded in the documents of a File Search store.",
					"inputSchema": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"store_id": storeID,
							"query": map[string]interface{}{
								"type":        "string",
								"description": "The question to answer.",
							},
							"use_default_system_prompt": map[string]interface{}{
								"type":        "boolean",
								"description": "Wrap the question in the bug bounty system prompt.",
							},
							"model": map[string]interface{}{
								"type":        "string",
								"description": "The model to answer with.",
								"enum":        gemini.Models(),
							},
						},
						"required": []string{"store_id", "query"},
					},
				},
			},
		},
	})
}

func (m *MCPServer) handleToolsCall(c *gin.Context, req MCPRequest) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	if err := json.Unmarshal(req.Params, &params); err != nil {
		m.sendError(c, req.ID, -32602, "Invalid params")
		return
	}

	ctx := c.Request.Context()
	client, err := m.Service.ServerClient(ctx)
	if err != nil {
		m.sendError(c, req.ID, -32603, err.Error())
		return
	}

	switch params.Name {
	case "list_stores":
		stores, err := client.ListStores(ctx)
		if err != nil {
			m.sendError(c, req.ID, -32603, err.Error())
			return
		}
		m.sendJSON(c, req.ID, stores)

	case "list_documents":
		var args ListDocumentsArgs
		if err := json.Unmarshal(params.Arguments, &args); err != nil || strings.TrimSpace(args.StoreID) == "" {
			m.sendError(c, req.ID, -32602, "Invalid arguments")
			return
		}
		docs, err := client.ListDocuments(ctx, args.StoreID)
		if err != nil {
			m.sendError(c, req.ID, -32603, err.Error())
			return
		}
		m.sendJSON(c, req.ID, docs)

	case "ask_store":
		var args AskStoreArgs
		if err := json.Unmarshal(params.Arguments, &args); err != nil || strings.TrimSpace(args.StoreID) == "" {
			m.sendError(c, req.ID, -32602, "Invalid arguments")
			return
		}
		model, err := gemini.ResolveModel(args.Model)
		if err != nil {
			m.sendError(c, req.ID, -32602, err.Error())
			return
		}

		useDefault := m.Service.Cfg.UseDefaultSystemPrompt
		if args.UseDefaultSystemPrompt != nil {
			useDefault = *args.UseDefaultSystemPrompt
		}

		sess := session.New(client, session.Options{Model: model})
		sess.Logger = m.Service.Logger.With("mcp_session", c.GetHeader("Mcp-Session-Id"))
		if err := sess.SelectStoreByID(ctx, args.StoreID); err != nil {
			m.sendError(c, req.ID, -32603, err.Error())
			return
		}
		answer, err := sess.Ask(ctx, args.Query, useDefault)
		if err != nil {
			m.sendError(c, req.ID, -32603, err.Error())
			return
		}
		m.sendText(c, req.ID, answer.Text)

	default:
		m.sendError(c, req.ID, -32601, fmt.Sprintf("Tool not found: %s", params.Name))
	}
}

func (m *MCPServer) sendError(c *gin.Context, id interface{}, code int, msg string) {
	c.JSON(http.StatusOK, MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: msg,
		},
	})
}

func (m *MCPServer) sendJSON(c *gin.Context, id interface{}, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		m.sendError(c, id, -32603, err.Error())
		return
	}
	m.sendText(c, id, string(data))
}

func (m *MCPServer) sendText(c *gin.Context, id interface{}, text string) {
	c.JSON(http.StatusOK, MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": text,
				},
			},
		},
	})
}
