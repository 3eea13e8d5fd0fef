package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mikeboe/filesearch-dashboard/pkg/filesearch"
)

// Ask answers query grounded in the active store using the session model.
func (s *Session) Ask(ctx context.Context, query string, useDefaultSystemPrompt bool) (filesearch.Answer, error) {
	return s.AskWithModel(ctx, query, useDefaultSystemPrompt, "")
}

// AskWithModel is Ask with an explicit model; an empty model uses the
// session model. Failures are returned as is, nothing is retried.
func (s *Session) AskWithModel(ctx context.Context, query string, useDefaultSystemPrompt bool, model string) (filesearch.Answer, error) {
	store, err := s.requireActive()
	if err != nil {
		return filesearch.Answer{}, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return filesearch.Answer{}, filesearch.ErrEmptyQuery
	}
	if model == "" {
		model = s.Model
	}

	req := buildRequest(store, query, useDefaultSystemPrompt, model)

	s.Logger.Info("Asking", "store", store.ID, "model", model, "system_prompt", useDefaultSystemPrompt)
	answer, err := s.Client.GenerateAnswer(ctx, req)
	if err != nil {
		s.Logger.Error("Generation failed", "store", store.ID, "error", err)
		return filesearch.Answer{}, filesearch.WrapRemote("generate answer", err)
	}
	if answer.Model == "" {
		answer.Model = model
	}

	ex := Exchange{
		ID:               uuid.New(),
		StoreID:          store.ID,
		Query:            query,
		UsedSystemPrompt: useDefaultSystemPrompt,
		Answer:           answer,
		AskedAt:          time.Now(),
	}
	s.last = &ex

	if s.OnExchange != nil {
		s.OnExchange(ctx, ex)
	}
	return answer, nil
}

func buildRequest(store filesearch.Store, query string, useDefaultSystemPrompt bool, model string) filesearch.AnswerRequest {
	req := filesearch.AnswerRequest{
		Model:    model,
		Query:    query,
		StoreIDs: []string{store.ID},
	}
	if useDefaultSystemPrompt {
		req.SystemInstruction = filesearch.SystemInstruction(query)
	}
	return req
}
